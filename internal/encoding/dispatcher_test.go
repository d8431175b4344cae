package encoding_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"dpxflow/internal/encoding"
	"dpxflow/internal/services"
	"dpxflow/internal/services/rawcooked"
	"dpxflow/internal/testsupport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubCooker struct {
	mu       sync.Mutex
	requests []rawcooked.CookRequest
	fail     map[string]bool
	delay    time.Duration
	active   atomic.Int32
	peak     atomic.Int32
}

func (s *stubCooker) Cook(ctx context.Context, req rawcooked.CookRequest) ([]byte, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	name := filepath.Base(req.Source)
	if s.fail[name] {
		return []byte("Error: undecodable file\n"), services.Wrap(services.ErrExternalTool, "encode", "rawcooked", "exit status 1", errors.New("exit status 1"))
	}
	return []byte("Reversibility was checked, no issue detected.\n"), nil
}

func setup(t *testing.T, names ...string) *testsupport.MemFS {
	t.Helper()
	fsys := testsupport.NewMemFS()
	if err := fsys.MkdirAll("/p/cooked", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := fsys.MkdirAll("/p/ready", 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		fsys.WriteFrames(filepath.Join("/p/ready", name, "scan"), "f", 1, 2)
	}
	return fsys
}

func TestDispatchEncodesBatchAndWritesLogs(t *testing.T) {
	fsys := setup(t, "N_1", "N_2", "N_3")
	fsys.WriteFile("/p/ready/N_1.framemd5", []byte("md5"))
	cooker := &stubCooker{}
	d := encoding.NewDispatcher(fsys, cooker, encoding.Options{CookedDir: "/p/cooked", BatchSize: 20, Workers: 8}, nil)

	report, err := d.Dispatch(context.Background(), "/p/ready", encoding.ModeV1)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if report.Listed != 3 || len(report.Jobs) != 3 || report.Failed() != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	for _, name := range []string{"N_1", "N_2", "N_3"} {
		data, err := fsys.ReadFile(filepath.Join("/p/cooked", name+".mkv.txt"))
		if err != nil {
			t.Fatalf("log for %s: %v", name, err)
		}
		if len(data) == 0 {
			t.Fatalf("empty log for %s", name)
		}
	}
	for _, req := range cooker.requests {
		if req.V2 {
			t.Fatalf("v1 dispatch requested v2 output: %+v", req)
		}
		if filepath.Dir(req.Output) != "/p/cooked" {
			t.Fatalf("unexpected output %s", req.Output)
		}
	}
	// Sequences stay in place.
	if _, err := fsys.Stat("/p/ready/N_1"); err != nil {
		t.Fatalf("sequence moved: %v", err)
	}
}

func TestDispatchFailureDoesNotCancelSiblings(t *testing.T) {
	fsys := setup(t, "A", "B", "C")
	cooker := &stubCooker{fail: map[string]bool{"A": true}, delay: 20 * time.Millisecond}
	d := encoding.NewDispatcher(fsys, cooker, encoding.Options{CookedDir: "/p/cooked", BatchSize: 20, Workers: 3}, nil)

	report, err := d.Dispatch(context.Background(), "/p/ready", encoding.ModeV2)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if report.Failed() != 1 {
		t.Fatalf("expected one failure, got %d", report.Failed())
	}
	for _, job := range report.Jobs {
		if job.Sequence != "A" && !job.Succeeded() {
			t.Fatalf("sibling %s failed: %v", job.Sequence, job.Err)
		}
	}
	if len(report.Incidents) != 1 || !errors.Is(report.Incidents[0].Err, services.ErrExternalTool) {
		t.Fatalf("expected one external tool incident, got %+v", report.Incidents)
	}
	data, err := fsys.ReadFile("/p/cooked/A.mkv.txt")
	if err != nil || len(data) == 0 {
		t.Fatalf("failed encode must still leave its log: %v", err)
	}
	for _, req := range cooker.requests {
		if !req.V2 {
			t.Fatalf("v2 dispatch requested v1 output: %+v", req)
		}
	}
}

func TestDispatchHonoursBatchAndWorkerLimits(t *testing.T) {
	names := []string{"S01", "S02", "S03", "S04", "S05", "S06"}
	fsys := setup(t, names...)
	cooker := &stubCooker{delay: 10 * time.Millisecond}
	d := encoding.NewDispatcher(fsys, cooker, encoding.Options{CookedDir: "/p/cooked", BatchSize: 4, Workers: 2}, nil)

	report, err := d.Dispatch(context.Background(), "/p/ready", encoding.ModeV1)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(report.Jobs) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(report.Jobs))
	}
	for i, job := range report.Jobs {
		if job.Sequence != names[i] {
			t.Fatalf("job %d is %s, want %s", i, job.Sequence, names[i])
		}
	}
	if len(report.Deferred) != 2 || report.Deferred[0] != "S05" {
		t.Fatalf("unexpected deferred %v", report.Deferred)
	}
	if peak := cooker.peak.Load(); peak > 2 {
		t.Fatalf("worker limit exceeded: %d concurrent", peak)
	}
}

func TestDispatchSkipsInFlightAndFiles(t *testing.T) {
	fsys := setup(t, "A", "B", "C")
	fsys.WriteFile("/p/cooked/A.mkv", []byte("mkv"))
	fsys.WriteFile("/p/cooked/B.mkv.txt", []byte("log"))
	fsys.WriteFile("/p/ready/C.framemd5", []byte("md5"))
	if err := fsys.MkdirAll("/p/ready/.D.partial-1234", 0o755); err != nil {
		t.Fatal(err)
	}
	cooker := &stubCooker{}
	d := encoding.NewDispatcher(fsys, cooker, encoding.Options{CookedDir: "/p/cooked", BatchSize: 20, Workers: 2}, nil)

	report, err := d.Dispatch(context.Background(), "/p/ready", encoding.ModeV1)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if report.Listed != 3 {
		t.Fatalf("expected 3 listed directories, got %d", report.Listed)
	}
	if len(report.Skipped) != 2 {
		t.Fatalf("expected A and B skipped, got %v", report.Skipped)
	}
	if len(report.Jobs) != 1 || report.Jobs[0].Sequence != "C" {
		t.Fatalf("expected only C encoded, got %+v", report.Jobs)
	}
}

func TestDispatchEmptyDirectory(t *testing.T) {
	fsys := setup(t)
	d := encoding.NewDispatcher(fsys, &stubCooker{}, encoding.Options{CookedDir: "/p/cooked", BatchSize: 20, Workers: 8}, nil)

	report, err := d.Dispatch(context.Background(), "/p/ready", encoding.ModeV1)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !report.Empty() || report.Listed != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestDispatchMissingDirectory(t *testing.T) {
	fsys := testsupport.NewMemFS()
	d := encoding.NewDispatcher(fsys, &stubCooker{}, encoding.Options{CookedDir: "/p/cooked"}, nil)

	_, err := d.Dispatch(context.Background(), "/p/missing", encoding.ModeV1)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestModeStage(t *testing.T) {
	if encoding.ModeV1.Stage().String() != "ready-to-cook" || encoding.ModeV2.Stage().String() != "ready-to-cook-v2" {
		t.Fatal("unexpected mode stages")
	}
}
