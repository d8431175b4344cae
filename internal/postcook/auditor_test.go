package postcook_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"dpxflow/internal/fileutil"
	"dpxflow/internal/journal"
	"dpxflow/internal/postcook"
	"dpxflow/internal/router"
	"dpxflow/internal/services"
	"dpxflow/internal/services/mediaconch"
	"dpxflow/internal/stage"
	"dpxflow/internal/testsupport"
)

type stubChecker struct {
	failing map[string]bool
	errs    map[string]error
	checked []string
}

func (s *stubChecker) Check(_ context.Context, policy, file string) (mediaconch.Verdict, error) {
	s.checked = append(s.checked, file)
	base := strings.TrimSuffix(filepath.Base(file), ".mkv")
	if err := s.errs[base]; err != nil {
		return mediaconch.Verdict{}, err
	}
	if s.failing[base] {
		return mediaconch.Verdict{Report: "fail! " + file}, nil
	}
	return mediaconch.Verdict{Pass: true, Report: "pass! " + file}, nil
}

const cleanLog = "Reversibility was checked, no issue detected.\n"

func newLayout(t *testing.T) stage.Layout {
	t.Helper()
	dirs := make(map[stage.Stage]string)
	for _, s := range stage.All() {
		dirs[s] = filepath.Join("/p", string(s))
	}
	layout, err := stage.NewLayout(dirs)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	return layout
}

func newFS(t *testing.T) *testsupport.MemFS {
	t.Helper()
	fsys := testsupport.NewMemFS()
	for _, s := range stage.All() {
		if err := fsys.MkdirAll(filepath.Join("/p", string(s)), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return fsys
}

// cooked stages a source in ready and its container and log in the in-flight
// directory.
func cooked(fsys *testsupport.MemFS, ready stage.Stage, name, log string, manifest bool) {
	fsys.WriteFrames(filepath.Join("/p", string(ready), name, "scan"), "f", 1, 2)
	if manifest {
		fsys.WriteFile(filepath.Join("/p", string(ready), name+".framemd5"), []byte("md5"))
	}
	fsys.WriteFile(filepath.Join("/p/mkv-cooked", name+".mkv"), []byte("mkv"))
	fsys.WriteFile(filepath.Join("/p/mkv-cooked", name+".mkv.txt"), []byte(log))
}

type recordingJournal struct {
	entries []journal.Entry
}

func (r *recordingJournal) Record(_ context.Context, entry journal.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingJournal) count(kind journal.Kind) int {
	n := 0
	for _, e := range r.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func audit(t *testing.T, fsys *testsupport.MemFS, checker *stubChecker, framemd5 bool) postcook.Report {
	t.Helper()
	return auditRecorded(t, fsys, checker, framemd5, &recordingJournal{})
}

func auditRecorded(t *testing.T, fsys *testsupport.MemFS, checker *stubChecker, framemd5 bool, rec *recordingJournal) postcook.Report {
	t.Helper()
	r := router.New(fsys, newLayout(t), router.WithRecorder(rec))
	report, err := postcook.New(fsys, r, checker, postcook.Options{MKVPolicy: "/pol/mkv.xml", Framemd5: framemd5}, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return report
}

func exists(t *testing.T, fsys *testsupport.MemFS, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := fsys.Stat(p); err != nil {
			t.Fatalf("expected %s: %v", p, err)
		}
	}
}

func missing(t *testing.T, fsys *testsupport.MemFS, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := fsys.Stat(p); err == nil {
			t.Fatalf("expected %s to be gone", p)
		}
	}
}

func TestPassingPairCompletesWithSource(t *testing.T) {
	fsys := newFS(t)
	cooked(fsys, stage.ReadyToCook, "N_1", cleanLog, true)
	report := audit(t, fsys, &stubChecker{}, true)

	exists(t, fsys,
		"/p/completed/N_1/N_1.mkv",
		"/p/completed/N_1/N_1.mkv.txt",
		"/p/completed/N_1/N_1_processed_dpx/scan",
		"/p/completed/N_1/N_1.framemd5",
	)
	missing(t, fsys, "/p/ready-to-cook/N_1", "/p/ready-to-cook/N_1.framemd5", "/p/mkv-cooked/N_1.mkv")
	if len(report.Completed) != 1 || len(report.SourcesCompleted) != 1 || len(report.Incidents) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestV2SourceCompletes(t *testing.T) {
	fsys := newFS(t)
	cooked(fsys, stage.ReadyToCookV2, "BIG", cleanLog, true)
	audit(t, fsys, &stubChecker{}, true)

	exists(t, fsys, "/p/completed/BIG/BIG_processed_dpx", "/p/completed/BIG/BIG.framemd5")
}

func TestMKVPolicyFailureRoutesPairAndSource(t *testing.T) {
	fsys := newFS(t)
	cooked(fsys, stage.ReadyToCook, "N_2", cleanLog, true)
	report := audit(t, fsys, &stubChecker{failing: map[string]bool{"N_2": true}}, true)

	exists(t, fsys,
		"/p/mkv-policy-failed/N_2/N_2.mkv",
		"/p/mkv-policy-failed/N_2/N_2.mkv.txt",
		"/p/mkv-policy-failed/N_2/N_2/scan",
		"/p/mkv-policy-failed/N_2/N_2.framemd5",
	)
	missing(t, fsys, "/p/completed/N_2", "/p/ready-to-cook/N_2")
	if len(report.Review) != 1 || report.Review[0].To != stage.MKVPolicyFailed {
		t.Fatalf("unexpected review %+v", report.Review)
	}
}

func TestLogSignatureRoutesToReview(t *testing.T) {
	cases := []struct {
		name string
		log  string
		hit  string
	}{
		{"issues", "Reversibility was checked, issues detected, see below.\n", "reversibility_issues"},
		{"error", "Error: undecodable file\n", "error"},
		{"conversion", "Conversion failed!\n", "conversion_failed"},
		{"unsupported", "Please contact info@mediaarea.net if you want support of such content.\n", "unsupported_content"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fsys := newFS(t)
			cooked(fsys, stage.ReadyToCook, "N_3", tc.log, true)
			report := audit(t, fsys, &stubChecker{}, true)

			exists(t, fsys, "/p/post-cook-review-failed/N_3/N_3.mkv", "/p/post-cook-review-failed/N_3/N_3")
			if len(report.Review) != 1 {
				t.Fatalf("expected one review, got %+v", report.Review)
			}
			reasons := report.Review[0].Reasons
			found := false
			for _, r := range reasons {
				if r == tc.hit {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %s in %v", tc.hit, reasons)
			}
		})
	}
}

func TestOrphansStayAndAreReported(t *testing.T) {
	fsys := newFS(t)
	fsys.WriteFile("/p/mkv-cooked/LONE.mkv", []byte("mkv"))
	fsys.WriteFile("/p/mkv-cooked/LOG.mkv.txt", []byte(cleanLog))
	checker := &stubChecker{}
	report := audit(t, fsys, checker, true)

	exists(t, fsys, "/p/mkv-cooked/LONE.mkv", "/p/mkv-cooked/LOG.mkv.txt")
	if len(checker.checked) != 0 {
		t.Fatalf("orphans must not be policy checked: %v", checker.checked)
	}
	if len(report.Incidents) != 2 {
		t.Fatalf("expected two incidents, got %+v", report.Incidents)
	}
	for _, inc := range report.Incidents {
		if !errors.Is(inc.Err, services.ErrOrphanArtifact) {
			t.Fatalf("unexpected incident %+v", inc)
		}
	}
	if report.Incidents[0].Sequence != "LONE" || report.Incidents[1].Sequence != "LOG" {
		t.Fatalf("unexpected incident names %+v", report.Incidents)
	}
}

func TestMissingManifestIsIntegrityIncident(t *testing.T) {
	fsys := newFS(t)
	cooked(fsys, stage.ReadyToCook, "N_4", cleanLog, false)
	report := audit(t, fsys, &stubChecker{}, true)

	exists(t, fsys, "/p/completed/N_4/N_4_processed_dpx")
	if len(report.Incidents) != 1 || !errors.Is(report.Incidents[0].Err, services.ErrIntegrity) {
		t.Fatalf("expected integrity incident, got %+v", report.Incidents)
	}
	if len(report.SourcesCompleted) != 1 {
		t.Fatalf("source should still complete, got %+v", report.SourcesCompleted)
	}
}

func TestMissingManifestIgnoredWithoutFramemd5(t *testing.T) {
	fsys := newFS(t)
	cooked(fsys, stage.ReadyToCook, "N_4", cleanLog, false)
	report := audit(t, fsys, &stubChecker{}, false)

	if len(report.Incidents) != 0 {
		t.Fatalf("unexpected incidents %+v", report.Incidents)
	}
}

func TestSourceCompletesAgainstEarlierContainer(t *testing.T) {
	fsys := newFS(t)
	fsys.WriteFrames("/p/ready-to-cook/OLD/scan", "f", 1)
	fsys.WriteFile("/p/ready-to-cook/OLD.framemd5", []byte("md5"))
	fsys.WriteFile("/p/completed/OLD/OLD.mkv", []byte("mkv"))
	fsys.WriteFrames("/p/ready-to-cook/WAIT/scan", "f", 1)
	report := audit(t, fsys, &stubChecker{}, true)

	exists(t, fsys, "/p/completed/OLD/OLD_processed_dpx", "/p/completed/OLD/OLD.framemd5", "/p/ready-to-cook/WAIT")
	if len(report.SourcesCompleted) != 1 || report.SourcesCompleted[0] != "OLD" {
		t.Fatalf("unexpected sources completed %v", report.SourcesCompleted)
	}
}

func TestPolicyToolErrorHoldsPair(t *testing.T) {
	fsys := newFS(t)
	cooked(fsys, stage.ReadyToCook, "N_5", cleanLog, true)
	toolErr := services.Wrap(services.ErrTimeout, "mkv policy", "mediaconch", "timed out", context.DeadlineExceeded)
	report := audit(t, fsys, &stubChecker{errs: map[string]error{"N_5": toolErr}}, true)

	exists(t, fsys, "/p/mkv-cooked/N_5.mkv", "/p/mkv-cooked/N_5.mkv.txt", "/p/ready-to-cook/N_5")
	if len(report.Incidents) != 1 || !errors.Is(report.Incidents[0].Err, services.ErrTimeout) {
		t.Fatalf("expected timeout incident, got %+v", report.Incidents)
	}
}

func TestEmptyInFlightDirectory(t *testing.T) {
	fsys := newFS(t)
	report := audit(t, fsys, &stubChecker{}, true)
	if report.Pairs != 0 || len(report.Incidents) != 0 || len(report.Completed) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestConversionFailureEndsInReviewFolder(t *testing.T) {
	fsys := newFS(t)
	cooked(fsys, stage.ReadyToCook, "foo", "Conversion failed!\n", true)
	report := audit(t, fsys, &stubChecker{}, true)

	exists(t, fsys,
		"/p/post-cook-review-failed/foo/foo.mkv",
		"/p/post-cook-review-failed/foo/foo.mkv.txt",
	)
	missing(t, fsys, "/p/mkv-cooked/foo.mkv", "/p/mkv-cooked/foo.mkv.txt", "/p/completed/foo")
	if len(report.Review) != 1 || report.Review[0].Base != "foo" || report.Review[0].To != stage.PostCookReviewFailed {
		t.Fatalf("unexpected review %+v", report.Review)
	}
	if len(report.Completed) != 0 || len(report.SourcesCompleted) != 0 {
		t.Fatalf("nothing should complete: %+v", report)
	}
}

func TestCleanPairEndsInCompletedFolder(t *testing.T) {
	fsys := newFS(t)
	cooked(fsys, stage.ReadyToCook, "foo", cleanLog, true)
	report := audit(t, fsys, &stubChecker{}, true)

	exists(t, fsys,
		"/p/completed/foo/foo.mkv",
		"/p/completed/foo/foo.mkv.txt",
		"/p/completed/foo/foo_processed_dpx",
		"/p/completed/foo/foo_processed_dpx/scan",
		"/p/completed/foo/foo.framemd5",
	)
	missing(t, fsys,
		"/p/mkv-cooked/foo.mkv",
		"/p/mkv-cooked/foo.mkv.txt",
		"/p/ready-to-cook/foo",
		"/p/ready-to-cook/foo.framemd5",
	)
	if len(report.Completed) != 1 || report.Completed[0] != "foo" || len(report.Incidents) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestStaleDestinationLogKeepsPairTogether(t *testing.T) {
	fsys := newFS(t)
	cooked(fsys, stage.ReadyToCook, "foo", "Conversion failed!\n", true)
	fsys.WriteFile("/p/post-cook-review-failed/foo/foo.mkv.txt", []byte("stale"))
	rec := &recordingJournal{}
	report := auditRecorded(t, fsys, &stubChecker{}, true, rec)

	exists(t, fsys, "/p/mkv-cooked/foo.mkv", "/p/mkv-cooked/foo.mkv.txt", "/p/ready-to-cook/foo")
	missing(t, fsys, "/p/post-cook-review-failed/foo/foo.mkv", "/p/post-cook-review-failed/foo/foo")
	if len(report.Review) != 0 {
		t.Fatalf("pair must not be reported as reviewed: %+v", report.Review)
	}
	if len(report.Incidents) != 1 || !errors.Is(report.Incidents[0].Err, fileutil.ErrDestinationExists) {
		t.Fatalf("expected one destination-exists incident, got %+v", report.Incidents)
	}
	if got := rec.count(journal.KindMove); got != 0 {
		t.Fatalf("expected no moves journaled, got %d", got)
	}
	if got := rec.count(journal.KindHold); got != 1 {
		t.Fatalf("expected one hold journaled, got %d", got)
	}
}

func TestFailedLogMoveRestoresContainer(t *testing.T) {
	fsys := newFS(t)
	cooked(fsys, stage.ReadyToCook, "foo", cleanLog, true)
	fsys.FailRename("/p/mkv-cooked/foo.mkv.txt", errors.New("device busy"))
	report := audit(t, fsys, &stubChecker{}, true)

	exists(t, fsys, "/p/mkv-cooked/foo.mkv", "/p/mkv-cooked/foo.mkv.txt", "/p/ready-to-cook/foo", "/p/ready-to-cook/foo.framemd5")
	missing(t, fsys, "/p/completed/foo/foo.mkv", "/p/completed/foo/foo.mkv.txt", "/p/completed/foo/foo_processed_dpx")
	if len(report.Completed) != 0 || len(report.SourcesCompleted) != 0 {
		t.Fatalf("nothing should complete: %+v", report)
	}
	if len(report.Incidents) != 1 {
		t.Fatalf("expected one incident, got %+v", report.Incidents)
	}
}

func TestFailedSourceMoveJournalsOneHold(t *testing.T) {
	fsys := newFS(t)
	cooked(fsys, stage.ReadyToCook, "foo", cleanLog, true)
	fsys.FailRename("/p/ready-to-cook/foo", errors.New("device busy"))
	rec := &recordingJournal{}
	report := auditRecorded(t, fsys, &stubChecker{}, true, rec)

	exists(t, fsys, "/p/completed/foo/foo.mkv", "/p/ready-to-cook/foo")
	if len(report.SourcesCompleted) != 0 || len(report.Incidents) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := rec.count(journal.KindHold); got != 1 {
		t.Fatalf("expected one hold journaled, got %d", got)
	}
}
