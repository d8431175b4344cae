package rawcooked_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"dpxflow/internal/services"
	"dpxflow/internal/services/rawcooked"
)

type stubExecutor struct {
	lines []string
	err   error
	calls int
	args  [][]string
	block bool
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	s.calls++
	cloned := append([]string(nil), args...)
	s.args = append(s.args, cloned)
	for _, line := range s.lines {
		onOutput(line)
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func newClient(t *testing.T, exec *stubExecutor, opts ...rawcooked.Option) *rawcooked.Client {
	t.Helper()
	client, err := rawcooked.New("rawcooked", "LIC", append([]rawcooked.Option{rawcooked.WithExecutor(exec)}, opts...)...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewRequiresLicense(t *testing.T) {
	if _, err := rawcooked.New("rawcooked", " "); err == nil {
		t.Fatal("expected license error")
	}
}

func TestProbePassed(t *testing.T) {
	exec := &stubExecutor{lines: []string{"Analyzing files (100%)"}}
	outcome, _, err := newClient(t, exec).Probe(context.Background(), "/in/seq")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if outcome != rawcooked.ProbePassed {
		t.Fatalf("outcome = %q", outcome)
	}
	want := []string{"--license", "LIC", "--check", "--no-encode", "/in/seq"}
	if diff := cmp.Diff(want, exec.args[0]); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestProbeOversizedWinsOverExitStatus(t *testing.T) {
	exec := &stubExecutor{
		lines: []string{"Error: the reversibility file is becoming big"},
		err:   errors.New("exit status 1"),
	}
	outcome, output, err := newClient(t, exec).Probe(context.Background(), "/in/seq")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if outcome != rawcooked.ProbeOversized {
		t.Fatalf("outcome = %q", outcome)
	}
	if len(output) == 0 {
		t.Fatal("expected captured output")
	}
}

func TestProbeFailureWithoutDiagnosticIsToolError(t *testing.T) {
	exec := &stubExecutor{lines: []string{"something else"}, err: errors.New("exit status 2")}
	_, _, err := newClient(t, exec).Probe(context.Background(), "/in/seq")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestProbeTimeout(t *testing.T) {
	exec := &stubExecutor{block: true}
	client := newClient(t, exec, rawcooked.WithTimeouts(20*time.Millisecond, 0))
	_, _, err := client.Probe(context.Background(), "/in/seq")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestCookArgs(t *testing.T) {
	tests := []struct {
		name     string
		framemd5 bool
		v2       bool
		want     []string
	}{
		{
			name:     "standard with manifest",
			framemd5: true,
			want:     []string{"--license", "LIC", "-y", "--all", "--no-accept-gaps", "-s", "5281680", "--framemd5", "/src/seq", "-o", "/out/seq.mkv"},
		},
		{
			name:     "v2 with manifest",
			framemd5: true,
			v2:       true,
			want:     []string{"--license", "LIC", "-y", "--all", "--no-accept-gaps", "--output-version", "2", "-s", "5281680", "--framemd5", "/src/seq", "-o", "/out/seq.mkv"},
		},
		{
			name: "standard without manifest",
			want: []string{"--license", "LIC", "-y", "--all", "--no-accept-gaps", "-s", "5281680", "/src/seq", "-o", "/out/seq.mkv"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &stubExecutor{}
			client := newClient(t, exec, rawcooked.WithFramemd5(tt.framemd5))
			if _, err := client.Cook(context.Background(), rawcooked.CookRequest{Source: "/src/seq", Output: "/out/seq.mkv", V2: tt.v2}); err != nil {
				t.Fatalf("Cook: %v", err)
			}
			if diff := cmp.Diff(tt.want, exec.args[0]); diff != "" {
				t.Fatalf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCookReturnsOutputOnFailure(t *testing.T) {
	exec := &stubExecutor{lines: []string{"Conversion failed!"}, err: errors.New("exit status 1")}
	output, err := newClient(t, exec).Cook(context.Background(), rawcooked.CookRequest{Source: "/s", Output: "/o.mkv"})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if string(output) != "Conversion failed!\n" {
		t.Fatalf("output = %q", output)
	}
}

func TestCookSampleOverride(t *testing.T) {
	exec := &stubExecutor{}
	client := newClient(t, exec, rawcooked.WithSamples(42))
	if _, err := client.Cook(context.Background(), rawcooked.CookRequest{Source: "/s", Output: "/o.mkv"}); err != nil {
		t.Fatalf("Cook: %v", err)
	}
	if exec.args[0][6] != "42" {
		t.Fatalf("samples arg = %q in %v", exec.args[0][6], exec.args[0])
	}
}
