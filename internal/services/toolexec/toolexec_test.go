package toolexec_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dpxflow/internal/services"
	"dpxflow/internal/services/toolexec"
)

func TestCommandCapturesStdoutAndStderr(t *testing.T) {
	var transcript toolexec.Transcript
	err := toolexec.Command{}.Run(context.Background(), "sh", []string{"-c", "echo out; echo err 1>&2"}, transcript.Line)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := string(transcript.Bytes())
	if !strings.Contains(got, "out\n") || !strings.Contains(got, "err\n") {
		t.Fatalf("transcript = %q", got)
	}
}

func TestCommandReportsExitCode(t *testing.T) {
	err := toolexec.Command{}.Run(context.Background(), "sh", []string{"-c", "exit 3"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if code := toolexec.ExitCode(err); code != 3 {
		t.Fatalf("exit code = %d, want 3", code)
	}
}

func TestClassifyTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := toolexec.Command{}.Run(ctx, "sh", []string{"-c", "exec sleep 5"}, nil)
	classified := toolexec.Classify(ctx, "probe", "rawcooked", err)
	if !errors.Is(classified, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", classified)
	}
}

func TestClassifyToolFailure(t *testing.T) {
	classified := toolexec.Classify(context.Background(), "cook", "rawcooked", errors.New("exit status 1"))
	if !errors.Is(classified, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", classified)
	}
	if toolexec.Classify(context.Background(), "cook", "rawcooked", nil) != nil {
		t.Fatal("nil error should classify as nil")
	}
}
