package stage

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestTerminalStages(t *testing.T) {
	terminal := map[Stage]bool{
		GapCheckFailed:       true,
		PolicyCheckFailed:    true,
		MKVPolicyFailed:      true,
		PostCookReviewFailed: true,
		Completed:            true,
	}
	for _, s := range All() {
		if got := s.Terminal(); got != terminal[s] {
			t.Fatalf("%s.Terminal() = %v, want %v", s, got, terminal[s])
		}
	}
	if Completed.Review() {
		t.Fatal("completed is not a review stage")
	}
	if !GapCheckFailed.Review() {
		t.Fatal("gap-check-failed should be a review stage")
	}
}

func TestParse(t *testing.T) {
	if s, ok := Parse("  Ready-To-Cook-V2 "); !ok || s != ReadyToCookV2 {
		t.Fatalf("unexpected parse result %q %v", s, ok)
	}
	if _, ok := Parse("nope"); ok {
		t.Fatal("expected unknown stage to fail")
	}
}

func testDirs(base string) map[Stage]string {
	dirs := make(map[Stage]string)
	for _, s := range All() {
		dirs[s] = filepath.Join(base, string(s))
	}
	return dirs
}

func TestNewLayoutRejectsMissingAndDuplicateDirs(t *testing.T) {
	dirs := testDirs("/pipe")
	delete(dirs, Completed)
	if _, err := NewLayout(dirs); err == nil || !strings.Contains(err.Error(), "completed") {
		t.Fatalf("expected missing completed dir error, got %v", err)
	}

	dirs = testDirs("/pipe")
	dirs[ReadyToCookV2] = dirs[ReadyToCook] + "/"
	if _, err := NewLayout(dirs); err == nil || !strings.Contains(err.Error(), "already used") {
		t.Fatalf("expected duplicate dir error, got %v", err)
	}
}

func TestLayoutLookup(t *testing.T) {
	layout, err := NewLayout(testDirs("/pipe"))
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	if got := layout.Dir(MKVCooked); got != "/pipe/mkv-cooked" {
		t.Fatalf("unexpected dir %q", got)
	}
	if s, ok := layout.StageOf("/pipe/completed/"); !ok || s != Completed {
		t.Fatalf("unexpected StageOf result %q %v", s, ok)
	}
	if len(layout.Dirs()) != len(All()) {
		t.Fatalf("expected %d dirs", len(All()))
	}
}

func TestLayoutStageContaining(t *testing.T) {
	dirs := testDirs("/pipe")
	dirs[PostCookReviewFailed] = "/pipe/review/post"
	dirs[MKVPolicyFailed] = "/pipe/review"
	layout, err := NewLayout(dirs)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	tests := []struct {
		path string
		want Stage
		ok   bool
	}{
		{"/pipe/completed/N_1/N_1.mkv", Completed, true},
		{"/pipe/review/post/N_1", PostCookReviewFailed, true},
		{"/pipe/review/N_1", MKVPolicyFailed, true},
		{"/pipe/completed-other/x", "", false},
		{"/elsewhere", "", false},
	}
	for _, tt := range tests {
		got, ok := layout.StageContaining(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("StageContaining(%q) = %q %v, want %q %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}
