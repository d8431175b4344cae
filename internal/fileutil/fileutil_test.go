package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.dpx")
	dst := filepath.Join(dir, "dst.dpx")

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerified_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyFileVerified(filepath.Join(dir, "nonexistent"), filepath.Join(dir, "dst.bin"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyFileVerified_RefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	for _, p := range []string{src, dst} {
		if err := os.WriteFile(p, []byte(p), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := CopyFileVerified(src, dst); err == nil {
		t.Fatal("expected error when destination exists")
	}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestMoveCreatesParentAndReturnsDestination(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "intake", "reel1")
	writeTree(t, src, map[string]string{"scan/0001.dpx": "a", "scan/0002.dpx": "b"})

	dst := filepath.Join(base, "ready", "reel1")
	got, err := Move(OS{}, src, dst)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got != dst {
		t.Fatalf("unexpected destination %q", got)
	}
	if _, err := os.Stat(filepath.Join(dst, "scan", "0002.dpx")); err != nil {
		t.Fatalf("expected moved frame: %v", err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected source gone, got %v", err)
	}
}

func TestMoveRefusesPopulatedDestination(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "a", "reel1")
	dst := filepath.Join(base, "b", "reel1")
	writeTree(t, src, map[string]string{"0001.dpx": "a"})
	writeTree(t, dst, map[string]string{"0001.dpx": "old"})

	_, err := Move(OS{}, src, dst)
	if !errors.Is(err, ErrDestinationExists) {
		t.Fatalf("expected ErrDestinationExists, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(src, "0001.dpx")); err != nil {
		t.Fatalf("source must remain after refused move: %v", err)
	}
}

func TestMoveMissingSource(t *testing.T) {
	base := t.TempDir()
	if _, err := Move(OS{}, filepath.Join(base, "nope"), filepath.Join(base, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestMoveAcrossDevicesCopiesThenRemovesSource(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src", "reel1")
	writeTree(t, src, map[string]string{"a/0001.dpx": "one", "a/0002.dpx": "two", "notes.txt": "n"})
	dstDir := filepath.Join(base, "dst")
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dstDir, "reel1")

	if err := moveAcrossDevices(src, dst); err != nil {
		t.Fatalf("moveAcrossDevices: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dst, "a", "0002.dpx"))
	if err != nil || string(got) != "two" {
		t.Fatalf("unexpected copied content %q (%v)", got, err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected source removed, got %v", err)
	}
	entries, err := os.ReadDir(dstDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), PartialMarker) {
			t.Fatalf("partial directory left behind: %s", e.Name())
		}
	}
}

func TestIsPartial(t *testing.T) {
	if !IsPartial(".reel1" + PartialMarker + "abc") {
		t.Fatal("expected partial name to be recognised")
	}
	if IsPartial("reel1") {
		t.Fatal("plain name is not partial")
	}
}
