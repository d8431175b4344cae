package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeStub(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "rawcooked")
	writeStub(t, present, `echo "RAWcooked 24.11"; echo "second line"`)
	reqs := []Requirement{
		{Name: "RAWcooked", Command: present, VersionArgs: []string{"--version"}},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Version != "RAWcooked 24.11" {
		t.Fatalf("unexpected version %q", results[0].Version)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail %q", results[2].Detail)
	}

	missing := Missing(results)
	if len(missing) != 2 {
		t.Fatalf("expected two missing, got %+v", missing)
	}
}

func TestMissingIgnoresOptional(t *testing.T) {
	statuses := []Status{{Name: "opt", Optional: true}, {Name: "ok", Available: true}}
	if got := Missing(statuses); len(got) != 0 {
		t.Fatalf("expected nothing missing, got %+v", got)
	}
}

func TestCheckFFmpegPrefersSidecar(t *testing.T) {
	tmp := t.TempDir()
	rawcooked := filepath.Join(tmp, "rawcooked")
	ffmpeg := filepath.Join(tmp, "ffmpeg")
	writeStub(t, rawcooked, "exit 0")
	writeStub(t, ffmpeg, "exit 0")
	t.Setenv("PATH", t.TempDir())

	status := CheckFFmpegForRAWcooked(rawcooked)
	if !status.Available || status.Command != ffmpeg {
		t.Fatalf("expected sidecar ffmpeg, got %#v", status)
	}
}

func TestCheckFFmpegFallsBackToPath(t *testing.T) {
	pathDir := t.TempDir()
	writeStub(t, filepath.Join(pathDir, "ffmpeg"), "exit 0")
	t.Setenv("PATH", pathDir)

	status := CheckFFmpegForRAWcooked("")
	if !status.Available || status.Command != filepath.Join(pathDir, "ffmpeg") {
		t.Fatalf("expected PATH ffmpeg, got %#v", status)
	}
}

func TestCheckFFmpegMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	status := CheckFFmpegForRAWcooked("rawcooked")
	if status.Available || !strings.Contains(status.Detail, "not found") {
		t.Fatalf("expected unavailable ffmpeg, got %#v", status)
	}
	if !strings.Contains(status.Summary(), "unavailable") {
		t.Fatalf("unexpected summary %q", status.Summary())
	}
}
