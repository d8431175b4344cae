package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := min(int64(chunkSize), remaining)
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// WriteText writes body to path, creating parents.
func WriteText(t testing.TB, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// FrameName formats a scanner-style frame filename.
func FrameName(prefix string, index int) string {
	return fmt.Sprintf("%s_%07d.dpx", prefix, index)
}

// FrameRange returns the inclusive index range [first, last].
func FrameRange(first, last int) []int {
	out := make([]int, 0, last-first+1)
	for i := first; i <= last; i++ {
		out = append(out, i)
	}
	return out
}

// WriteFrames creates one small DPX file per index in dir.
func WriteFrames(t testing.TB, dir, prefix string, indexes ...int) {
	t.Helper()
	for _, idx := range indexes {
		WriteFile(t, filepath.Join(dir, FrameName(prefix, idx)), 16)
	}
}

// WriteFrames creates one small DPX file per index in dir on the in-memory
// filesystem.
func (m *MemFS) WriteFrames(dir, prefix string, indexes ...int) {
	for _, idx := range indexes {
		m.WriteFile(filepath.Join(dir, FrameName(prefix, idx)), []byte("dpx"))
	}
}
