package fileutil

import (
	"fmt"
	"path/filepath"
)

// Move relocates src to dst, creating dst's parent directory when needed. It
// refuses to overwrite an existing dst and returns the cleaned dst.
func Move(fsys FS, src, dst string) (string, error) {
	src = filepath.Clean(src)
	dst = filepath.Clean(dst)
	if src == dst {
		return dst, nil
	}
	if _, err := fsys.Stat(src); err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	if Exists(fsys, dst) {
		return "", fmt.Errorf("%w: %s", ErrDestinationExists, dst)
	}
	if err := fsys.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create destination directory: %w", err)
	}
	if err := fsys.Rename(src, dst); err != nil {
		return "", fmt.Errorf("move %s -> %s: %w", src, dst, err)
	}
	return dst, nil
}
