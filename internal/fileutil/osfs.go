package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// PartialMarker is embedded in the names of in-progress cross-device copies.
// A directory carrying it after a run was interrupted mid-move.
const PartialMarker = ".partial-"

// OS implements FS on the host filesystem.
type OS struct{}

func (OS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }

func (OS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (OS) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }

func (OS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func (OS) AppendFile(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Rename moves oldpath to newpath. A same-volume move is a single rename(2).
// When the volumes differ the tree is first copied into a hidden partial
// directory beside newpath, renamed into place, and only then is the source
// removed, so an interruption leaves either the untouched source or a
// recognisable partial copy.
func (OS) Rename(oldpath, newpath string) error {
	if _, err := os.Lstat(newpath); err == nil {
		return fmt.Errorf("%w: %s", ErrDestinationExists, newpath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat destination: %w", err)
	}

	err := os.Rename(oldpath, newpath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return err
	}
	return moveAcrossDevices(oldpath, newpath)
}

func moveAcrossDevices(src, dst string) error {
	partial := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+PartialMarker+uuid.NewString())
	if err := copyTree(src, partial); err != nil {
		_ = os.RemoveAll(partial)
		return fmt.Errorf("stage cross-device copy: %w", err)
	}
	if err := os.Rename(partial, dst); err != nil {
		_ = os.RemoveAll(partial)
		return fmt.Errorf("commit cross-device copy: %w", err)
	}
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return CopyFileVerified(src, dst)
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		}
		if !d.Type().IsRegular() {
			return fmt.Errorf("unsupported file type at %s", path)
		}
		return CopyFileVerified(path, target)
	})
}

// IsPartial reports whether name is an in-progress cross-device copy.
func IsPartial(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, PartialMarker)
}
