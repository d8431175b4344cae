package sequence

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"

	"dpxflow/internal/fileutil"
	"dpxflow/internal/services"
	"dpxflow/internal/stage"
)

// Locate returns the deduplicated, sorted set of deepest directories under
// root that directly contain frame files. A directory holding frames is not
// descended into further. An empty result is not an error.
func Locate(fsys fileutil.FS, root string) ([]string, error) {
	root = filepath.Clean(root)
	seen := make(map[string]struct{})
	if err := locate(fsys, root, seen); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for dir := range seen {
		out = append(out, dir)
	}
	sort.Strings(out)
	return out, nil
}

func locate(fsys fileutil.FS, dir string, seen map[string]struct{}) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "", "locate", "directory missing: "+dir, err)
		}
		return err
	}
	var subdirs []string
	for _, entry := range entries {
		if fileutil.IsPartial(entry.Name()) {
			continue
		}
		if entry.IsDir() {
			subdirs = append(subdirs, filepath.Join(dir, entry.Name()))
			continue
		}
		if IsFrame(entry.Name()) {
			seen[dir] = struct{}{}
			return nil
		}
	}
	for _, sub := range subdirs {
		if err := locate(fsys, sub, seen); err != nil {
			return err
		}
	}
	return nil
}

// Discover groups the frame directories found under stageDir by their
// top-level folder. Top-level folders with no frames are returned separately
// so callers can log them; loose files in stageDir are ignored.
func Discover(fsys fileutil.FS, stageDir string, s stage.Stage) ([]Sequence, []string, error) {
	stageDir = filepath.Clean(stageDir)
	entries, err := fsys.ReadDir(stageDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, services.Wrap(services.ErrNotFound, s.String(), "discover", "stage directory missing: "+stageDir, err)
		}
		return nil, nil, err
	}

	var (
		seqs  []Sequence
		empty []string
	)
	for _, entry := range entries {
		if !entry.IsDir() || fileutil.IsPartial(entry.Name()) {
			continue
		}
		top := filepath.Join(stageDir, entry.Name())
		dirs, err := Locate(fsys, top)
		if err != nil {
			return nil, nil, err
		}
		if len(dirs) == 0 {
			empty = append(empty, entry.Name())
			continue
		}
		rel := make([]string, 0, len(dirs))
		for _, dir := range dirs {
			r, err := filepath.Rel(top, dir)
			if err != nil {
				return nil, nil, err
			}
			rel = append(rel, r)
		}
		seqs = append(seqs, Sequence{
			Name:      entry.Name(),
			Path:      top,
			Stage:     s,
			FrameDirs: rel,
		})
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i].Name < seqs[j].Name })
	sort.Strings(empty)
	return seqs, empty, nil
}

// Representative picks the lexicographically smallest frame file in the
// sequence's first frame directory.
func Representative(fsys fileutil.FS, seq Sequence) (string, error) {
	if len(seq.FrameDirs) == 0 {
		return "", services.Wrap(services.ErrNotFound, seq.Stage.String(), "representative", "no representative file found", nil)
	}
	dir := seq.FrameDir(seq.FrameDirs[0])
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, seq.Stage.String(), "representative", "no representative file found", err)
	}
	best := ""
	for _, entry := range entries {
		if entry.IsDir() || !IsFrame(entry.Name()) {
			continue
		}
		if best == "" || entry.Name() < best {
			best = entry.Name()
		}
	}
	if best == "" {
		return "", services.Wrap(services.ErrNotFound, seq.Stage.String(), "representative", "no representative file found", nil)
	}
	return filepath.Join(dir, best), nil
}
