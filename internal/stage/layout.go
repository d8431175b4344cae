package stage

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Layout maps every stage to its directory.
type Layout struct {
	dirs map[Stage]string
}

// NewLayout validates that every stage has a distinct, non-empty directory.
func NewLayout(dirs map[Stage]string) (Layout, error) {
	out := make(map[Stage]string, len(allStages))
	seen := make(map[string]Stage, len(allStages))
	for _, s := range allStages {
		dir := strings.TrimSpace(dirs[s])
		if dir == "" {
			return Layout{}, fmt.Errorf("stage %s: directory not configured", s)
		}
		dir = filepath.Clean(dir)
		if prev, dup := seen[dir]; dup {
			return Layout{}, fmt.Errorf("stage %s: directory %q already used by %s", s, dir, prev)
		}
		seen[dir] = s
		out[s] = dir
	}
	return Layout{dirs: out}, nil
}

// Dir returns the directory holding sequences in s.
func (l Layout) Dir(s Stage) string {
	return l.dirs[s]
}

// Dirs returns every stage directory, sorted for deterministic creation order.
func (l Layout) Dirs() []string {
	out := make([]string, 0, len(l.dirs))
	for _, dir := range l.dirs {
		out = append(out, dir)
	}
	sort.Strings(out)
	return out
}

// StageOf returns the stage whose directory is dir.
func (l Layout) StageOf(dir string) (Stage, bool) {
	dir = filepath.Clean(dir)
	for s, d := range l.dirs {
		if d == dir {
			return s, true
		}
	}
	return "", false
}

// StageContaining returns the stage whose directory is path or an ancestor of
// it. Nested stage directories resolve to the deepest match.
func (l Layout) StageContaining(path string) (Stage, bool) {
	path = filepath.Clean(path)
	var (
		best    Stage
		bestLen = -1
	)
	for s, dir := range l.dirs {
		if path != dir && !strings.HasPrefix(path, dir+string(filepath.Separator)) {
			continue
		}
		if len(dir) > bestLen {
			best, bestLen = s, len(dir)
		}
	}
	return best, bestLen >= 0
}
