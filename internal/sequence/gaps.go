package sequence

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"dpxflow/internal/fileutil"
)

// Range is an inclusive run of missing frame indices.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// GapReport describes the frame numbering of one directory.
type GapReport struct {
	First      int     `json:"first"`
	Last       int     `json:"last"`
	Frames     int     `json:"frames"`
	Missing    []Range `json:"missing,omitempty"`
	Unnumbered int     `json:"unnumbered,omitempty"`
}

// HasGap reports whether any index between First and Last is absent.
func (r GapReport) HasGap() bool {
	return len(r.Missing) > 0
}

// MissingCount totals the missing indices.
func (r GapReport) MissingCount() int {
	total := 0
	for _, m := range r.Missing {
		total += m.To - m.From + 1
	}
	return total
}

// FindGaps extracts the trailing frame index of every frame name and
// reports absent indices between the lowest and highest. Duplicate indices
// count once; fewer than two numbered frames is gap-free. Frame names with
// no trailing number are tallied in Unnumbered.
func FindGaps(names []string) GapReport {
	indexes := make(map[int]struct{}, len(names))
	var report GapReport
	for _, name := range names {
		if !IsFrame(name) {
			continue
		}
		idx, ok := frameIndex(name)
		if !ok {
			report.Unnumbered++
			continue
		}
		indexes[idx] = struct{}{}
	}
	report.Frames = len(indexes)
	if len(indexes) == 0 {
		return report
	}

	sorted := make([]int, 0, len(indexes))
	for idx := range indexes {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)
	report.First = sorted[0]
	report.Last = sorted[len(sorted)-1]
	for i := 1; i < len(sorted); i++ {
		if sorted[i] > sorted[i-1]+1 {
			report.Missing = append(report.Missing, Range{From: sorted[i-1] + 1, To: sorted[i] - 1})
		}
	}
	return report
}

func frameIndex(name string) (int, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	end := len(stem)
	start := end
	for start > 0 && stem[start-1] >= '0' && stem[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}
	idx, err := strconv.Atoi(stem[start:end])
	if err != nil {
		return 0, false
	}
	return idx, true
}

// DirGaps pairs a frame directory (relative to the sequence) with its report.
type DirGaps struct {
	Dir string `json:"dir"`
	GapReport
}

// SequenceGaps is the gap check result for a whole sequence.
type SequenceGaps struct {
	Sequence string    `json:"sequence"`
	Dirs     []DirGaps `json:"dirs"`
}

// HasGap reports whether any frame directory has a gap.
func (g SequenceGaps) HasGap() bool {
	for _, d := range g.Dirs {
		if d.HasGap() {
			return true
		}
	}
	return false
}

// CheckGaps runs FindGaps over every frame directory of seq.
func CheckGaps(fsys fileutil.FS, seq Sequence) (SequenceGaps, error) {
	result := SequenceGaps{Sequence: seq.Name}
	for _, rel := range seq.FrameDirs {
		entries, err := fsys.ReadDir(seq.FrameDir(rel))
		if err != nil {
			return SequenceGaps{}, err
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if !entry.IsDir() {
				names = append(names, entry.Name())
			}
		}
		result.Dirs = append(result.Dirs, DirGaps{Dir: rel, GapReport: FindGaps(names)})
	}
	return result, nil
}
