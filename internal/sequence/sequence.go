package sequence

import (
	"path/filepath"
	"sort"
	"strings"

	"dpxflow/internal/stage"
)

// FrameExt is the frame file extension, matched case-insensitively.
const FrameExt = ".dpx"

// Sequence is one scanned reel moving through the pipeline.
type Sequence struct {
	Name  string
	Path  string
	Stage stage.Stage
	// FrameDirs are the frame-bearing directories beneath Path, relative to
	// it and sorted. "." means Path holds frames directly.
	FrameDirs []string
}

// FrameDir resolves a relative frame directory against the sequence path.
func (s Sequence) FrameDir(rel string) string {
	return filepath.Join(s.Path, rel)
}

// ManifestName is the framemd5 sidecar name written next to the sequence.
func (s Sequence) ManifestName() string {
	return s.Name + ".framemd5"
}

// IsFrame reports whether name carries the frame extension. Hidden files,
// such as AppleDouble "._" companions, are never frames.
func IsFrame(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), FrameExt)
}

// Set is an immutable collection of sequences keyed by name. Gates build a
// new Set from their output rather than editing the one they iterate.
type Set struct {
	byName map[string]Sequence
}

// NewSet builds a set; a later sequence with the same name replaces an
// earlier one.
func NewSet(seqs ...Sequence) Set {
	byName := make(map[string]Sequence, len(seqs))
	for _, seq := range seqs {
		byName[seq.Name] = seq
	}
	return Set{byName: byName}
}

// Len returns the number of sequences.
func (s Set) Len() int { return len(s.byName) }

// Get looks a sequence up by name.
func (s Set) Get(name string) (Sequence, bool) {
	seq, ok := s.byName[name]
	return seq, ok
}

// Names returns the member names, sorted.
func (s Set) Names() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sequences returns the members sorted by name.
func (s Set) Sequences() []Sequence {
	out := make([]Sequence, 0, len(s.byName))
	for _, name := range s.Names() {
		out = append(out, s.byName[name])
	}
	return out
}

// Union returns a new set holding both sets' members; other wins on
// conflicting names.
func (s Set) Union(other Set) Set {
	merged := make([]Sequence, 0, s.Len()+other.Len())
	merged = append(merged, s.Sequences()...)
	merged = append(merged, other.Sequences()...)
	return NewSet(merged...)
}
