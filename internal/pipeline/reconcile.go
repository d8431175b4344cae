package pipeline

import (
	"log/slog"
	"path/filepath"
	"sort"

	"dpxflow/internal/fileutil"
	"dpxflow/internal/logging"
	"dpxflow/internal/stage"
)

// Duplicate is a sequence name found in more than one stage directory.
type Duplicate struct {
	Name   string        `json:"name"`
	Stages []stage.Stage `json:"stages"`
}

// ReconcileReport lists leftovers from interrupted moves and names claimed by
// several stages. Nothing is changed on disk.
type ReconcileReport struct {
	Partials   []string    `json:"partials,omitempty"`
	Duplicates []Duplicate `json:"duplicates,omitempty"`
}

// Clean reports whether nothing needs attention.
func (r ReconcileReport) Clean() bool {
	return len(r.Partials) == 0 && len(r.Duplicates) == 0
}

// Log emits one warning per finding.
func (r ReconcileReport) Log(logger *slog.Logger) {
	for _, partial := range r.Partials {
		logging.WarnWithContext(logger, "partial move left behind", "reconcile_partial",
			logging.String("path", partial),
			logging.String(logging.FieldErrorHint, "compare with the source and remove once verified"),
			logging.String(logging.FieldImpact, "disk space held by an interrupted copy"),
		)
	}
	for _, dup := range r.Duplicates {
		stages := make([]string, len(dup.Stages))
		for i, s := range dup.Stages {
			stages[i] = s.String()
		}
		logging.WarnWithContext(logger, "sequence present in several stages", "reconcile_duplicate",
			logging.Sequence(dup.Name),
			logging.Any("stages", stages),
			logging.String(logging.FieldErrorHint, "keep one copy and move the others aside"),
			logging.String(logging.FieldImpact, "moves into an occupied stage will be held"),
		)
	}
}

// Reconcile scans every stage directory for partial-move directories and for
// sequence folders that appear in more than one stage. Terminal stages hold
// one folder per sequence, so partials are looked for one level deeper there.
func Reconcile(fsys fileutil.FS, layout stage.Layout) (ReconcileReport, error) {
	var report ReconcileReport
	seen := make(map[string][]stage.Stage)
	for _, s := range stage.All() {
		dir := layout.Dir(s)
		if dir == "" || !fileutil.Exists(fsys, dir) {
			continue
		}
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return report, err
		}
		for _, entry := range entries {
			name := entry.Name()
			if fileutil.IsPartial(name) {
				report.Partials = append(report.Partials, filepath.Join(dir, name))
				continue
			}
			if !entry.IsDir() {
				continue
			}
			seen[name] = append(seen[name], s)
			if s.Terminal() {
				report.Partials = append(report.Partials, nestedPartials(fsys, filepath.Join(dir, name))...)
			}
		}
	}
	for name, stages := range seen {
		if len(stages) > 1 {
			report.Duplicates = append(report.Duplicates, Duplicate{Name: name, Stages: stages})
		}
	}
	sort.Strings(report.Partials)
	sort.Slice(report.Duplicates, func(i, j int) bool { return report.Duplicates[i].Name < report.Duplicates[j].Name })
	return report, nil
}

func nestedPartials(fsys fileutil.FS, dir string) []string {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if fileutil.IsPartial(entry.Name()) {
			out = append(out, filepath.Join(dir, entry.Name()))
		}
	}
	return out
}
