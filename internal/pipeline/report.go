package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"dpxflow/internal/assessment"
	"dpxflow/internal/encoding"
	"dpxflow/internal/postcook"
)

const reportPattern = "run-*.json"

// RunReport is the persisted record of one pass.
type RunReport struct {
	RunID      string            `json:"run_id"`
	Started    time.Time         `json:"started"`
	Finished   time.Time         `json:"finished"`
	Reconcile  ReconcileReport   `json:"reconcile"`
	Assessment assessment.Report `json:"assessment"`
	Encodes    []encoding.Report `json:"encodes"`
	PostCook   postcook.Report   `json:"postcook"`
	Error      string            `json:"error,omitempty"`
	Path       string            `json:"-"`
}

// IncidentCount totals incidents across every stage of the run.
func (r *RunReport) IncidentCount() int {
	n := len(r.Assessment.Incidents) + len(r.PostCook.Incidents)
	for _, e := range r.Encodes {
		n += len(e.Incidents)
	}
	return n
}

// WriteReport atomically writes report as JSON under dir and returns the path.
func WriteReport(dir string, report *RunReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode run report: %w", err)
	}
	name := fmt.Sprintf("run-%s-%s.json", report.Started.Format("20060102T150405Z"), shortID(report.RunID))
	path := filepath.Join(dir, name)
	if err := renameio.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write run report: %w", err)
	}
	return path, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
