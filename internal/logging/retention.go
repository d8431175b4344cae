package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Prune removes files in dir matching pattern whose modification time is
// more than retentionDays old, and returns how many went. retentionDays <= 0
// keeps everything. Only the pipeline's own logs and run reports are ever
// passed here.
func Prune(logger *slog.Logger, dir, pattern string, retentionDays int) int {
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	pruned := 0
	for _, path := range matches {
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "retention prune failed", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check ownership of log_dir"),
				String(FieldImpact, "old file stays on disk"),
			)
			continue
		}
		pruned++
		logger.Debug("pruned", String("path", path), EventType("log_pruned"))
	}
	return pruned
}
