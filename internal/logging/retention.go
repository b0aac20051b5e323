package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CleanupOldLogs deletes the files in dir matching pattern that were last
// written more than retentionDays before now, and returns how many it
// deleted. A retention of zero keeps everything.
func CleanupOldLogs(logger *slog.Logger, dir, pattern string, retentionDays int, now time.Time) int {
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	if pattern == "" {
		pattern = "*"
	}
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	removed := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "old log file could not be removed", "log_retention_failed",
				String("log_path", path),
				Error(err),
				String(FieldErrorHint, "check the permissions of paths.log_dir"),
				String(FieldImpact, "the file stays on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("old log file removed", String("log_path", path))
		}
	}
	return removed
}
