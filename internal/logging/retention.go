package logging

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names a directory whose matching files should be pruned
// once they exceed the retention window.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude map[string]struct{}
}

// CleanupOldLogs removes files in each target older than retentionDays.
// Missing directories are skipped. The first error encountered is returned
// after the sweep finishes so a single bad file does not stop pruning.
func CleanupOldLogs(targets []RetentionTarget, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	var firstErr error
	for _, target := range targets {
		dir := strings.TrimSpace(target.Dir)
		if dir == "" {
			continue
		}
		pattern := target.Pattern
		if pattern == "" {
			pattern = "*.log"
		}
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, path := range matches {
			name := filepath.Base(path)
			if _, skip := target.Exclude[name]; skip {
				continue
			}
			info, err := os.Lstat(path)
			if err != nil {
				if !os.IsNotExist(err) && firstErr == nil {
					firstErr = err
				}
				continue
			}
			if info.IsDir() || !info.Mode().IsRegular() {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
