package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DaemonLogName is the link in log_dir that always resolves to the current
// daemon run's log.
const DaemonLogName = "camdld.log"

const (
	runLogPrefix     = "camdld-"
	runLogSuffix     = ".log"
	runLogTimeFormat = "20060102T150405.000Z"
)

// RunLogName returns the file name of the log for a daemon run started at
// started, e.g. camdld-20261017T091500.000Z.log.
func RunLogName(started time.Time) string {
	return runLogPrefix + started.UTC().Format(runLogTimeFormat) + runLogSuffix
}

func isRunLog(name string) bool {
	return strings.HasPrefix(name, runLogPrefix) && strings.HasSuffix(name, runLogSuffix)
}

// RunLog is the JSON log file of one daemon run.
type RunLog struct {
	Path    string
	Handler slog.Handler
	file    *os.File
}

// OpenRunLog creates the log file for a daemon run in logDir. Records below
// level are dropped.
func OpenRunLog(logDir string, started time.Time, level string) (*RunLog, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	path := filepath.Join(logDir, RunLogName(started))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(level))
	return &RunLog{Path: path, Handler: newJSONHandler(file, levelVar, false), file: file}, nil
}

// PointCurrent repoints DaemonLogName at this run's log. `camdl logs -f`
// notices the change and switches files.
func (l *RunLog) PointCurrent() error {
	dir := filepath.Dir(l.Path)
	current := filepath.Join(dir, DaemonLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", DaemonLogName, err)
	}
	if err := os.Symlink(filepath.Base(l.Path), current); err == nil {
		return nil
	}
	if err := os.Link(l.Path, current); err != nil {
		return fmt.Errorf("link %s: %w", DaemonLogName, err)
	}
	return nil
}

// Close releases the log file.
func (l *RunLog) Close() error {
	return l.file.Close()
}

// PruneRunLogs removes daemon run logs in logDir last written more than
// retentionDays ago. keep is never removed, nor is the DaemonLogName link.
// A retentionDays of 0 keeps everything. It returns the number of files removed.
func PruneRunLogs(logger *slog.Logger, logDir string, retentionDays int, keep string) int {
	if retentionDays <= 0 || strings.TrimSpace(logDir) == "" {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	keepName := filepath.Base(keep)

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !isRunLog(name) || name == keepName {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(logDir, name)
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "run log not pruned", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check log_dir ownership"),
				String(FieldImpact, "old run logs keep using disk space"),
			)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("old run logs pruned",
			Int("removed", removed),
			Int("retention_days", retentionDays),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}

// newJSONHandler writes one JSON object per record with short ts/level/msg
// keys and millisecond UTC timestamps.
func newJSONHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return attr
			}
			switch attr.Key {
			case slog.TimeKey:
				return slog.String("ts", attr.Value.Time().UTC().Format("2006-01-02T15:04:05.000Z07:00"))
			case slog.LevelKey:
				return slog.String("level", strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					return slog.String("source", fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	})
}
