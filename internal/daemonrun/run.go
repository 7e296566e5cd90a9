// Package daemonrun assembles and runs the camdl daemon process.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"camdl/internal/config"
	"camdl/internal/daemon"
	"camdl/internal/deps"
	"camdl/internal/jobs"
	"camdl/internal/logging"
	"camdl/internal/preflight"
	"camdl/internal/probe"
	"camdl/internal/settings"
)

// PIDFileName is the pid file written under paths.state_dir while the daemon runs.
const PIDFileName = "camdld.pid"

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the camdl daemon and blocks until cmdCtx is cancelled or the
// process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	var keepLog string
	runLog, err := logging.OpenRunLog(cfg.Paths.LogDir, time.Now(), level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to open run log: %v\n", err)
	} else {
		defer runLog.Close()
		keepLog = runLog.Path
		logger = logging.TeeLogger(logger, runLog.Handler)
		if err := runLog.PointCurrent(); err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.DaemonLogName, err)
		}
	}
	logger = logger.With(logging.String(logging.FieldDaemonRun, uuid.NewString()))

	logging.PruneRunLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, keepLog)
	logDependencySnapshot(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.StateDir, PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := settings.Open(cfg)
	if err != nil {
		logger.Error("open settings store", logging.Error(err))
		return err
	}

	prober := probe.New(cfg.Probe.Binary, cfg.Probe.Count, cfg.ProbeTimeout(), probe.WithLogger(logger))
	launcher := jobs.NewLauncher(jobs.NewRegistry(cfg.Jobs), jobs.WithLogger(logger))

	d, err := daemon.New(cfg, store, prober, launcher, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the other camdl daemon or remove a stale lock in state_dir"),
		)
		return err
	}

	if err := d.ListenAndServe(signalCtx); err != nil && !errors.Is(err, context.Canceled) {
		logging.ErrorWithContext(logger, "api server failed", "api_server_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.api_bind"),
		)
		return err
	}
	logger.Info("camdl daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded by a running daemon, or 0 when none is.
func ReadPID(cfg *config.Config) int {
	if cfg == nil {
		return 0
	}
	data, err := os.ReadFile(filepath.Join(cfg.Paths.StateDir, PIDFileName))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	statuses := preflight.CheckSystemDeps(ctx, cfg)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("download_dir", cfg.Paths.DownloadDir),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("auth_enabled", cfg.Paths.APIToken != ""),
	}
	for _, status := range statuses {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	for _, missing := range deps.Missing(statuses) {
		logging.WarnWithContext(logger, "required binary missing", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldErrorHint, missing.Description),
		)
	}
}
