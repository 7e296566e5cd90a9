package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"camdl/internal/api"
	"camdl/internal/config"
	"camdl/internal/jobs"
	"camdl/internal/logging"
	"camdl/internal/notifications"
	"camdl/internal/preflight"
	"camdl/internal/probe"
	"camdl/internal/relay"
	"camdl/internal/settings"
)

// Daemon owns the collaborators shared by all HTTP handlers and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *settings.Store
	prober   *probe.Prober
	launcher *jobs.Launcher
	relay    *relay.Relay
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	sessions  sync.WaitGroup

	checksMu sync.Mutex
	checks   []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *settings.Store, prober *probe.Prober, launcher *jobs.Launcher, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || prober == nil || launcher == nil {
		return nil, errors.New("daemon requires config, settings store, prober, and launcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		prober:   prober,
		launcher: launcher,
		notifier: notifications.NewService(cfg),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.relay = relay.New(prober, relay.JobLauncher(launcher), store, relay.Options{
		DestDir:           cfg.Paths.DownloadDir,
		HeartbeatInterval: cfg.HeartbeatInterval(),
		Logger:            logger,
	})
	return d, nil
}

// Start acquires the daemon lock and runs preflight checks. Failed checks
// are logged but do not prevent startup.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another camdl daemon instance is already running")
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.refreshChecks(ctx)
	d.logger.Info("camdl daemon started",
		logging.String("lock", d.lockPath),
		logging.String("download_dir", d.cfg.Paths.DownloadDir),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("camdl daemon stopped")
}

// Close stops the daemon and closes the settings store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Running reports whether Start has succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Relay exposes the session relay.
func (d *Daemon) Relay() *relay.Relay {
	return d.relay
}

func (d *Daemon) refreshChecks(ctx context.Context) []preflight.Result {
	results := preflight.RunAll(ctx, d.cfg)
	for _, failed := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldErrorHint, "fix the environment and re-run camdl status"),
			logging.String(logging.FieldImpact, "downloads may fail until resolved"),
		)
	}
	d.checksMu.Lock()
	d.checks = results
	d.checksMu.Unlock()
	return results
}

// runSession drives one relay session, tracking it so shutdown can wait.
// Sessions whose job ran to completion are reported to the notifier.
func (d *Daemon) runSession(ctx context.Context, req relay.Request, sink relay.Sink) relay.Outcome {
	d.sessions.Add(1)
	defer d.sessions.Done()
	started := time.Now()
	outcome := d.relay.Run(ctx, req, sink)
	if outcome.Launched && !outcome.Disconnected && d.notifier.Enabled() {
		d.sessions.Add(1)
		go d.notifyFinished(req, outcome, time.Since(started))
	}
	return outcome
}

func (d *Daemon) notifyFinished(req relay.Request, outcome relay.Outcome, elapsed time.Duration) {
	defer d.sessions.Done()
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	err := d.notifier.NotifyDownloadFinished(ctx, notifications.Download{
		CameraType: req.CameraType,
		Address:    req.Address,
		Success:    outcome.Success,
		Detail:     outcome.Reason,
		Duration:   elapsed,
	})
	if err != nil {
		logging.WarnWithContext(d.logger, "download notification not sent", "notification_failed",
			logging.String(logging.FieldSessionID, outcome.SessionID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

// waitSessions blocks until in-flight sessions finish or timeout elapses.
func (d *Daemon) waitSessions(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Status returns the current daemon status. When refresh is set the
// preflight checks are re-run.
func (d *Daemon) Status(ctx context.Context, refresh bool) api.DaemonStatus {
	var checks []preflight.Result
	if refresh {
		checks = d.refreshChecks(ctx)
	} else {
		d.checksMu.Lock()
		checks = d.checks
		d.checksMu.Unlock()
	}

	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    d.startedAt,
		LockFilePath: d.lockPath,
		SettingsPath: d.store.Path(),
		DownloadDir:  d.cfg.Paths.DownloadDir,
		CameraTypes:  d.cfg.CameraTypes(),
		Checks:       make([]api.CheckResult, 0, len(checks)),
		Sessions:     []api.Session{},
	}
	for _, check := range checks {
		status.Checks = append(status.Checks, api.CheckResult{Name: check.Name, Passed: check.Passed, Detail: check.Detail})
	}
	for _, sess := range d.relay.Active() {
		status.Sessions = append(status.Sessions, api.Session{
			ID:             sess.ID,
			CameraType:     sess.CameraType,
			Address:        sess.Address,
			State:          sess.State,
			StartedAt:      sess.StartedAt,
			LastProgressAt: sess.LastProgressAt,
		})
	}
	stats := d.launcher.Stats()
	status.Jobs = api.JobStats{Launched: stats.Launched, Reaped: stats.Reaped, Active: stats.Active()}
	return status
}
