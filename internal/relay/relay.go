package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"camdl/internal/eventstream"
	"camdl/internal/jobs"
	"camdl/internal/logging"
	"camdl/internal/probe"
	"camdl/internal/services"
)

const settingsWriteTimeout = 2 * time.Second

// DefaultDrainTimeout bounds how long output is still forwarded after the job
// has exited while something else keeps its stdout open.
const DefaultDrainTimeout = 2 * time.Second

// Request identifies the camera a session downloads from.
type Request struct {
	CameraType string
	Address    string
}

// Sink receives encoded events in emission order. A Send error means the
// client is gone.
type Sink interface {
	Send(eventstream.Event) error
}

// Prober checks reachability. Implementations must not return errors; faults
// are reported as unreachable results.
type Prober interface {
	Probe(ctx context.Context, address string) probe.Result
}

// Process is a running download job as seen by the relay. Lines closes at
// stdout EOF and Done closes when the job exits; either may happen first.
type Process interface {
	Lines() <-chan string
	Done() <-chan struct{}
	Stderr() string
	Wait() (int, error)
	PID() int
}

// Launcher starts download jobs. Cancelling ctx must terminate the process.
type Launcher interface {
	Launch(ctx context.Context, cameraType, address, destDir string) (Process, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, cameraType, address, destDir string) (Process, error)

// Launch implements Launcher.
func (f LauncherFunc) Launch(ctx context.Context, cameraType, address, destDir string) (Process, error) {
	return f(ctx, cameraType, address, destDir)
}

// JobLauncher adapts a jobs.Launcher.
func JobLauncher(l *jobs.Launcher) Launcher {
	return LauncherFunc(func(ctx context.Context, cameraType, address, destDir string) (Process, error) {
		handle, err := l.Launch(ctx, cameraType, address, destDir)
		if err != nil {
			return nil, err
		}
		return handle, nil
	})
}

// SettingsRecorder persists the last used camera selection.
type SettingsRecorder interface {
	SetLastUsed(ctx context.Context, cameraType, ip string) error
}

// Options configures a Relay.
type Options struct {
	DestDir           string
	HeartbeatInterval time.Duration
	DrainTimeout      time.Duration
	Logger            *slog.Logger
}

// Outcome summarizes how a session ended.
type Outcome struct {
	SessionID    string
	Success      bool
	Disconnected bool
	Launched     bool
	ExitCode     int
	Reason       string
}

// Relay runs download sessions: probe, launch, stream, finalize.
type Relay struct {
	prober   Prober
	launcher Launcher
	settings SettingsRecorder
	destDir  string
	interval time.Duration
	drain    time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// New constructs a relay. settings may be nil.
func New(prober Prober, launcher Launcher, settings SettingsRecorder, opts Options) *Relay {
	interval := opts.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	drain := opts.DrainTimeout
	if drain <= 0 {
		drain = DefaultDrainTimeout
	}
	return &Relay{
		prober:   prober,
		launcher: launcher,
		settings: settings,
		destDir:  opts.DestDir,
		interval: interval,
		drain:    drain,
		logger:   logging.NewComponentLogger(opts.Logger, "relay"),
		sessions: make(map[string]*Session),
	}
}

// Active returns snapshots of sessions currently running, oldest first.
func (r *Relay) Active() []SessionInfo {
	r.mu.Lock()
	infos := make([]SessionInfo, 0, len(r.sessions))
	for _, sess := range r.sessions {
		infos = append(infos, sess.Info())
	}
	r.mu.Unlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].StartedAt.Before(infos[j].StartedAt) })
	return infos
}

// Run drives one session to completion, writing events to sink. It returns
// once the session is closed and any launched process has been reaped.
// Cancelling ctx is treated as a client disconnect.
func (r *Relay) Run(ctx context.Context, req Request, sink Sink) Outcome {
	req.CameraType = strings.ToLower(strings.TrimSpace(req.CameraType))
	req.Address = strings.TrimSpace(req.Address)

	sess := newSession(req, time.Now())
	r.track(sess)
	defer r.untrack(sess)

	ctx = services.WithSessionID(ctx, sess.ID)
	ctx = services.WithCameraType(ctx, req.CameraType)
	procCtx, procCancel := context.WithCancel(ctx)

	run := &sessionRun{
		relay:      r,
		sess:       sess,
		sink:       sink,
		ctx:        ctx,
		procCtx:    procCtx,
		procCancel: procCancel,
		logger:     logging.ForSession(r.logger, sess.ID, req.CameraType, req.Address),
		outcome:    Outcome{SessionID: sess.ID, ExitCode: -1},
	}
	defer run.release()

	run.logger.Info("download session opened", logging.String(logging.FieldEventType, "session_opened"))
	run.execute()
	return run.outcome
}

func (r *Relay) track(sess *Session) {
	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()
}

func (r *Relay) untrack(sess *Session) {
	r.mu.Lock()
	delete(r.sessions, sess.ID)
	r.mu.Unlock()
}

type sessionRun struct {
	relay      *Relay
	sess       *Session
	sink       Sink
	ctx        context.Context
	procCtx    context.Context
	procCancel context.CancelFunc
	logger     *slog.Logger

	proc         Process
	waited       bool
	terminalSent bool
	failure      string
	disconnected bool
	outcome      Outcome
}

func (s *sessionRun) execute() {
	handlers := map[State]func() State{
		StateConnecting: s.connect,
		StateProbing:    s.probe,
		StateLaunching:  s.launch,
		StateStreaming:  s.stream,
		StateFinalizing: s.finalize,
	}
	state := StateConnecting
	for state != StateClosed && !s.disconnected {
		if err := s.sess.advance(state); err != nil {
			s.logger.Error("relay state machine violated", logging.Error(err))
			break
		}
		state = s.guard(state, handlers[state])
	}
	_ = s.sess.advance(StateClosed)
}

// guard runs one state handler, downgrading a panic to a narrated error.
func (s *sessionRun) guard(state State, handler func() State) (next State) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		logging.ErrorWithContext(s.logger, "relay state panicked", "relay_internal_fault",
			logging.String(logging.FieldState, state.String()),
			logging.Any("panic", rec),
			logging.String(logging.FieldErrorHint, "report this failure with the daemon log"),
		)
		message := fmt.Sprintf("Error during download: %v", rec)
		if state < StateFinalizing {
			s.fail(message)
			next = StateFinalizing
			return
		}
		next = StateClosed
		if !s.terminalSent {
			s.fail(message)
			s.finish(eventstream.Terminal(false, message))
		}
	}()
	return handler()
}

func (s *sessionRun) connect() State {
	s.emit(eventstream.Info(fmt.Sprintf("Connecting to camera at %s", s.sess.Address)))
	return StateProbing
}

func (s *sessionRun) probe() State {
	result := s.relay.prober.Probe(s.ctx, s.sess.Address)
	if s.ctx.Err() != nil {
		s.disconnect()
		return StateClosed
	}
	if !result.Reachable {
		reason := strings.TrimSpace(result.Reason)
		if reason == "" {
			reason = fmt.Sprintf("Camera at %s is not reachable", s.sess.Address)
		}
		s.failure = reason
		s.emit(eventstream.Error(fmt.Sprintf("Error: %s. Please check the connection and try again", reason)))
		return StateFinalizing
	}
	return StateLaunching
}

func (s *sessionRun) launch() State {
	s.recordSelection()
	s.emit(eventstream.Info(fmt.Sprintf("Started download from %s camera at %s", s.sess.CameraType, s.sess.Address)))
	if s.disconnected {
		return StateClosed
	}

	proc, err := s.relay.launcher.Launch(s.procCtx, s.sess.CameraType, s.sess.Address, s.relay.destDir)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, jobs.ErrNotFound) {
			reason = fmt.Sprintf("download job for %s camera not found", s.sess.CameraType)
		}
		logging.WarnWithContext(s.logger, "download job launch failed", "job_launch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check jobs.script_dir and jobs.programs"),
			logging.String(logging.FieldImpact, "no files will be downloaded"),
		)
		s.failure = reason
		s.emit(eventstream.Error("Error: " + reason))
		return StateFinalizing
	}
	s.proc = proc
	s.outcome.Launched = true
	return StateStreaming
}

// recordSelection persists the camera selection without letting a storage
// failure affect the session.
func (s *sessionRun) recordSelection() {
	if s.relay.settings == nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, settingsWriteTimeout)
	defer cancel()
	if err := s.relay.settings.SetLastUsed(ctx, s.sess.CameraType, s.sess.Address); err != nil {
		logging.WarnWithContext(s.logger, "camera selection not saved", "settings_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions"),
			logging.String(logging.FieldImpact, "the UI will not remember this camera address"),
		)
	}
}

// stream forwards output until the job has exited and its stdout is closed.
// Heartbeats keep flowing while either is outstanding. Output still arriving
// after the exit is forwarded for at most the drain timeout.
func (s *sessionRun) stream() State {
	heartbeat := NewHeartbeat(s.relay.interval)
	defer heartbeat.Stop()
	sampler := logging.NewProgressSampler(10)
	lines := s.proc.Lines()
	exited := s.proc.Done()
	var drain <-chan time.Time

	for {
		select {
		case <-s.ctx.Done():
			s.disconnect()
			return StateClosed
		case <-exited:
			exited = nil
			if lines == nil {
				s.reap()
				return StateFinalizing
			}
			timer := time.NewTimer(s.relay.drain)
			defer timer.Stop()
			drain = timer.C
		case <-drain:
			logging.WarnWithContext(s.logger, "job exited but its output stayed open; closing stream", "job_output_abandoned",
				logging.Duration("drain_timeout", s.relay.drain),
				logging.String(logging.FieldErrorHint, "a background process started by the job still holds stdout"),
				logging.String(logging.FieldImpact, "output written after the job exited is not forwarded"),
			)
			s.reap()
			return StateFinalizing
		case line, ok := <-lines:
			if !ok {
				lines = nil
				if exited == nil {
					s.reap()
					return StateFinalizing
				}
				continue
			}
			if !s.emit(eventstream.Info(line)) {
				return StateClosed
			}
			heartbeat.Reset()
			s.sess.markProgress(time.Now())
			if sampler.ShouldLogLine(line) {
				s.logger.Info("job progress", logging.String("line", line))
			} else {
				s.logger.Debug("job output", logging.String("line", line))
			}
		case <-heartbeat.C():
			if !s.emit(eventstream.Heartbeat()) {
				return StateClosed
			}
			heartbeat.Reset()
		}
	}
}

func (s *sessionRun) finalize() State {
	if s.proc != nil && !s.waited {
		// Reached on an internal fault while the job may still be running.
		s.procCancel()
		s.reap()
	}

	var terminal eventstream.Event
	switch {
	case s.failure != "":
		terminal = eventstream.Terminal(false, s.failure)
	case s.outcome.ExitCode == 0:
		terminal = eventstream.Terminal(true, "completed")
		s.outcome.Success = true
	default:
		detail := s.proc.Stderr()
		if detail == "" {
			detail = fmt.Sprintf("exit status %d", s.outcome.ExitCode)
		}
		s.failure = detail
		terminal = eventstream.Terminal(false, detail)
	}
	s.outcome.Reason = s.failure
	s.finish(terminal)
	return StateClosed
}

// finish sends the terminal event followed by the trailing heartbeat.
func (s *sessionRun) finish(terminal eventstream.Event) {
	s.terminalSent = true
	if s.emit(terminal) {
		s.emit(eventstream.Heartbeat())
	}
}

func (s *sessionRun) reap() {
	if s.proc == nil || s.waited {
		return
	}
	code, err := s.proc.Wait()
	s.waited = true
	s.outcome.ExitCode = code
	if err != nil && !s.disconnected && s.failure == "" {
		s.failure = fmt.Sprintf("Error during download: %v", err)
	}
}

// fail records reason as the session failure and narrates it.
func (s *sessionRun) fail(reason string) {
	if s.failure == "" {
		s.failure = reason
	}
	s.emit(eventstream.Error(reason))
}

// emit delivers ev unless the client has gone away. It reports whether the
// event was delivered.
func (s *sessionRun) emit(ev eventstream.Event) bool {
	if s.disconnected {
		return false
	}
	if s.ctx.Err() != nil {
		s.disconnect()
		return false
	}
	if err := s.sink.Send(ev); err != nil {
		s.logger.Debug("event sink closed", logging.Error(err))
		s.disconnect()
		return false
	}
	return true
}

func (s *sessionRun) disconnect() {
	if s.disconnected {
		return
	}
	s.disconnected = true
	s.outcome.Disconnected = true
	s.procCancel()
	s.logger.Info("client disconnected; cleaning up session",
		logging.String(logging.FieldState, s.sess.State().String()),
		logging.String(logging.FieldEventType, "session_disconnected"),
	)
}

// release runs on every exit path and guarantees the child is reaped.
func (s *sessionRun) release() {
	if s.proc != nil && !s.waited {
		s.procCancel()
		s.reap()
	}
	s.procCancel()
	s.logger.Info("download session closed",
		logging.Bool("success", s.outcome.Success),
		logging.Bool("disconnected", s.outcome.Disconnected),
		logging.Int("exit_code", s.outcome.ExitCode),
		logging.Duration("duration", time.Since(s.sess.StartedAt)),
		logging.String(logging.FieldEventType, "session_closed"),
	)
}
