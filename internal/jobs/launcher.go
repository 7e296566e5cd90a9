package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"camdl/internal/logging"
	"camdl/internal/services"
)

const defaultWaitDelay = 2 * time.Second

// Stats counts processes started and reaped by a Launcher.
type Stats struct {
	Launched int64 `json:"launched"`
	Reaped   int64 `json:"reaped"`
}

// Active returns the number of launched processes not yet reaped.
func (s Stats) Active() int64 {
	return s.Launched - s.Reaped
}

// LaunchOption configures a Launcher.
type LaunchOption func(*Launcher)

// WithLogger attaches a logger to the launcher.
func WithLogger(logger *slog.Logger) LaunchOption {
	return func(l *Launcher) {
		l.logger = logging.NewComponentLogger(logger, "jobs")
	}
}

// WithWaitDelay bounds how long Wait keeps waiting for output pipes after the
// process has exited or been killed.
func WithWaitDelay(d time.Duration) LaunchOption {
	return func(l *Launcher) {
		if d > 0 {
			l.waitDelay = d
		}
	}
}

// Launcher starts download programs as child processes in their own process
// group so an abandoned session can kill the whole tree.
type Launcher struct {
	registry  *Registry
	logger    *slog.Logger
	waitDelay time.Duration
	launched  atomic.Int64
	reaped    atomic.Int64
}

// NewLauncher constructs a launcher backed by registry.
func NewLauncher(registry *Registry, opts ...LaunchOption) *Launcher {
	l := &Launcher{
		registry:  registry,
		logger:    logging.NewNop(),
		waitDelay: defaultWaitDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registry exposes the launcher's program registry.
func (l *Launcher) Registry() *Registry {
	return l.registry
}

// Stats reports launch and reap counters.
func (l *Launcher) Stats() Stats {
	return Stats{Launched: l.launched.Load(), Reaped: l.reaped.Load()}
}

// Launch resolves cameraType and starts its program with address and destDir.
// Cancelling ctx kills the child's process group. The caller must call Wait
// on the returned Handle exactly once the session is done with it.
func (l *Launcher) Launch(ctx context.Context, cameraType, address, destDir string) (*Handle, error) {
	program, err := l.registry.Resolve(cameraType)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "jobs", "prepare destination", destDir, err)
	}

	argv := program.Command(address, destDir)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd.Process.Pid)
	}
	cmd.WaitDelay = l.waitDelay

	// stdout is a plain pipe rather than StdoutPipe so exec.Cmd.Wait never
	// closes it underneath the reader.
	stdout, stdoutWriter, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutWriter
	stderr := newTailBuffer(maxStderrBytes)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = stdoutWriter.Close()
		return nil, services.Wrap(services.ErrExternalTool, "jobs", "start", program.Path, err)
	}
	_ = stdoutWriter.Close()
	l.launched.Add(1)

	handle := newHandle(cmd, program, stdout, stderr, l)
	l.logger.Info("download job started",
		logging.String(logging.FieldCameraType, program.CameraType),
		logging.String(logging.FieldAddress, address),
		logging.Int(logging.FieldPID, handle.PID()),
		logging.String("program", program.Path),
		logging.String(logging.FieldEventType, "job_started"),
	)
	return handle, nil
}

func (l *Launcher) markReaped(h *Handle, code int, err error) {
	l.reaped.Add(1)
	attrs := []logging.Attr{
		logging.String(logging.FieldCameraType, h.program.CameraType),
		logging.Int(logging.FieldPID, h.PID()),
		logging.Int("exit_code", code),
		logging.Duration("duration", time.Since(h.startedAt)),
		logging.String(logging.FieldEventType, "job_reaped"),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	l.logger.Info("download job reaped", logging.Args(attrs...)...)
}

func killGroup(pid int) error {
	err := unix.Kill(-pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
