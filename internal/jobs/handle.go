package jobs

import (
	"bufio"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"camdl/internal/logging"
)

const (
	maxStderrBytes = 256 * 1024
	maxLineBytes   = 1024 * 1024
)

// Handle is a running download job. Output lines are delivered on Lines until
// stdout reaches EOF; Done reports the child's own exit, which may come before
// or after that. Wait reaps the process exactly once.
type Handle struct {
	cmd       *exec.Cmd
	program   Program
	stdout    *os.File
	stderr    *tailBuffer
	startedAt time.Time
	launcher  *Launcher

	lines      chan string
	stop       chan struct{}
	readerDone chan struct{}
	exited     chan struct{}

	waitOnce sync.Once
	exitCode int
	waitErr  error
}

func newHandle(cmd *exec.Cmd, program Program, stdout *os.File, stderr *tailBuffer, launcher *Launcher) *Handle {
	h := &Handle{
		cmd:        cmd,
		program:    program,
		stdout:     stdout,
		stderr:     stderr,
		startedAt:  time.Now(),
		launcher:   launcher,
		lines:      make(chan string),
		stop:       make(chan struct{}),
		readerDone: make(chan struct{}),
		exited:     make(chan struct{}),
	}
	go h.readLines(stdout)
	go h.watchExit()
	return h
}

// Lines returns the channel of decoded stdout lines. It is closed when stdout
// reaches EOF or Wait has been called. A background process that inherited
// stdout can hold it open after the job itself has exited.
func (h *Handle) Lines() <-chan string {
	return h.lines
}

// Done is closed once the job process has exited, independent of whether its
// stdout is still open.
func (h *Handle) Done() <-chan struct{} {
	return h.exited
}

// Stderr returns the accumulated error output, bounded to its most recent
// 256 KiB.
func (h *Handle) Stderr() string {
	return h.stderr.String()
}

// PID returns the child's process id.
func (h *Handle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Program returns the resolved program backing this handle.
func (h *Handle) Program() Program {
	return h.program
}

// StartedAt reports when the process was launched.
func (h *Handle) StartedAt() time.Time {
	return h.startedAt
}

// Wait blocks until the process exits and returns its exit status. Later
// calls return the first result. Lines stops delivering once Wait begins;
// undelivered output is drained until the job exits, then the read side of
// stdout is closed so an inherited descriptor cannot hold Wait open.
// A non-zero exit is not an error; err reports failures to reap.
func (h *Handle) Wait() (int, error) {
	h.waitOnce.Do(func() {
		close(h.stop)
		<-h.exited
		_ = h.stdout.Close()
		<-h.readerDone
		h.launcher.markReaped(h, h.exitCode, h.waitErr)
	})
	return h.exitCode, h.waitErr
}

func (h *Handle) watchExit() {
	defer close(h.exited)
	err := h.cmd.Wait()
	h.exitCode, h.waitErr = exitStatus(h.cmd, err)
}

func (h *Handle) readLines(stdout io.Reader) {
	defer close(h.readerDone)
	defer close(h.lines)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.ToValidUTF8(strings.TrimRight(scanner.Text(), "\r"), "�")
		select {
		case h.lines <- line:
		case <-h.stop:
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		h.launcher.logger.Warn("job output unreadable; remaining output discarded",
			logging.Int(logging.FieldPID, h.PID()),
			logging.Error(err),
		)
		_, _ = io.Copy(io.Discard, stdout)
	}
}

func exitStatus(cmd *exec.Cmd, err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode(), nil
	}
	return -1, err
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
