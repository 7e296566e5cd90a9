package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"camdl/internal/logging"
)

var hostnamePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9.-]*[A-Za-z0-9])?$`)

// Result reports the outcome of a reachability check.
type Result struct {
	Address   string
	Reachable bool
	Reason    string
	Output    string
	Duration  time.Duration
}

// Executor abstracts command execution for testability. Run returns the
// combined output and the process exit code; err is non-nil only when the
// command could not be run or was interrupted.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (output []byte, exitCode int, err error)
}

// Option configures the prober.
type Option func(*Prober)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(p *Prober) {
		if exec != nil {
			p.exec = exec
		}
	}
}

// WithLogger attaches a logger to the prober.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Prober) {
		p.logger = logging.NewComponentLogger(logger, "probe")
	}
}

// Prober checks whether a device answers ICMP echo requests.
type Prober struct {
	binary  string
	count   int
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger
}

// New constructs a Prober that sends count echo requests, waiting at most
// timeout for each reply.
func New(binary string, count int, timeout time.Duration, opts ...Option) *Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ping"
	}
	if count <= 0 {
		count = 3
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	p := &Prober{
		binary:  binary,
		count:   count,
		timeout: timeout,
		exec:    commandExecutor{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Deadline returns the overall bound applied to a single probe.
func (p *Prober) Deadline() time.Duration {
	return time.Duration(p.count)*p.timeout + 2*time.Second
}

// Probe checks address. It never returns an error: every failure, including
// invalid input and executor faults, is reported as an unreachable Result.
func (p *Prober) Probe(ctx context.Context, address string) Result {
	address = strings.TrimSpace(address)
	start := time.Now()
	result := Result{Address: address}

	if err := ValidateAddress(address); err != nil {
		result.Reason = fmt.Sprintf("Invalid camera address %q", address)
		p.logger.Warn("probe rejected address",
			logging.String(logging.FieldAddress, address),
			logging.Error(err),
			logging.String(logging.FieldEventType, "probe_invalid_address"),
		)
		return result
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.Deadline())
	defer cancel()

	timeoutSeconds := int(p.timeout.Round(time.Second) / time.Second)
	if timeoutSeconds < 1 {
		timeoutSeconds = 1
	}
	args := []string{"-c", strconv.Itoa(p.count), "-W", strconv.Itoa(timeoutSeconds), address}

	p.logger.Debug("pinging camera", logging.String(logging.FieldAddress, address))
	output, code, err := p.exec.Run(probeCtx, p.binary, args)
	result.Duration = time.Since(start)
	result.Output = strings.TrimSpace(string(output))

	switch {
	case err != nil && errors.Is(probeCtx.Err(), context.DeadlineExceeded):
		result.Reason = fmt.Sprintf("Camera at %s did not respond within %s", address, p.Deadline())
	case err != nil:
		result.Reason = fmt.Sprintf("Error pinging camera: %v", err)
	case code == 0:
		result.Reachable = true
		result.Reason = fmt.Sprintf("Camera at %s is reachable", address)
	default:
		result.Reason = fmt.Sprintf("Camera at %s is not reachable", address)
	}

	if result.Reachable {
		p.logger.Info("camera reachable",
			logging.String(logging.FieldAddress, address),
			logging.Duration("duration", result.Duration),
		)
	} else {
		logging.WarnWithContext(p.logger, "camera not reachable", "probe_unreachable",
			logging.String(logging.FieldAddress, address),
			logging.String("reason", result.Reason),
			logging.String(logging.FieldErrorHint, "check the camera network link and IP address"),
			logging.String(logging.FieldImpact, "download will not start"),
		)
	}
	return result
}

// ValidateAddress accepts IP literals and plain host names. Anything that
// could be parsed as a command-line flag is rejected.
func ValidateAddress(address string) error {
	if address == "" {
		return errors.New("address is empty")
	}
	if net.ParseIP(address) != nil {
		return nil
	}
	if len(address) > 253 || !hostnamePattern.MatchString(address) {
		return fmt.Errorf("address %q is not an IP or host name", address)
	}
	return nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	if err == nil {
		return buf.Bytes(), 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return buf.Bytes(), exitErr.ExitCode(), nil
	}
	return buf.Bytes(), -1, err
}
