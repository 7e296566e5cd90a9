package probe_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"camdl/internal/probe"
	"camdl/internal/testsupport"
)

type stubExecutor struct {
	output []byte
	code   int
	err    error
	block  bool
	calls  int
	binary string
	args   []string
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, int, error) {
	s.calls++
	s.binary = binary
	s.args = append([]string(nil), args...)
	if s.block {
		<-ctx.Done()
		return nil, -1, ctx.Err()
	}
	return s.output, s.code, s.err
}

func TestProbeReachable(t *testing.T) {
	exec := &stubExecutor{output: []byte("3 packets transmitted, 3 received\n")}
	p := probe.New("ping", 3, 2*time.Second, probe.WithExecutor(exec))

	result := p.Probe(context.Background(), "10.0.0.5")
	if !result.Reachable {
		t.Fatalf("expected reachable, got %+v", result)
	}
	if result.Reason != "Camera at 10.0.0.5 is reachable" {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
	if got := strings.Join(exec.args, " "); got != "-c 3 -W 2 10.0.0.5" {
		t.Fatalf("unexpected args: %q", got)
	}
	if exec.binary != "ping" {
		t.Fatalf("unexpected binary: %q", exec.binary)
	}
}

func TestProbeUnreachableOnNonZeroExit(t *testing.T) {
	exec := &stubExecutor{code: 1}
	result := probe.New("ping", 3, 2*time.Second, probe.WithExecutor(exec)).Probe(context.Background(), "10.0.0.5")
	if result.Reachable {
		t.Fatal("expected unreachable")
	}
	if result.Reason != "Camera at 10.0.0.5 is not reachable" {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestProbeMapsExecutorFault(t *testing.T) {
	exec := &stubExecutor{err: errors.New("exec: \"ping\": executable file not found in $PATH")}
	result := probe.New("ping", 3, 2*time.Second, probe.WithExecutor(exec)).Probe(context.Background(), "10.0.0.5")
	if result.Reachable {
		t.Fatal("expected unreachable")
	}
	if !strings.HasPrefix(result.Reason, "Error pinging camera: ") {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
}

func TestProbeRejectsInvalidAddressWithoutRunning(t *testing.T) {
	exec := &stubExecutor{}
	p := probe.New("ping", 3, 2*time.Second, probe.WithExecutor(exec))
	for _, address := range []string{"", "-f", "10.0.0.5; rm -rf /", "host name"} {
		result := p.Probe(context.Background(), address)
		if result.Reachable {
			t.Fatalf("expected %q to be unreachable", address)
		}
	}
	if exec.calls != 0 {
		t.Fatalf("expected executor not to run, got %d calls", exec.calls)
	}
}

func TestProbeHonoursCancellation(t *testing.T) {
	exec := &stubExecutor{block: true}
	p := probe.New("ping", 3, 2*time.Second, probe.WithExecutor(exec))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := p.Probe(ctx, "10.0.0.5")
	if result.Reachable {
		t.Fatal("expected unreachable on cancelled context")
	}
}

func TestDeadlineBoundsAttempts(t *testing.T) {
	p := probe.New("ping", 3, 2*time.Second)
	if p.Deadline() != 8*time.Second {
		t.Fatalf("unexpected deadline: %s", p.Deadline())
	}
}

func TestValidateAddress(t *testing.T) {
	valid := []string{"192.168.144.25", "fe80::1", "camera.local", "siyi-a8"}
	for _, address := range valid {
		if err := probe.ValidateAddress(address); err != nil {
			t.Fatalf("expected %q valid: %v", address, err)
		}
	}
	invalid := []string{"", "-c", "a b", "cam$", "trailing-"}
	for _, address := range invalid {
		if err := probe.ValidateAddress(address); err == nil {
			t.Fatalf("expected %q invalid", address)
		}
	}
}

func TestProbeWithRealCommand(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithProbeExit(0))
	p := probe.New(cfg.Probe.Binary, cfg.Probe.Count, cfg.ProbeTimeout())
	result := p.Probe(context.Background(), "127.0.0.1")
	if !result.Reachable {
		t.Fatalf("expected reachable via stub, got %+v", result)
	}
	if !strings.Contains(result.Output, "ping stub -c 3 -W 2 127.0.0.1") {
		t.Fatalf("unexpected output: %q", result.Output)
	}

	cfg = testsupport.NewConfig(t, testsupport.WithProbeExit(2))
	p = probe.New(cfg.Probe.Binary, cfg.Probe.Count, cfg.ProbeTimeout())
	if result := p.Probe(context.Background(), "127.0.0.1"); result.Reachable {
		t.Fatal("expected unreachable via failing stub")
	}
}
