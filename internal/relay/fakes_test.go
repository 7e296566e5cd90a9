package relay_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"camdl/internal/eventstream"
	"camdl/internal/probe"
	"camdl/internal/relay"
)

type step struct {
	delay time.Duration
	line  string
}

type processSpec struct {
	steps    []step
	hold     bool
	exitCode int
	stderr   string
	waitErr  error
	// holdOutput keeps stdout open after exit until the process is reaped,
	// the way a backgrounded grandchild would.
	holdOutput bool
	// runAfterClose keeps the process alive this long after stdout closes.
	runAfterClose time.Duration
}

type fakeProcess struct {
	spec   processSpec
	lines  chan string
	exited chan struct{}
	reaped chan struct{}
	killed atomic.Bool
	waits  atomic.Int32
	once   sync.Once
	code   int
}

func startFakeProcess(ctx context.Context, spec processSpec) *fakeProcess {
	p := &fakeProcess{
		spec:   spec,
		lines:  make(chan string),
		exited: make(chan struct{}),
		reaped: make(chan struct{}),
	}
	go p.run(ctx)
	return p
}

func (p *fakeProcess) run(ctx context.Context) {
	if !p.emitSteps(ctx) {
		p.killed.Store(true)
		close(p.lines)
		close(p.exited)
		return
	}
	switch {
	case p.spec.hold:
		<-ctx.Done()
		p.killed.Store(true)
		close(p.lines)
		close(p.exited)
	case p.spec.holdOutput:
		close(p.exited)
		<-p.reaped
		close(p.lines)
	default:
		close(p.lines)
		if p.spec.runAfterClose > 0 {
			select {
			case <-time.After(p.spec.runAfterClose):
			case <-ctx.Done():
				p.killed.Store(true)
			}
		}
		close(p.exited)
	}
}

func (p *fakeProcess) emitSteps(ctx context.Context) bool {
	for _, s := range p.spec.steps {
		if s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return false
			}
		}
		select {
		case p.lines <- s.line:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (p *fakeProcess) Lines() <-chan string { return p.lines }

func (p *fakeProcess) Done() <-chan struct{} { return p.exited }

func (p *fakeProcess) Stderr() string { return p.spec.stderr }

func (p *fakeProcess) PID() int { return 4242 }

func (p *fakeProcess) Wait() (int, error) {
	p.waits.Add(1)
	p.once.Do(func() {
		<-p.exited
		close(p.reaped)
		p.code = p.spec.exitCode
		if p.killed.Load() {
			p.code = -1
		}
	})
	return p.code, p.spec.waitErr
}

type fakeLauncher struct {
	spec     processSpec
	err      error
	panicMsg string

	mu       sync.Mutex
	procs    []*fakeProcess
	calls    int
	lastArgs []string
}

func (l *fakeLauncher) Launch(ctx context.Context, cameraType, address, destDir string) (relay.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.lastArgs = []string{cameraType, address, destDir}
	if l.panicMsg != "" {
		panic(l.panicMsg)
	}
	if l.err != nil {
		return nil, l.err
	}
	proc := startFakeProcess(ctx, l.spec)
	l.procs = append(l.procs, proc)
	return proc, nil
}

// reapedAll reports whether every launched process was waited on.
func (l *fakeLauncher) reapedAll() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.procs {
		if p.waits.Load() == 0 {
			return false
		}
	}
	return true
}

type fakeProber struct {
	reachable bool
	reason    string
	panicMsg  string
	calls     atomic.Int32
}

func (p *fakeProber) Probe(_ context.Context, address string) probe.Result {
	p.calls.Add(1)
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	reason := p.reason
	if reason == "" && !p.reachable {
		reason = fmt.Sprintf("Camera at %s is not reachable", address)
	}
	return probe.Result{Address: address, Reachable: p.reachable, Reason: reason}
}

type fakeSettings struct {
	err   error
	mu    sync.Mutex
	calls [][2]string
}

func (s *fakeSettings) SetLastUsed(_ context.Context, cameraType, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, [2]string{cameraType, ip})
	return s.err
}

var errSinkClosed = errors.New("sink closed")

type recordingSink struct {
	mu     sync.Mutex
	events []eventstream.Event
	failAt int
	onSend func(eventstream.Event)
}

func (s *recordingSink) Send(ev eventstream.Event) error {
	s.mu.Lock()
	if s.failAt > 0 && len(s.events)+1 >= s.failAt {
		s.mu.Unlock()
		return errSinkClosed
	}
	s.events = append(s.events, ev)
	hook := s.onSend
	s.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
	return nil
}

func (s *recordingSink) snapshot() []eventstream.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]eventstream.Event(nil), s.events...)
}

func describe(events []eventstream.Event) string {
	parts := make([]string, 0, len(events))
	for _, ev := range events {
		switch ev.Kind {
		case eventstream.KindHeartbeat:
			parts = append(parts, "heartbeat")
		case eventstream.KindTerminal:
			parts = append(parts, fmt.Sprintf("terminal(%t, %q)", ev.Success, ev.Text))
		default:
			parts = append(parts, fmt.Sprintf("%s(%q)", ev.Kind, ev.Text))
		}
	}
	return strings.Join(parts, "\n")
}

func countKind(events []eventstream.Event, kind eventstream.Kind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
