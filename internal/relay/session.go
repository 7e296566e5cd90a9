package relay

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a relay session lifecycle state. States only move forward.
type State int

const (
	StateConnecting State = iota
	StateProbing
	StateLaunching
	StateStreaming
	StateFinalizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateProbing:
		return "probing"
	case StateLaunching:
		return "launching"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is one client-initiated download and its progress stream.
type Session struct {
	ID         string
	CameraType string
	Address    string
	StartedAt  time.Time

	mu             sync.Mutex
	state          State
	entered        bool
	lastProgressAt time.Time
}

// SessionInfo is a point-in-time copy of a session for status reporting.
type SessionInfo struct {
	ID             string    `json:"id"`
	CameraType     string    `json:"camera_type"`
	Address        string    `json:"address"`
	State          string    `json:"state"`
	StartedAt      time.Time `json:"started_at"`
	LastProgressAt time.Time `json:"last_progress_at"`
}

func newSession(req Request, now time.Time) *Session {
	return &Session{
		ID:             uuid.NewString(),
		CameraType:     req.CameraType,
		Address:        req.Address,
		StartedAt:      now,
		lastProgressAt: now,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastProgressAt reports when the last real output line was forwarded.
func (s *Session) LastProgressAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastProgressAt
}

func (s *Session) advance(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entered && next <= s.state {
		return fmt.Errorf("session %s: invalid transition %s -> %s", s.ID, s.state, next)
	}
	s.state = next
	s.entered = true
	return nil
}

func (s *Session) markProgress(now time.Time) {
	s.mu.Lock()
	s.lastProgressAt = now
	s.mu.Unlock()
}

// Info returns a snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:             s.ID,
		CameraType:     s.CameraType,
		Address:        s.Address,
		State:          s.state.String(),
		StartedAt:      s.StartedAt,
		LastProgressAt: s.lastProgressAt,
	}
}
