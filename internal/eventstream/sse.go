package eventstream

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SSEWriter writes encoded events to an HTTP response and flushes each frame.
type SSEWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewSSEWriter sets event-stream headers, commits the response, and lifts any
// server write deadline so long sessions are not cut off.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return nil, fmt.Errorf("clear write deadline: %w", err)
	}
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("flush headers: %w", err)
	}
	return &SSEWriter{w: w, rc: rc}, nil
}

// Send writes one frame and flushes it to the client. An error means the
// client is gone.
func (s *SSEWriter) Send(e Event) error {
	if _, err := s.w.Write(Encode(e)); err != nil {
		return err
	}
	return s.rc.Flush()
}
