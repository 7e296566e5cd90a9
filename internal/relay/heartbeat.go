package relay

import "time"

// DefaultHeartbeatInterval is the idle time after which a keep-alive is sent.
const DefaultHeartbeatInterval = 5 * time.Second

// Heartbeat is a reusable idle timer. It fires once interval has passed
// without a Reset and must be Reset again to fire another time.
type Heartbeat struct {
	interval time.Duration
	timer    *time.Timer
}

// NewHeartbeat returns a heartbeat armed from now.
func NewHeartbeat(interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{interval: interval, timer: time.NewTimer(interval)}
}

// C delivers a value when the idle interval elapses.
func (h *Heartbeat) C() <-chan time.Time {
	return h.timer.C
}

// Reset restarts the idle clock from now. A pending unreceived tick is discarded.
func (h *Heartbeat) Reset() {
	h.timer.Reset(h.interval)
}

// Stop cancels the timer.
func (h *Heartbeat) Stop() {
	h.timer.Stop()
}

// Interval returns the configured idle interval.
func (h *Heartbeat) Interval() time.Duration {
	return h.interval
}
