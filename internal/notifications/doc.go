// Package notifications publishes download outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the daemon can notify unconditionally.
package notifications
