package eventstream

// Kind identifies an event variant.
type Kind string

const (
	KindInfo      Kind = "info"
	KindError     Kind = "error"
	KindHeartbeat Kind = "heartbeat"
	KindTerminal  Kind = "terminal"
)

const (
	completedText     = "Download completed successfully!"
	failedPrefix      = "Download failed with Error: "
	defaultTerminalOK = "completed"
)

// Event is an immutable value emitted onto a progress stream.
type Event struct {
	Kind    Kind   `json:"kind"`
	Text    string `json:"text,omitempty"`
	Success bool   `json:"success,omitempty"`
}

// Info narrates progress.
func Info(text string) Event {
	return Event{Kind: KindInfo, Text: text}
}

// Error narrates a failure. It does not end the stream by itself.
func Error(text string) Event {
	return Event{Kind: KindError, Text: text}
}

// Heartbeat is a content-free keep-alive.
func Heartbeat() Event {
	return Event{Kind: KindHeartbeat}
}

// Terminal reports the final status of a session. For successful sessions
// detail is informational only.
func Terminal(success bool, detail string) Event {
	if success && detail == "" {
		detail = defaultTerminalOK
	}
	return Event{Kind: KindTerminal, Text: detail, Success: success}
}

// Message returns the user-facing text carried by the event, as it appears in
// the data lines of an encoded frame. Heartbeats have no message.
func (e Event) Message() string {
	switch e.Kind {
	case KindHeartbeat:
		return ""
	case KindTerminal:
		if e.Success {
			return completedText
		}
		return failedPrefix + e.Text
	default:
		return e.Text
	}
}

// IsTerminal reports whether the event ends a session.
func (e Event) IsTerminal() bool {
	return e.Kind == KindTerminal
}
