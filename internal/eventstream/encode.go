package eventstream

import (
	"bytes"
	"strings"
)

var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Encode serializes e as one server-sent-events frame. Heartbeats become an
// empty comment frame; every other event becomes one "data: " line per line
// of its message followed by a blank line. Encode is pure.
func Encode(e Event) []byte {
	if e.Kind == KindHeartbeat {
		return []byte(":\n\n")
	}
	message := newlineReplacer.Replace(e.Message())
	lines := strings.Split(message, "\n")

	var buf bytes.Buffer
	buf.Grow(len(message) + len(lines)*7 + 1)
	for _, line := range lines {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}
