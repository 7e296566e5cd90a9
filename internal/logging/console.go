package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const consoleTimeFormat = "2006-01-02 15:04:05.000"

// consoleHandler writes one line per record:
//
//	<time> <LEVEL> <component>: <message> [<camera_type> <address> #<session>] key=value ...
//
// The session tag collects the fields that identify a download so lines from
// concurrent sessions can be told apart at a glance.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
	attrs     []slog.Attr
	groups    []string
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), qualify(nil, h.groups, attrs)...)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := append([]slog.Attr(nil), h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = qualify(fields, h.groups, []slog.Attr{attr})
		return true
	})

	var component string
	var tag sessionTag
	rest := fields[:0]
	for _, attr := range fields {
		switch attr.Key {
		case FieldComponent:
			component = attr.Value.String()
		case FieldCameraType:
			tag.cameraType = attr.Value.String()
		case FieldAddress:
			tag.address = attr.Value.String()
		case FieldSessionID:
			tag.session = attr.Value.String()
		default:
			rest = append(rest, attr)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var buf bytes.Buffer
	buf.WriteString(ts.Format(consoleTimeFormat))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	buf.WriteByte(' ')
	if component != "" {
		buf.WriteString(component)
		buf.WriteString(": ")
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		buf.WriteString(msg)
	} else {
		buf.WriteString("(no message)")
	}
	tag.writeTo(&buf)
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil && src.File != "" {
			fmt.Fprintf(&buf, " (%s:%d)", filepath.Base(src.File), src.Line)
		}
	}
	for _, attr := range rest {
		buf.WriteByte(' ')
		buf.WriteString(attr.Key)
		buf.WriteByte('=')
		buf.WriteString(consoleValue(attr.Value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

type sessionTag struct {
	cameraType string
	address    string
	session    string
}

func (t sessionTag) writeTo(buf *bytes.Buffer) {
	parts := make([]string, 0, 3)
	if t.cameraType != "" {
		parts = append(parts, t.cameraType)
	}
	if t.address != "" {
		parts = append(parts, t.address)
	}
	if t.session != "" {
		id := t.session
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, "#"+id)
	}
	if len(parts) == 0 {
		return
	}
	buf.WriteString(" [")
	buf.WriteString(strings.Join(parts, " "))
	buf.WriteByte(']')
}

// qualify flattens attrs onto dst, joining group names into dotted keys.
func qualify(dst []slog.Attr, groups []string, attrs []slog.Attr) []slog.Attr {
	for _, attr := range attrs {
		attr.Value = attr.Value.Resolve()
		if attr.Equal(slog.Attr{}) {
			continue
		}
		if attr.Value.Kind() == slog.KindGroup {
			inner := groups
			if attr.Key != "" {
				inner = append(append([]string(nil), groups...), attr.Key)
			}
			dst = qualify(dst, inner, attr.Value.Group())
			continue
		}
		if len(groups) > 0 {
			attr.Key = strings.Join(append(append([]string(nil), groups...), attr.Key), ".")
		}
		dst = append(dst, attr)
	}
	return dst
}

func consoleValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindTime:
		s = v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " =\"\t\n") {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
