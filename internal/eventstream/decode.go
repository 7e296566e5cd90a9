package eventstream

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// Decoder reads frames produced by Encode and reconstructs events. Frames are
// classified by their text, so Error events come back as Info unless their
// message starts with "Error".
//
// A job can print a line that reads exactly like a result ("Download completed
// successfully!" or "Download failed with Error: ..."). The relay always sends
// its result as the last data frame, so a result-looking frame is only
// returned as Terminal once the stream ends without another data frame;
// otherwise it is returned as Info. This means the real result is delivered
// when the server closes the stream, just after its trailing heartbeat.
type Decoder struct {
	scanner *bufio.Scanner
	queued  []frame
	err     error
}

type frame struct {
	data      string
	heartbeat bool
}

// NewDecoder reads frames from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &Decoder{scanner: scanner}
}

// Next returns the next event. It returns io.EOF when the stream ends cleanly
// on a frame boundary and io.ErrUnexpectedEOF for a truncated frame.
func (d *Decoder) Next() (Event, error) {
	f, err := d.next()
	if err != nil {
		return Event{}, err
	}
	if f.heartbeat {
		return Heartbeat(), nil
	}
	ev := classify(f.data)
	if !ev.IsTerminal() {
		return ev, nil
	}

	var held []frame
	for {
		after, err := d.next()
		if err != nil {
			d.queued = held
			if errors.Is(err, io.EOF) {
				return ev, nil
			}
			return Info(f.data), nil
		}
		held = append(held, after)
		if !after.heartbeat {
			d.queued = append(held, d.queued...)
			return Info(f.data), nil
		}
	}
}

func (d *Decoder) next() (frame, error) {
	if len(d.queued) > 0 {
		f := d.queued[0]
		d.queued = d.queued[1:]
		return f, nil
	}
	if d.err != nil {
		return frame{}, d.err
	}
	f, err := d.read()
	if err != nil {
		d.err = err
	}
	return f, err
}

func (d *Decoder) read() (frame, error) {
	var (
		data    []string
		hasData bool
		comment bool
		started bool
	)
	for d.scanner.Scan() {
		line := d.scanner.Text()
		if line == "" {
			if !started {
				continue
			}
			if hasData {
				return frame{data: strings.Join(data, "\n")}, nil
			}
			if comment {
				return frame{heartbeat: true}, nil
			}
			started = false
			continue
		}
		started = true
		switch {
		case strings.HasPrefix(line, ":"):
			comment = true
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(line, "data:")
			value = strings.TrimPrefix(value, " ")
			data = append(data, value)
			hasData = true
		}
	}
	if err := d.scanner.Err(); err != nil {
		return frame{}, err
	}
	if started {
		return frame{}, io.ErrUnexpectedEOF
	}
	return frame{}, io.EOF
}

func classify(message string) Event {
	switch {
	case message == completedText:
		return Terminal(true, defaultTerminalOK)
	case strings.HasPrefix(message, failedPrefix):
		return Terminal(false, strings.TrimPrefix(message, failedPrefix))
	case strings.HasPrefix(message, "Error"):
		return Error(message)
	default:
		return Info(message)
	}
}
