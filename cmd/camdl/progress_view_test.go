package main

import (
	"bytes"
	"strings"
	"testing"

	"camdl/internal/eventstream"
)

func TestProgressViewEchoesLinesWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	view := newProgressView(&buf, false)
	view.handle(eventstream.Info("found 3 files"))
	view.handle(eventstream.Heartbeat())
	view.handle(eventstream.Info("downloaded 1/3"))
	view.handle(eventstream.Error("checksum mismatch"))
	view.handle(eventstream.Terminal(true, ""))
	view.finish()

	want := "found 3 files\ndownloaded 1/3\nerror: checksum mismatch\n"
	if buf.String() != want {
		t.Fatalf("unexpected output %q, want %q", buf.String(), want)
	}
}

func TestProgressViewDrivesBarOnTerminal(t *testing.T) {
	var buf bytes.Buffer
	view := newProgressView(&buf, true)
	view.handle(eventstream.Info("downloading 2/4"))
	if view.bar == nil {
		t.Fatal("expected progress bar for fraction lines")
	}
	view.handle(eventstream.Info("finished listing"))
	view.finish()
	if view.bar != nil {
		t.Fatal("expected bar to be released after finish")
	}
	if !strings.Contains(buf.String(), "finished listing") {
		t.Fatalf("expected plain lines to be echoed, got %q", buf.String())
	}
}
