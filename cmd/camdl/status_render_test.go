package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"camdl/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("camdl", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "camdl:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("camdl", statusOK, "Running", true)
	if !strings.HasPrefix(got, "\x1b[32m") {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, "\x1b[0m") {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}

func TestPrintStatusSessions(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, api.DaemonStatus{
		Running:     true,
		PID:         42,
		StartedAt:   time.Now().Add(-time.Minute),
		CameraTypes: []string{"siyi"},
		Checks:      []api.CheckResult{{Name: "Download directory", Passed: false, Detail: "not writable"}},
		Sessions: []api.Session{{
			ID:         "abc123",
			CameraType: "siyi",
			Address:    "192.168.144.25",
			State:      "streaming",
			StartedAt:  time.Now(),
		}},
	}, false)

	out := buf.String()
	requireContains(t, out, "Running (pid 42, started 1 minute ago)")
	requireContains(t, out, "[ERROR] not writable")
	requireContains(t, out, "== Downloads ==")
	requireContains(t, out, "abc123")
	requireContains(t, out, "streaming")
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]column{{header: "Camera"}, {header: "IP", align: alignRight}}, [][]string{{"Siyi"}})
	requireContains(t, out, "Camera")
	requireContains(t, out, "Siyi")
	if renderTable(nil, nil) != "" {
		t.Fatal("expected empty table without columns")
	}
}

func TestCameraLabel(t *testing.T) {
	cases := map[string]string{
		"siyi":     "Siyi",
		" xfrobot": "Xfrobot",
		"":         "-",
	}
	for input, want := range cases {
		if got := cameraLabel(input); got != want {
			t.Fatalf("cameraLabel(%q) = %q, want %q", input, got, want)
		}
	}
	if got := formatBytes(int64(1500)); got != "1.5 kB" {
		t.Fatalf("formatBytes = %q", got)
	}
}
