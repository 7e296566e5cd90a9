package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"camdl/internal/logging"
	"camdl/internal/services"
)

func newConsole(t *testing.T, level string) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: level, Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return logger, &buf
}

func TestConsoleLineLayout(t *testing.T) {
	logger, buf := newConsole(t, "info")
	logging.NewComponentLogger(logger, "relay").Info("download session closed",
		logging.Bool("success", true),
		logging.String("reason", "exit status 1"),
	)

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, " INFO relay: download session closed success=true reason=\"exit status 1\"") {
		t.Fatalf("unexpected console line %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller at info level, got %q", line)
	}
}

func TestConsoleGathersSessionFieldsIntoTag(t *testing.T) {
	logger, buf := newConsole(t, "info")
	session := logging.ForSession(logging.NewComponentLogger(logger, "relay"),
		"1a2b3c4d-0000-4000-8000-000000000000", "siyi", "192.168.144.25")
	session.Info("job progress", logging.String("line", "downloaded 2/4"))

	line := strings.TrimSpace(buf.String())
	want := `relay: job progress [siyi 192.168.144.25 #1a2b3c4d] line="downloaded 2/4"`
	if !strings.HasSuffix(line, want) {
		t.Fatalf("unexpected console line:\n got %q\nwant suffix %q", line, want)
	}
	for _, key := range []string{"session_id=", "camera_type=", "address="} {
		if strings.Contains(line, key) {
			t.Fatalf("session field %s repeated outside the tag: %q", key, line)
		}
	}
}

func TestConsoleFlattensGroups(t *testing.T) {
	logger, buf := newConsole(t, "info")
	logger.WithGroup("job").With(logging.Int(logging.FieldPID, 42)).Info("reaped", logging.Int("exit_code", 0))

	if out := buf.String(); !strings.Contains(out, "job.pid=42 job.exit_code=0") {
		t.Fatalf("expected dotted group keys, got %q", out)
	}
}

func TestConsoleIncludesCallerAtDebug(t *testing.T) {
	logger, buf := newConsole(t, "debug")
	logger.Info("message with caller")

	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", buf.String())
	}
}

func TestConsoleRespectsLevel(t *testing.T) {
	logger, buf := newConsole(t, "warning")
	logger.Info("hidden")
	logger.Warn("shown")

	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "WARN shown") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("daemon started", logging.String(logging.FieldDaemonRun, "run-1"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record["msg"] != "daemon started" || record["level"] != "info" || record[logging.FieldDaemonRun] != "run-1" {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSessionID(ctx, "sess-1")
	ctx = services.WithCameraType(ctx, "siyi")
	ctx = services.WithRequestID(ctx, "req-xyz")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WithContext(ctx, logger).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[logging.FieldSessionID] != "sess-1" {
		t.Fatalf("session id = %v", record[logging.FieldSessionID])
	}
	if record[logging.FieldCameraType] != "siyi" {
		t.Fatalf("camera type = %v", record[logging.FieldCameraType])
	}
	if record[logging.FieldCorrelationID] != "req-xyz" {
		t.Fatalf("correlation id = %v", record[logging.FieldCorrelationID])
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WarnWithContext(logger, "settings write failed", "settings_write_failed")

	out := buf.String()
	for _, want := range []string{`"event_type":"settings_write_failed"`, `"error_hint"`, `"impact"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}
