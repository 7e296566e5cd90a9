package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"camdl/internal/logging"
	"camdl/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithJobProgram("xfrobot", "exit 0"))

	out, _, err := runCLI(t, []string{"--config", env.configPath, "config", "validate", "--check"})
	if err != nil {
		t.Fatalf("config validate: %v\n%s", err, out)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateCheckReportsMissingJob(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"--config", env.configPath, "config", "validate", "--check"})
	if err == nil {
		t.Fatal("expected missing xfrobot job to fail the checks")
	}
	requireContains(t, out, "Download job (xfrobot)")
	requireContains(t, out, "[ERROR]")
}

func TestConfigValidateRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[paths\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"--config", path, "config", "validate"}); err == nil {
		t.Fatal("expected malformed config to fail validation")
	}
}

func TestLogsCommandPrintsTail(t *testing.T) {
	env := setupCLITestEnv(t)
	logPath := filepath.Join(env.cfg.Paths.LogDir, logging.DaemonLogName)
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	if err := os.WriteFile(logPath, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := env.run(t, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
}

func TestNotifyTestCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.run(t, "notify-test"); err == nil {
		t.Fatal("expected notify-test to fail without a topic")
	}

	hits := make(chan string, 1)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- r.Header.Get("Title")
	}))
	t.Cleanup(ntfy.Close)
	cfg := *env.cfg
	cfg.Notifications.NtfyTopic = ntfy.URL
	path := filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, path, &cfg)

	out, _, err := runCLI(t, []string{"--config", path, "notify-test"})
	if err != nil {
		t.Fatalf("notify-test: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if title := <-hits; title != "camdl - Test" {
		t.Fatalf("unexpected title %q", title)
	}
}
