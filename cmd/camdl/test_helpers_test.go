package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"camdl/internal/config"
	"camdl/internal/daemon"
	"camdl/internal/jobs"
	"camdl/internal/probe"
	"camdl/internal/testsupport"
)

const siyiJob = `echo "found 2 files"
touch "$4/IMG_0001.JPG" "$4/VID_0001.MP4"
echo "downloaded 2/2"`

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	server     *httptest.Server
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := []testsupport.ConfigOption{
		testsupport.WithProbeExit(0),
		testsupport.WithJobProgram("siyi", siyiJob),
		testsupport.WithHeartbeatInterval(1),
	}
	cfg := testsupport.NewConfig(t, append(base, opts...)...)
	t.Setenv("HOME", testsupport.BaseDir(cfg))

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenSettings(t, cfg)
	launcher := jobs.NewLauncher(jobs.NewRegistry(cfg.Jobs), jobs.WithWaitDelay(500*time.Millisecond))
	d, err := daemon.New(cfg, store, probe.New(cfg.Probe.Binary, cfg.Probe.Count, cfg.ProbeTimeout()), launcher, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	srv := httptest.NewServer(d.Handler())

	t.Cleanup(func() {
		srv.Close()
		d.Stop()
		_ = d.Close()
	})

	return &cliTestEnv{cfg: cfg, daemon: d, server: srv, configPath: configPath}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--server", e.server.URL, "--config", e.configPath}, args...))
}

func runCLI(t *testing.T, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
