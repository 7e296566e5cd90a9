package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"camdl/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantDownload := filepath.Join(tempHome, ".local", "share", "camdl", "downloads")
	if cfg.Paths.DownloadDir != wantDownload {
		t.Fatalf("unexpected download dir: got %q want %q", cfg.Paths.DownloadDir, wantDownload)
	}
	if cfg.Paths.APIBind != "0.0.0.0:8000" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Paths.StaticDir != "" {
		t.Fatalf("expected static dir disabled by default, got %q", cfg.Paths.StaticDir)
	}
	if cfg.Cameras["siyi"] != "192.168.144.25" {
		t.Fatalf("unexpected siyi default: %q", cfg.Cameras["siyi"])
	}
	if cfg.Cameras["xfrobot"] != "192.168.144.108" {
		t.Fatalf("unexpected xfrobot default: %q", cfg.Cameras["xfrobot"])
	}
	if cfg.DefaultCamera != "siyi" {
		t.Fatalf("unexpected default camera: %q", cfg.DefaultCamera)
	}
	if cfg.HeartbeatInterval() != 5*time.Second {
		t.Fatalf("unexpected heartbeat interval: %s", cfg.HeartbeatInterval())
	}
	if cfg.Probe.Count != 3 || cfg.ProbeTimeout() != 2*time.Second {
		t.Fatalf("unexpected probe settings: %+v", cfg.Probe)
	}
	if cfg.SettingsDBPath() != filepath.Join(tempHome, ".local", "share", "camdl", "settings.db") {
		t.Fatalf("unexpected settings db path: %q", cfg.SettingsDBPath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "camdl.toml")
	payload := `default_camera = "xfrobot"

[paths]
download_dir = "~/camera"
api_bind = "127.0.0.1:9000"

[jobs.programs]
Siyi = "~/bin/siyi-dl"

[relay]
heartbeat_interval = 7

[cameras]
siyi = "10.0.0.5"
xfrobot = "10.0.0.6"
`
	if err := os.WriteFile(configPath, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.DownloadDir != filepath.Join(tempHome, "camera") {
		t.Fatalf("unexpected download dir: %q", cfg.Paths.DownloadDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9000" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if got := cfg.Jobs.Programs["siyi"]; got != filepath.Join(tempHome, "bin", "siyi-dl") {
		t.Fatalf("expected lower-cased program key with expanded path, got %q", got)
	}
	if cfg.HeartbeatInterval() != 7*time.Second {
		t.Fatalf("unexpected heartbeat interval: %s", cfg.HeartbeatInterval())
	}
	if cfg.DefaultCamera != "xfrobot" {
		t.Fatalf("unexpected default camera: %q", cfg.DefaultCamera)
	}
	if got := cfg.CameraTypes(); strings.Join(got, ",") != "siyi,xfrobot" {
		t.Fatalf("unexpected camera types: %v", got)
	}
}

func TestEnvVarOverridesConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	envDownloads := filepath.Join(t.TempDir(), "env-downloads")
	t.Setenv("CAMDL_DOWNLOAD_DIR", envDownloads)
	t.Setenv("CAMDL_API_BIND", "127.0.0.1:8123")
	t.Setenv("CAMDL_API_TOKEN", " s3cret ")
	t.Setenv("CAMDL_NTFY_TOPIC", "https://ntfy.example/camdl ")

	configPath := filepath.Join(t.TempDir(), "camdl.toml")
	payload := `[paths]
download_dir = "/srv/file-downloads"
api_bind = "0.0.0.0:8000"
`
	if err := os.WriteFile(configPath, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.DownloadDir != envDownloads {
		t.Fatalf("expected env download dir, got %q", cfg.Paths.DownloadDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:8123" {
		t.Fatalf("expected env api bind, got %q", cfg.Paths.APIBind)
	}
	if cfg.Paths.APIToken != "s3cret" {
		t.Fatalf("expected trimmed env api token, got %q", cfg.Paths.APIToken)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/camdl" {
		t.Fatalf("expected env ntfy topic, got %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.Notifications.RequestTimeout != 10 {
		t.Fatalf("expected default ntfy timeout, got %d", cfg.Notifications.RequestTimeout)
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StaticDir = filepath.Join(base, "static")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DownloadDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %s to be directory", dir)
		}
	}
	if _, err := os.Stat(cfg.Paths.StaticDir); !os.IsNotExist(err) {
		t.Fatalf("expected static dir to be left alone, stat err=%v", err)
	}
}

func TestCreateSample(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "download_dir") {
		t.Fatal("sample config missing download_dir")
	}
	if !strings.Contains(content, "heartbeat_interval") {
		t.Fatal("sample config missing heartbeat_interval")
	}

	var parsed config.Config
	if err := toml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if parsed.Cameras["siyi"] == "" {
		t.Fatal("sample config should list the siyi camera")
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "heartbeat",
			mutate: func(c *config.Config) { c.Relay.HeartbeatInterval = 0 },
			want:   "relay.heartbeat_interval",
		},
		{
			name:   "probe count",
			mutate: func(c *config.Config) { c.Probe.Count = -1 },
			want:   "probe.count",
		},
		{
			name:   "api bind",
			mutate: func(c *config.Config) { c.Paths.APIBind = "8000" },
			want:   "paths.api_bind",
		},
		{
			name:   "camera type",
			mutate: func(c *config.Config) { c.Cameras["../evil"] = "1.2.3.4" },
			want:   "invalid camera type",
		},
		{
			name:   "default camera",
			mutate: func(c *config.Config) { c.DefaultCamera = "gopro" },
			want:   "default_camera",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidCameraType(t *testing.T) {
	for _, name := range []string{"siyi", "xfrobot", "cam-2", "a_b"} {
		if !config.ValidCameraType(name) {
			t.Fatalf("expected %q to be valid", name)
		}
	}
	for _, name := range []string{"", "Siyi", "../x", "-lead", "a b"} {
		if config.ValidCameraType(name) {
			t.Fatalf("expected %q to be invalid", name)
		}
	}
}
