package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"camdl/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Jobs.ScriptDir = filepath.Join(base, "jobs")
	cfgVal.Jobs.Programs = map[string]string{}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithHeartbeatInterval overrides the relay heartbeat interval in seconds.
func WithHeartbeatInterval(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Relay.HeartbeatInterval = seconds
	}
}

// WithAPIToken requires bearer authentication on the API routes.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithStaticDir creates a static directory holding an index.html page.
func WithStaticDir(index string) ConfigOption {
	return func(b *configBuilder) {
		dir := filepath.Join(b.baseDir, "static")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.t.Fatalf("mkdir static dir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0o644); err != nil {
			b.t.Fatalf("write index.html: %v", err)
		}
		b.cfg.Paths.StaticDir = dir
	}
}

// WithJobProgram writes a /bin/sh script for cameraType and registers it as
// the camera's download program. The script receives --ipaddr <ip> --dest <dir>.
func WithJobProgram(cameraType, body string) ConfigOption {
	return func(b *configBuilder) {
		dir := filepath.Join(b.baseDir, "programs")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.t.Fatalf("mkdir programs dir: %v", err)
		}
		target := filepath.Join(dir, cameraType+"-download")
		script := "#!/bin/sh\n" + body + "\n"
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			b.t.Fatalf("write job program %s: %v", cameraType, err)
		}
		if b.cfg.Jobs.Programs == nil {
			b.cfg.Jobs.Programs = map[string]string{}
		}
		b.cfg.Jobs.Programs[cameraType] = target
	}
}

// WithProbeExit installs a stub ping binary that exits with code and points
// the probe configuration at it.
func WithProbeExit(code int) ConfigOption {
	return func(b *configBuilder) {
		dir := filepath.Join(b.baseDir, "probe")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.t.Fatalf("mkdir probe dir: %v", err)
		}
		target := filepath.Join(dir, "ping")
		script := fmt.Sprintf("#!/bin/sh\necho \"ping stub $*\"\nexit %d\n", code)
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			b.t.Fatalf("write ping stub: %v", err)
		}
		b.cfg.Probe.Binary = target
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default camdl external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ping", "python3"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DownloadDir)
}
