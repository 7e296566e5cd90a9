package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"camdl/internal/config"
	"camdl/internal/services"
)

// ErrNotFound reports that no download program is registered for a camera type.
// It matches services.ErrNotFound.
var ErrNotFound = fmt.Errorf("download job %w", services.ErrNotFound)

const scriptSuffix = "-download.py"

// Program is a resolved download job: the executable plus any leading
// arguments (the script path when an interpreter is used).
type Program struct {
	CameraType string
	Path       string
	Args       []string
}

// Command returns the full argv for address and destDir.
func (p Program) Command(address, destDir string) []string {
	argv := make([]string, 0, len(p.Args)+5)
	argv = append(argv, p.Path)
	argv = append(argv, p.Args...)
	return append(argv, "--ipaddr", address, "--dest", destDir)
}

// Registry resolves camera types to download programs. Explicit programs take
// precedence over <script_dir>/<type>-download.py scripts.
type Registry struct {
	scriptDir   string
	interpreter string
	programs    map[string]string
}

// NewRegistry builds a registry from job configuration.
func NewRegistry(cfg config.Jobs) *Registry {
	programs := make(map[string]string, len(cfg.Programs))
	for name, path := range cfg.Programs {
		programs[name] = path
	}
	return &Registry{
		scriptDir:   cfg.ScriptDir,
		interpreter: strings.TrimSpace(cfg.Interpreter),
		programs:    programs,
	}
}

// Resolve maps cameraType to a runnable program. Unknown or malformed camera
// types return an error wrapping ErrNotFound.
func (r *Registry) Resolve(cameraType string) (Program, error) {
	cameraType = strings.ToLower(strings.TrimSpace(cameraType))
	if !config.ValidCameraType(cameraType) {
		return Program{}, notFound(cameraType)
	}
	if path, ok := r.programs[cameraType]; ok {
		if isRegularFile(path) {
			return Program{CameraType: cameraType, Path: path}, nil
		}
		return Program{}, notFound(cameraType)
	}
	if r.scriptDir == "" {
		return Program{}, notFound(cameraType)
	}
	script := filepath.Join(r.scriptDir, cameraType+scriptSuffix)
	if !isRegularFile(script) {
		return Program{}, notFound(cameraType)
	}
	if r.interpreter == "" {
		return Program{CameraType: cameraType, Path: script}, nil
	}
	return Program{CameraType: cameraType, Path: r.interpreter, Args: []string{script}}, nil
}

// Types lists every camera type that currently resolves, in stable order.
func (r *Registry) Types() []string {
	seen := make(map[string]struct{})
	for name, path := range r.programs {
		if isRegularFile(path) {
			seen[name] = struct{}{}
		}
	}
	if r.scriptDir != "" {
		entries, err := os.ReadDir(r.scriptDir)
		if err == nil {
			for _, entry := range entries {
				name := entry.Name()
				if entry.IsDir() || !strings.HasSuffix(name, scriptSuffix) {
					continue
				}
				cameraType := strings.TrimSuffix(name, scriptSuffix)
				if config.ValidCameraType(cameraType) {
					seen[cameraType] = struct{}{}
				}
			}
		}
	}
	types := make([]string, 0, len(seen))
	for name := range seen {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

func notFound(cameraType string) error {
	return services.Wrap(ErrNotFound, "jobs", "resolve", fmt.Sprintf("download job for %s camera not found", cameraType), nil)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
