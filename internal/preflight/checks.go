package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"camdl/internal/config"
	"camdl/internal/deps"
	"camdl/internal/jobs"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStaticDir verifies the web UI directory is readable and has an index page.
func CheckStaticDir(path string) Result {
	const name = "Static UI directory"
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if _, err := os.Stat(filepath.Join(path, "index.html")); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: index.html missing)", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckSystemDeps evaluates the external binaries required by the config.
// The interpreter is optional when every configured camera has an explicit
// program.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	interpreterOptional := true
	for _, cameraType := range cfg.CameraTypes() {
		if _, ok := cfg.Jobs.Programs[cameraType]; !ok {
			interpreterOptional = false
			break
		}
	}
	requirements := []deps.Requirement{
		{
			Name:        "Probe",
			Command:     cfg.Probe.Binary,
			Description: "Required to check camera reachability",
		},
		{
			Name:        "Interpreter",
			Command:     cfg.Jobs.Interpreter,
			Description: "Runs <type>-download.py job scripts",
			Optional:    interpreterOptional,
		},
	}
	return deps.CheckBinaries(requirements)
}

// CheckJobs reports whether a download program resolves for each camera type.
func CheckJobs(registry *jobs.Registry, cameraTypes []string) []Result {
	results := make([]Result, 0, len(cameraTypes))
	for _, cameraType := range cameraTypes {
		name := fmt.Sprintf("Download job (%s)", cameraType)
		program, err := registry.Resolve(cameraType)
		if err != nil {
			results = append(results, Result{Name: name, Detail: err.Error()})
			continue
		}
		results = append(results, Result{Name: name, Passed: true, Detail: program.Path})
	}
	return results
}
