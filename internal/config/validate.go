package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

var cameraTypePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateTimings(); err != nil {
		return err
	}
	if err := c.validateCameras(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		return errors.New("paths.download_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateJobs() error {
	if strings.TrimSpace(c.Jobs.ScriptDir) == "" && len(c.Jobs.Programs) == 0 {
		return errors.New("jobs.script_dir or jobs.programs must be set")
	}
	for name := range c.Jobs.Programs {
		if !cameraTypePattern.MatchString(name) {
			return fmt.Errorf("jobs.programs: invalid camera type %q", name)
		}
	}
	return nil
}

func (c *Config) validateTimings() error {
	if err := ensurePositiveMap(map[string]int{
		"probe.count":              c.Probe.Count,
		"probe.timeout_seconds":    c.Probe.TimeoutSeconds,
		"relay.heartbeat_interval": c.Relay.HeartbeatInterval,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCameras() error {
	if len(c.Cameras) == 0 {
		return errors.New("cameras must define at least one camera type")
	}
	for name := range c.Cameras {
		if !cameraTypePattern.MatchString(name) {
			return fmt.Errorf("cameras: invalid camera type %q", name)
		}
	}
	if _, ok := c.Cameras[c.DefaultCamera]; !ok {
		return fmt.Errorf("default_camera %q is not listed under [cameras]", c.DefaultCamera)
	}
	return nil
}

// ValidCameraType reports whether name is an acceptable camera type identifier.
func ValidCameraType(name string) bool {
	return cameraTypePattern.MatchString(name)
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
