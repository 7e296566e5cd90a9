package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeJobs(); err != nil {
		return err
	}
	c.normalizeProbe()
	c.normalizeCameras()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("CAMDL_DOWNLOAD_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DownloadDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("CAMDL_API_BIND"); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIBind = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("CAMDL_API_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIToken = strings.TrimSpace(value)
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)

	var err error
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.StaticDir, err = expandPath(strings.TrimSpace(c.Paths.StaticDir)); err != nil {
		return fmt.Errorf("paths.static_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeJobs() error {
	if value, ok := os.LookupEnv("CAMDL_SCRIPT_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Jobs.ScriptDir = strings.TrimSpace(value)
	}
	var err error
	if strings.TrimSpace(c.Jobs.ScriptDir) == "" {
		c.Jobs.ScriptDir = defaultScriptDir
	}
	if c.Jobs.ScriptDir, err = expandPath(c.Jobs.ScriptDir); err != nil {
		return fmt.Errorf("jobs.script_dir: %w", err)
	}
	c.Jobs.Interpreter = strings.TrimSpace(c.Jobs.Interpreter)
	if len(c.Jobs.Programs) == 0 {
		return nil
	}
	programs := make(map[string]string, len(c.Jobs.Programs))
	for name, path := range c.Jobs.Programs {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || strings.TrimSpace(path) == "" {
			continue
		}
		expanded, err := expandPath(strings.TrimSpace(path))
		if err != nil {
			return fmt.Errorf("jobs.programs.%s: %w", key, err)
		}
		programs[key] = expanded
	}
	c.Jobs.Programs = programs
	return nil
}

func (c *Config) normalizeProbe() {
	c.Probe.Binary = strings.TrimSpace(c.Probe.Binary)
	if c.Probe.Binary == "" {
		c.Probe.Binary = defaultProbeBinary
	}
}

func (c *Config) normalizeCameras() {
	cameras := make(map[string]string, len(c.Cameras))
	for name, ip := range c.Cameras {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		cameras[key] = strings.TrimSpace(ip)
	}
	if len(cameras) == 0 {
		for name, ip := range defaultCameras {
			cameras[name] = ip
		}
	}
	c.Cameras = cameras
	c.DefaultCamera = strings.ToLower(strings.TrimSpace(c.DefaultCamera))
	if c.DefaultCamera == "" {
		c.DefaultCamera = defaultCameraType
		if _, ok := c.Cameras[c.DefaultCamera]; !ok {
			c.DefaultCamera = c.CameraTypes()[0]
		}
	}
}

func (c *Config) normalizeNotifications() {
	if value, ok := os.LookupEnv("CAMDL_NTFY_TOPIC"); ok && strings.TrimSpace(value) != "" {
		c.Notifications.NtfyTopic = value
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
