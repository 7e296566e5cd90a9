package config

const (
	defaultDownloadDir       = "~/.local/share/camdl/downloads"
	defaultStateDir          = "~/.local/share/camdl"
	defaultLogDir            = "~/.local/share/camdl/logs"
	defaultScriptDir         = "~/.local/share/camdl/jobs"
	defaultInterpreter       = "python3"
	defaultAPIBind           = "0.0.0.0:8000"
	defaultProbeBinary       = "ping"
	defaultProbeCount        = 3
	defaultProbeTimeout      = 2
	defaultHeartbeatInterval = 5
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
	defaultCameraType        = "siyi"
	defaultNtfyTimeout       = 10
)

// defaultCameras mirrors the factory addresses of the supported gimbals.
var defaultCameras = map[string]string{
	"siyi":    "192.168.144.25",
	"xfrobot": "192.168.144.108",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	cameras := make(map[string]string, len(defaultCameras))
	for name, ip := range defaultCameras {
		cameras[name] = ip
	}
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Jobs: Jobs{
			ScriptDir:   defaultScriptDir,
			Interpreter: defaultInterpreter,
		},
		Probe: Probe{
			Binary:         defaultProbeBinary,
			Count:          defaultProbeCount,
			TimeoutSeconds: defaultProbeTimeout,
		},
		Relay: Relay{
			HeartbeatInterval: defaultHeartbeatInterval,
		},
		DefaultCamera: defaultCameraType,
		Cameras:       cameras,
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
