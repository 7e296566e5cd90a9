package api

import "time"

// Response is the envelope shared by the JSON endpoints.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Selection identifies a camera type and address pair.
type Selection struct {
	CameraType string `json:"camera_type"`
	IP         string `json:"ip"`
}

// CameraAddress holds the stored address for one camera type.
type CameraAddress struct {
	IP string `json:"ip"`
}

// SettingsResponse is returned by POST /camera/get-settings.
type SettingsResponse struct {
	Response
	LastUsed Selection                `json:"last_used"`
	Cameras  map[string]CameraAddress `json:"cameras"`
}

// FilesResponse is returned by POST /camera/count-files.
type FilesResponse struct {
	Response
	Images     int    `json:"images"`
	Videos     int    `json:"videos"`
	Other      int    `json:"other"`
	TotalBytes int64  `json:"total_bytes"`
	FreeBytes  uint64 `json:"free_bytes,omitempty"`
}

// DeleteResponse is returned by DELETE /camera/delete-files.
type DeleteResponse struct {
	Response
	DeletedCount int `json:"deleted_count"`
}

// CheckResult mirrors a preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Session describes an in-flight download relay.
type Session struct {
	ID             string    `json:"id"`
	CameraType     string    `json:"camera_type"`
	Address        string    `json:"address"`
	State          string    `json:"state"`
	StartedAt      time.Time `json:"started_at"`
	LastProgressAt time.Time `json:"last_progress_at,omitempty"`
}

// JobStats reports child process counters.
type JobStats struct {
	Launched int64 `json:"launched"`
	Reaped   int64 `json:"reaped"`
	Active   int64 `json:"active"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	StartedAt    time.Time     `json:"started_at"`
	LockFilePath string        `json:"lock_file_path"`
	SettingsPath string        `json:"settings_path"`
	DownloadDir  string        `json:"download_dir"`
	CameraTypes  []string      `json:"camera_types"`
	Checks       []CheckResult `json:"checks"`
	Sessions     []Session     `json:"sessions"`
	Jobs         JobStats      `json:"jobs"`
}
