package logging

import (
	"context"
	"log/slog"

	"camdl/internal/services"
)

const (
	// FieldComponent names the package or subsystem that logged a record.
	FieldComponent = "component"
	// FieldSessionID identifies one download session.
	FieldSessionID = "session_id"
	// FieldCameraType is the camera (job) type of a session.
	FieldCameraType = "camera_type"
	// FieldAddress is the camera IP address of a session.
	FieldAddress = "address"
	// FieldDaemonRun identifies one daemon process lifetime.
	FieldDaemonRun = "daemon_run"
	// FieldState is a relay session state.
	FieldState = "state"
	// FieldPID is a child process id.
	FieldPID = "pid"
	// FieldCorrelationID is the API request id.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies log lines for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
)

// ForSession returns a logger whose records identify one download session.
// The console handler renders these fields as a tag after the message.
func ForSession(logger *slog.Logger, sessionID, cameraType, address string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(
		String(FieldSessionID, sessionID),
		String(FieldCameraType, cameraType),
		String(FieldAddress, address),
	)
}

// WithContext returns logger tagged with the session, camera type and request
// id carried by ctx, whichever are present.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	args := make([]any, 0, 3)
	if id, ok := services.SessionIDFromContext(ctx); ok {
		args = append(args, String(FieldSessionID, id))
	}
	if camera, ok := services.CameraTypeFromContext(ctx); ok {
		args = append(args, String(FieldCameraType, camera))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		args = append(args, String(FieldCorrelationID, rid))
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}
