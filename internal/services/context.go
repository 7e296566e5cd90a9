package services

import "context"

type contextKey string

const (
	sessionIDKey  contextKey = "session_id"
	cameraTypeKey contextKey = "camera_type"
	requestIDKey  contextKey = "request_id"
)

// WithSessionID annotates context with the download session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext extracts the session identifier if present.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sessionIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithCameraType annotates context with the camera (job) type.
func WithCameraType(ctx context.Context, cameraType string) context.Context {
	if cameraType == "" {
		return ctx
	}
	return context.WithValue(ctx, cameraTypeKey, cameraType)
}

// CameraTypeFromContext returns the camera type if present.
func CameraTypeFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(cameraTypeKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
