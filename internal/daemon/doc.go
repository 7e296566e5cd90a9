// Package daemon runs the long-lived camdl HTTP service.
//
// It wires configuration, the settings store, the reachability prober, the
// job launcher and the progress relay behind a chi router, and guards the
// process with a flock so two daemons never share a download directory.
//
// Download sessions are served as text/event-stream (POST /camera/download)
// or mirrored over a WebSocket (GET /camera/download/ws). Every session runs
// on the request goroutine and returns only after its child process has been
// reaped, so Serve can wait for in-flight sessions during shutdown.
//
// Keep orchestration here: the relay owns session semantics and the
// downloads package owns the file operations.
package daemon
