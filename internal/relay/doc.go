// Package relay runs download sessions and streams their progress.
//
// A session moves through connecting, probing, launching, streaming,
// finalizing, and closed, never revisiting a state. While streaming, the relay
// selects over the child's output lines, a heartbeat idle timer, and the
// caller's context, so a silent job still produces a keep-alive frame every
// interval and a vanished client stops the job. Every session ends with a
// terminal event and a trailing heartbeat unless the client disconnected, and
// a launched process is always reaped before Run returns.
package relay
