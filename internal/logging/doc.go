// Package logging builds the slog loggers used by the camdl daemon and CLI.
//
// The console handler prints one line per record and gathers the session
// fields (camera type, address, session id) into a bracketed tag. Every daemon
// run also writes a JSON run log, camdld-<time>.log, mirrored from the console
// logger by TeeLogger, with camdld.log linking to the newest run and
// PruneRunLogs enforcing retention. ParseProgressLine and ProgressSampler
// reduce download job output to progress fractions.
package logging
