// Package logs reads the daemon's run logs for the CLI.
//
// Last returns the trailing lines of a log with bounded memory, and Follow
// polls for appended lines. Follow tracks the camdld.log pointer, so it keeps
// streaming when a restarted daemon links the pointer to a new run log.
package logs
