// Package jobs resolves camera types to external download programs and runs
// them as child processes.
//
// Each child runs in its own process group and is killed as a group when its
// context is cancelled. A Handle exposes stdout as a channel of lines, a Done
// channel for the child's own exit, a bounded tail of stderr, and a Wait that
// reaps the process exactly once.
// Launcher keeps launched/reaped counters so callers can verify that no child
// outlives its session.
package jobs
