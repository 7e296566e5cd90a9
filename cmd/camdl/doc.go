// Package main hosts the camdl CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon in the foreground (serve) and
// translates the remaining invocations into HTTP calls against a running
// daemon: camera pings, streamed downloads, saved camera settings, and
// management of the downloaded files. Configuration resolution and the
// daemon address live in commandContext so subcommands only render results.
package main
