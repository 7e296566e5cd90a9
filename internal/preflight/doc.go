// Package preflight provides readiness checks for the directories and
// external binaries camdl depends on.
//
// The daemon runs RunAll at startup and logs failures without refusing to
// start, since a camera job may still succeed once the operator fixes the
// environment. The same results back GET /api/status and "camdl status".
package preflight
