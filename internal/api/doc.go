// Package api defines the wire-format types of the camdl HTTP API and a
// client for them.
//
// # Key Types
//
// Response: the {"success", "message"} envelope every JSON endpoint returns.
//
// SettingsResponse: last used camera plus the address stored per camera type.
//
// FilesResponse / DeleteResponse: download directory inventory and cleanup.
//
// DaemonStatus: pid, preflight results, active relay sessions and launcher
// counters reported by GET /api/status.
//
// # Client
//
// Client wraps the HTTP API for the camdl CLI. Download consumes the
// text/event-stream body with eventstream.Decoder and hands each event to a
// callback, so the CLI renders the same stream the web UI sees.
//
// # Design Notes
//
// JSON field names use snake_case to stay compatible with the existing
// browser frontend. Query parameters (type, ip) are used instead of request
// bodies for the same reason.
package api
