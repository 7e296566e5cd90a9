// Package services defines shared utilities consumed by the download relay,
// the API server, and the external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, camera types, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent HTTP statuses.
//
// Use these helpers when wiring new handlers so operational behaviour (error
// handling, observability) stays uniform across the daemon.
package services
