// Package config loads, normalizes, and validates camdl configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// CAMDL_DOWNLOAD_DIR. The Config type centralizes every knob the daemon and CLI
// need, allowing download/state directories, job programs, and probe timings to
// be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
