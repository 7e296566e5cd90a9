// Package settings persists per-camera IP addresses and the last used camera
// selection in a small SQLite database under the state directory.
//
// Configured camera defaults are overlaid with stored values, so a fresh
// install still reports the factory addresses.
package settings
