// Package downloads manages the files download jobs leave in the download
// directory: counting media by type, streaming a ZIP archive of the
// directory, clearing it, and reporting free disk space.
//
// Only regular files in the top level of the directory are considered.
// Subdirectories are never descended into or removed.
package downloads
