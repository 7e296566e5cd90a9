package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFile creates path, and any missing parents, holding size filler bytes.
// A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int) {
	t.Helper()
	writeBytes(t, path, bytes.Repeat([]byte{'x'}, max(size, 1)))
}

// WriteFiles drops camera files named names into dir. Images and videos start
// with the signature a camera would write, so they look like real captures to
// anything that sniffs content.
func WriteFiles(t testing.TB, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		content := append(captureHeader(name), bytes.Repeat([]byte{0}, 16)...)
		writeBytes(t, filepath.Join(dir, name), content)
	}
}

func captureHeader(name string) []byte {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return []byte{0xFF, 0xD8, 0xFF, 0xE1}
	case ".png":
		return []byte("\x89PNG\r\n\x1a\n")
	case ".mp4", ".mov":
		return []byte("\x00\x00\x00\x18ftypisom")
	default:
		return nil
	}
}

func writeBytes(t testing.TB, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
