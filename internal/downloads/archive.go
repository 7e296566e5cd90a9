package downloads

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// ErrEmpty reports that the download directory holds no files to archive.
var ErrEmpty = errors.New("no files available to download")

// ArchiveName returns the attachment name for an archive created at now.
func ArchiveName(now time.Time) string {
	return fmt.Sprintf("camera_files_%s.zip", now.Format("20060102_150405"))
}

// WriteZip streams a deflated archive of entries to w. Each file is stored
// under its base name.
func WriteZip(w io.Writer, entries []Entry) error {
	if len(entries) == 0 {
		return ErrEmpty
	}
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		if err := addFile(zw, entry); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, entry Entry) error {
	src, err := os.Open(entry.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Name, err)
	}
	defer src.Close()

	header := &zip.FileHeader{
		Name:     entry.Name,
		Method:   zip.Deflate,
		Modified: entry.ModTime,
	}
	header.SetMode(0o644)
	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("add %s: %w", entry.Name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("archive %s: %w", entry.Name, err)
	}
	return nil
}
