package downloads

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

var (
	imageExtensions = map[string]struct{}{
		".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {}, ".tiff": {},
	}
	videoExtensions = map[string]struct{}{
		".mp4": {}, ".mov": {}, ".avi": {}, ".mkv": {}, ".wmv": {}, ".flv": {},
	}
)

// Kind classifies a downloaded file by extension.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindOther Kind = "other"
)

// Classify returns the media kind for name. Matching is case-insensitive.
func Classify(name string) Kind {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := imageExtensions[ext]; ok {
		return KindImage
	}
	if _, ok := videoExtensions[ext]; ok {
		return KindVideo
	}
	return KindOther
}

// Entry describes a regular file in the download directory.
type Entry struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
	Kind    Kind
}

// List returns the regular files at the top level of dir sorted by name.
// A missing directory yields an empty list.
func List(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read download dir: %w", err)
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", de.Name(), err)
		}
		entries = append(entries, Entry{
			Name:    de.Name(),
			Path:    filepath.Join(dir, de.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Kind:    Classify(de.Name()),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Counts summarises the media in the download directory.
type Counts struct {
	Images     int   `json:"images"`
	Videos     int   `json:"videos"`
	Other      int   `json:"other"`
	TotalBytes int64 `json:"total_bytes"`
}

// Count tallies images and videos in dir.
func Count(dir string) (Counts, error) {
	entries, err := List(dir)
	if err != nil {
		return Counts{}, err
	}
	var counts Counts
	for _, entry := range entries {
		counts.TotalBytes += entry.Size
		switch entry.Kind {
		case KindImage:
			counts.Images++
		case KindVideo:
			counts.Videos++
		default:
			counts.Other++
		}
	}
	return counts, nil
}

// DeleteAll removes every regular file at the top level of dir and returns
// how many were removed. Directories are kept.
func DeleteAll(dir string) (int, error) {
	entries, err := List(dir)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, entry := range entries {
		if err := os.Remove(entry.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return deleted, fmt.Errorf("remove %s: %w", entry.Name, err)
		}
		deleted++
	}
	return deleted, nil
}

// DiskUsage reports space on the filesystem holding the download directory.
type DiskUsage struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// Usage returns disk usage for the filesystem containing dir. When dir does
// not exist yet, its nearest existing parent is measured.
func Usage(dir string) (DiskUsage, error) {
	target := existingAncestor(dir)
	stat, err := disk.Usage(target)
	if err != nil {
		return DiskUsage{}, fmt.Errorf("disk usage for %s: %w", target, err)
	}
	return DiskUsage{
		Path:        target,
		TotalBytes:  stat.Total,
		FreeBytes:   stat.Free,
		UsedPercent: stat.UsedPercent,
	}, nil
}

func existingAncestor(dir string) string {
	current := filepath.Clean(dir)
	for {
		if _, err := os.Stat(current); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return current
		}
		current = parent
	}
}
