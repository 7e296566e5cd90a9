package main

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// cameraLabel renders a camera type key for display, e.g. "siyi" -> "Siyi".
func cameraLabel(cameraType string) string {
	cameraType = strings.TrimSpace(cameraType)
	if cameraType == "" {
		return "-"
	}
	return titleCaser.String(cameraType)
}

func formatBytes[T int64 | uint64](n T) string {
	return humanize.Bytes(uint64(n))
}

func formatSince(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
