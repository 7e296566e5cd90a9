package logging

import (
	"regexp"
	"strconv"
	"strings"
)

var fractionPattern = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when the phase or percentage bucket changes.
type ProgressSampler struct {
	bucketSize float64
	lastStage  string
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%) or when the stage changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress event should be logged. Percent can be
// negative to indicate "unknown"; stage is trimmed before comparison.
func (s *ProgressSampler) ShouldLog(percent float64, stage string) bool {
	if s == nil {
		return true
	}
	stage = strings.TrimSpace(stage)
	emit := false
	if stage != "" && stage != s.lastStage {
		s.lastStage = stage
		emit = true
		s.lastBucket = -1
	}
	if percent >= 0 {
		bucket := int(percent / s.bucketSize)
		if percent >= 100 {
			bucket = int(100 / s.bucketSize)
		}
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// ShouldLogLine derives a percent and stage from a free-form progress line
// such as "downloaded 3/10" and reports whether it should be logged. Lines
// without a fraction are treated as a stage label.
func (s *ProgressSampler) ShouldLogLine(line string) bool {
	percent, stage := ParseProgressLine(line)
	return s.ShouldLog(percent, stage)
}

// Reset clears the sampler state (e.g. when a new job starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastStage = ""
	s.lastBucket = -1
}

// ParseProgressLine extracts a completion percent from the first "n/m"
// fraction in line. The stage is the text preceding the fraction. Percent is
// -1 when no usable fraction is present, in which case the whole line is the
// stage.
func ParseProgressLine(line string) (float64, string) {
	trimmed := strings.TrimSpace(line)
	loc := fractionPattern.FindStringSubmatchIndex(trimmed)
	if loc == nil {
		return -1, trimmed
	}
	done, errDone := strconv.Atoi(trimmed[loc[2]:loc[3]])
	total, errTotal := strconv.Atoi(trimmed[loc[4]:loc[5]])
	if errDone != nil || errTotal != nil || total <= 0 {
		return -1, trimmed
	}
	return float64(done) * 100 / float64(total), strings.TrimSpace(trimmed[:loc[0]])
}
