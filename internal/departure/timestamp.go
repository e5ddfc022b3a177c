package departure

import (
	"regexp"
	"time"
)

const (
	// fixed fallbacks; the trailing Z is a literal, so results are UTC
	layoutSevenFraction = "2006-01-02T15:04:05.0000000Z"
	layoutNoFraction    = "2006-01-02T15:04:05Z"
)

var (
	// isoFractionalRegex is ISO-8601 with a fractional second and the Z designator
	isoFractionalRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d+Z$`)
	fractionRegex      = regexp.MustCompile(`\.\d+Z$`)
)

// ParseTimestamp parses the API's UTC timestamps, which arrive with zero,
// three or seven fractional digits. Stages, in order:
//
//  1. ISO-8601 with fractional seconds and Z
//  2. fraction stripped, ISO-8601 without fractional seconds
//  3. fixed layout with seven fractional digits
//  4. fixed layout without fractional digits
//
// ok is false when every stage fails.
func ParseTimestamp(s string) (t time.Time, ok bool) {
	if isoFractionalRegex.MatchString(s) {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC(), true
		}
	}

	if t, err := time.Parse(time.RFC3339, fractionRegex.ReplaceAllString(s, "Z")); err == nil {
		return t.UTC(), true
	}

	if t, err := time.Parse(layoutSevenFraction, s); err == nil {
		return t.UTC(), true
	}

	if t, err := time.Parse(layoutNoFraction, s); err == nil {
		return t.UTC(), true
	}

	return time.Time{}, false
}
