package parser

import (
	"strings"
	"time"
)

// DateParser defines the interface for vendor date parsers.
type DateParser interface {
	// Name returns the unique name of the parser.
	Name() string
	// Parse interprets a raw field value. It returns the zero time when the
	// value does not match any format the parser knows; it never panics.
	Parse(raw string) time.Time
}

// MinYear is the earliest year a parser will accept.
const MinYear = 1900

// Common utilities for parsing

// civil builds a wall-clock time in loc and rejects impossible calendar
// values such as month 13 or 31 February.
func civil(year, month, day, hour, min, sec, nsec int, loc *time.Location) time.Time {
	if year < MinYear || month < 1 || month > 12 || day < 1 || day > 31 ||
		hour < 0 || hour > 23 || min < 0 || min > 59 || sec < 0 || sec > 59 {
		return time.Time{}
	}

	t := time.Date(year, time.Month(month), day, hour, min, sec, nsec, loc)
	// time.Date normalizes overflow (Feb 31 -> Mar 3); treat that as invalid.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}
	}
	return t
}

// accept applies the year floor shared by every parser.
func accept(t time.Time) time.Time {
	if t.IsZero() || t.Year() < MinYear {
		return time.Time{}
	}
	return t
}

// isoLayouts are tried in order by parseISO. Layouts without an offset are
// interpreted in the caller's location.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// parseISO parses ISO-8601 date-times ("2025-04-01T10:00:00Z",
// "2025-04-01T10:00:00.123+02:00", "2025-04-01T10:00"). A space may stand
// in for the T separator, as RFC 3339 allows.
func parseISO(s string, loc *time.Location) time.Time {
	if !isoDateTime(s) {
		return time.Time{}
	}
	if s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return accept(t)
		}
	}
	return time.Time{}
}

func isoDateTime(s string) bool {
	return len(s) >= 16 && s[4] == '-' && s[7] == '-' && (s[10] == 'T' || s[10] == ' ')
}

// atoi parses a short run of ASCII digits. Returns -1 on error.
func atoi(s string) int {
	if len(s) == 0 || len(s) > 9 {
		return -1
	}
	n := 0
	for i := 0; i < len(s); i++ {
		d := s[i] - '0'
		if d > 9 {
			return -1
		}
		n = n*10 + int(d)
	}
	return n
}

// fracNanos converts a fractional-second digit string into nanoseconds,
// truncating beyond nanosecond precision.
func fracNanos(frac string) int {
	if frac == "" {
		return 0
	}
	if len(frac) > 9 {
		frac = frac[:9]
	}
	n := atoi(frac)
	if n < 0 {
		return 0
	}
	for i := len(frac); i < 9; i++ {
		n *= 10
	}
	return n
}

func locationOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

func normalizeSpace(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
