package parser

import (
	"time"

	"github.com/araddon/dateparse"
)

// genericLayouts cover the human-readable shapes vendors embed in status
// strings and exports. Order matters: offset-bearing layouts first.
var genericLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"Jan 2, 2006 3:04:05 PM",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006 3:04:05 PM",
	"January 2, 2006",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006",
	"Mon Jan 2 2006 15:04:05",
	"Mon Jan 2 15:04:05 2006",
	"01/02/2006 3:04:05 PM",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

// GenericParser is the lenient fallback used when a vendor format is not
// recognized structurally.
type GenericParser struct {
	loc *time.Location
}

// NewGenericParser creates a GenericParser that resolves offset-less
// values in loc (UTC when nil).
func NewGenericParser(loc *time.Location) *GenericParser {
	return &GenericParser{loc: locationOrUTC(loc)}
}

func (p *GenericParser) Name() string {
	return "generic"
}

func (p *GenericParser) Parse(raw string) time.Time {
	s := normalizeSpace(raw)
	if s == "" {
		return time.Time{}
	}

	for _, layout := range genericLayouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return accept(t)
		}
	}

	return p.parseFreeform(s)
}

// parseFreeform hands the value to dateparse, which recognizes a much
// wider set of shapes. dateparse has panicked on malformed input in the
// past, so the call is guarded.
func (p *GenericParser) parseFreeform(s string) (t time.Time) {
	defer func() {
		if r := recover(); r != nil {
			t = time.Time{}
		}
	}()

	parsed, err := dateparse.ParseIn(s, p.loc)
	if err != nil {
		return time.Time{}
	}
	return accept(parsed)
}
