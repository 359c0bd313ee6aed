package parser

import (
	"regexp"
	"strings"
	"time"
)

// SIEMParser handles SIEM alert timestamps.
// Formats, most specific first:
//
//	"01-04-2025 11.41.14 PM"  12-hour, dot separated
//	"01-04-2025 23.41.14"     24-hour, dot separated
//	"01-04-2025 23:41:14"     24-hour, colon separated
//	"01-04-2025"              date only
//
// Anything else goes through the generic parser.
type SIEMParser struct {
	loc     *time.Location
	generic *GenericParser

	meridiemRegex *regexp.Regexp
	dotRegex      *regexp.Regexp
	colonRegex    *regexp.Regexp
	dateRegex     *regexp.Regexp
}

func NewSIEMParser(loc *time.Location) *SIEMParser {
	loc = locationOrUTC(loc)
	return &SIEMParser{
		loc:           loc,
		generic:       NewGenericParser(loc),
		meridiemRegex: regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4}) (\d{1,2})\.(\d{2})\.(\d{2}) ?([AaPp][Mm])$`),
		dotRegex:      regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4}) (\d{1,2})\.(\d{2})\.(\d{2})$`),
		colonRegex:    regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4}) (\d{1,2}):(\d{2}):(\d{2})$`),
		dateRegex:     regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`),
	}
}

func (p *SIEMParser) Name() string {
	return "siem"
}

func (p *SIEMParser) Parse(raw string) time.Time {
	s := normalizeSpace(raw)
	if s == "" {
		return time.Time{}
	}

	if m := p.meridiemRegex.FindStringSubmatch(s); m != nil {
		hour := to24Hour(atoi(m[4]), strings.EqualFold(m[7], "PM"))
		return civil(atoi(m[3]), atoi(m[2]), atoi(m[1]), hour, atoi(m[5]), atoi(m[6]), 0, p.loc)
	}

	if m := p.dotRegex.FindStringSubmatch(s); m != nil {
		return civil(atoi(m[3]), atoi(m[2]), atoi(m[1]), atoi(m[4]), atoi(m[5]), atoi(m[6]), 0, p.loc)
	}

	if m := p.colonRegex.FindStringSubmatch(s); m != nil {
		return civil(atoi(m[3]), atoi(m[2]), atoi(m[1]), atoi(m[4]), atoi(m[5]), atoi(m[6]), 0, p.loc)
	}

	if m := p.dateRegex.FindStringSubmatch(s); m != nil {
		return civil(atoi(m[3]), atoi(m[2]), atoi(m[1]), 0, 0, 0, 0, p.loc)
	}

	return p.generic.Parse(s)
}

// to24Hour converts a 12-hour clock value. Hours outside 1..12 are
// returned as -1 so civil rejects them.
func to24Hour(hour int, pm bool) int {
	if hour < 0 || hour > 12 {
		return -1
	}
	switch {
	case pm && hour != 12:
		return hour + 12
	case !pm && hour == 12:
		return 0
	}
	return hour
}
