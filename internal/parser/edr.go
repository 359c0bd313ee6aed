package parser

import (
	"regexp"
	"strings"
	"time"
)

// EDRParser handles EDR endpoint and threat dates.
// Formats, first structural match wins:
//
//	"Completed(Apr 03, 2025 04:19:06 PM)"  scan status with embedded date
//	"2025-04-03T16:19:06Z"                 ISO-8601
//	"03-04-2025 16.19"                     DD-MM-YYYY HH.MM
//	"04/03/2025", "2025-04-03", "03-04-2025", "03-04-2025 16:19"
type EDRParser struct {
	loc     *time.Location
	generic *GenericParser

	statusRegex   *regexp.Regexp
	dotTimeRegex  *regexp.Regexp
	slashRegex    *regexp.Regexp
	isoDateRegex  *regexp.Regexp
	dashDateRegex *regexp.Regexp
	dashTimeRegex *regexp.Regexp
}

func NewEDRParser(loc *time.Location) *EDRParser {
	loc = locationOrUTC(loc)
	return &EDRParser{
		loc:           loc,
		generic:       NewGenericParser(loc),
		statusRegex:   regexp.MustCompile(`\(([^()]+)\)`),
		dotTimeRegex:  regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4}) (\d{1,2})\.(\d{2})$`),
		slashRegex:    regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`),
		isoDateRegex:  regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`),
		dashDateRegex: regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`),
		dashTimeRegex: regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4}) (\d{1,2}):(\d{2})$`),
	}
}

func (p *EDRParser) Name() string {
	return "edr"
}

func (p *EDRParser) Parse(raw string) time.Time {
	s := normalizeSpace(raw)
	if s == "" {
		return time.Time{}
	}

	// Scan status: "Completed(Apr 03, 2025 04:19:06 PM)".
	if m := p.statusRegex.FindStringSubmatch(s); m != nil {
		return p.generic.Parse(strings.TrimSpace(m[1]))
	}

	if isoDateTime(s) {
		return parseISO(s, p.loc)
	}

	if m := p.dotTimeRegex.FindStringSubmatch(s); m != nil {
		return civil(atoi(m[3]), atoi(m[2]), atoi(m[1]), atoi(m[4]), atoi(m[5]), 0, 0, p.loc)
	}

	if m := p.slashRegex.FindStringSubmatch(s); m != nil {
		return civil(atoi(m[3]), atoi(m[1]), atoi(m[2]), 0, 0, 0, 0, p.loc)
	}

	if m := p.isoDateRegex.FindStringSubmatch(s); m != nil {
		return civil(atoi(m[1]), atoi(m[2]), atoi(m[3]), 0, 0, 0, 0, p.loc)
	}

	if m := p.dashDateRegex.FindStringSubmatch(s); m != nil {
		return civil(atoi(m[3]), atoi(m[2]), atoi(m[1]), 0, 0, 0, 0, p.loc)
	}

	if m := p.dashTimeRegex.FindStringSubmatch(s); m != nil {
		return civil(atoi(m[3]), atoi(m[2]), atoi(m[1]), atoi(m[4]), atoi(m[5]), 0, 0, p.loc)
	}

	return time.Time{}
}
