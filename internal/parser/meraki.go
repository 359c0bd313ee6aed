package parser

import (
	"regexp"
	"strings"
	"time"
)

// MerakiTimeParser handles the Time column of Meraki time-series sheets.
// Format: "YYYY/MM/DD HH:mm:ss.ffffff +00:00"
//
// Values already in ISO shape are parsed directly. Everything else is
// rewritten to "YYYY-MM-DDTHH:mm:ss.fffZ" first: slashes become dashes, the
// separator becomes T, the fraction is cut to milliseconds and a UTC offset
// becomes Z. Offset-less values are UTC.
type MerakiTimeParser struct {
	timeRegex *regexp.Regexp
}

func NewMerakiTimeParser() *MerakiTimeParser {
	return &MerakiTimeParser{
		timeRegex: regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})(?:[ T](\d{1,2}):(\d{2})(?::(\d{2}))?(?:\.(\d+))?)?(?:\s*(Z|[+-]\d{2}:?\d{2}))?$`),
	}
}

func (p *MerakiTimeParser) Name() string {
	return "meraki_time"
}

func (p *MerakiTimeParser) Parse(raw string) time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}
	}

	if t := parseISO(s, time.UTC); !t.IsZero() {
		return t
	}

	normalized, ok := p.Normalize(s)
	if !ok {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, normalized)
	if err != nil {
		return time.Time{}
	}
	return accept(t)
}

// Normalize rewrites a Meraki Time value into RFC 3339 form with
// millisecond precision.
func (p *MerakiTimeParser) Normalize(s string) (string, bool) {
	m := p.timeRegex.FindStringSubmatch(normalizeSpace(s))
	if m == nil {
		return "", false
	}

	var b strings.Builder
	b.Grow(len("2006-01-02T15:04:05.000Z07:00"))
	b.WriteString(m[1])
	b.WriteByte('-')
	b.WriteString(pad2(m[2]))
	b.WriteByte('-')
	b.WriteString(pad2(m[3]))

	if m[4] == "" {
		b.WriteString("T00:00:00.000Z")
		return b.String(), true
	}

	sec := m[6]
	if sec == "" {
		sec = "00"
	}
	b.WriteByte('T')
	b.WriteString(pad2(m[4]))
	b.WriteByte(':')
	b.WriteString(m[5])
	b.WriteByte(':')
	b.WriteString(sec)
	b.WriteByte('.')
	b.WriteString(millis(m[7]))

	switch offset := m[8]; offset {
	case "", "Z", "+00:00", "-00:00", "+0000", "-0000":
		b.WriteByte('Z')
	default:
		if len(offset) == 5 {
			offset = offset[:3] + ":" + offset[3:]
		}
		b.WriteString(offset)
	}

	return b.String(), true
}

// millis truncates or pads a fraction to exactly three digits.
func millis(frac string) string {
	switch {
	case len(frac) >= 3:
		return frac[:3]
	default:
		return frac + strings.Repeat("0", 3-len(frac))
	}
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// MerakiStaticDateParser handles the Date column of static Meraki sheets.
// Format: "DD-MM-YYYY", split positionally.
type MerakiStaticDateParser struct {
	loc *time.Location
}

func NewMerakiStaticDateParser(loc *time.Location) *MerakiStaticDateParser {
	return &MerakiStaticDateParser{loc: locationOrUTC(loc)}
}

func (p *MerakiStaticDateParser) Name() string {
	return "meraki_static"
}

func (p *MerakiStaticDateParser) Parse(raw string) time.Time {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}

	parts := strings.Split(s, "-")
	if len(parts) != 3 || len(parts[2]) != 4 {
		return time.Time{}
	}

	return civil(atoi(parts[2]), atoi(parts[1]), atoi(parts[0]), 0, 0, 0, 0, p.loc)
}
