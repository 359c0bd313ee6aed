// Package filter narrows vendor records to a calendar date range.
//
// Records carry their dates as loosely formatted strings. Each vendor has a
// fixed list of candidate date fields and a parser that understands its
// formats. A record whose date cannot be found or parsed is excluded
// whenever a range is active; with no active range everything is returned
// untouched.
package filter

import (
	"time"

	"go.uber.org/zap"

	"github.com/soc-analytics/backend/internal/metrics"
	"github.com/soc-analytics/backend/internal/models"
	"github.com/soc-analytics/backend/internal/parser"
)

// Exclusion reasons reported in diagnostics and metrics.
const (
	ReasonMissingField = "missing_field"
	ReasonUnparseable  = "unparseable"
	ReasonOutOfRange   = "out_of_range"
)

// Filter applies date ranges to records. It is safe for concurrent use.
type Filter struct {
	loc     *time.Location
	logger  *zap.Logger
	metrics *metrics.Metrics
	parsers *parser.Registry
}

// Option configures a Filter.
type Option func(*Filter)

// WithLogger sets the logger used for per-record diagnostics (debug level).
func WithLogger(logger *zap.Logger) Option {
	return func(f *Filter) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithLocation sets the time zone in which dates are truncated to calendar
// days and offset-less values are interpreted. Default UTC.
func WithLocation(loc *time.Location) Option {
	return func(f *Filter) {
		if loc != nil {
			f.loc = loc
		}
	}
}

// WithMetrics enables Prometheus counters for evaluated, kept and dropped
// records.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Filter) {
		f.metrics = m
	}
}

// WithRegistry replaces the parser registry. By default one is built for
// the filter's location.
func WithRegistry(r *parser.Registry) Option {
	return func(f *Filter) {
		f.parsers = r
	}
}

// New creates a Filter.
func New(opts ...Option) *Filter {
	f := &Filter{
		loc:    time.UTC,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.parsers == nil {
		f.parsers = parser.NewRegistry(f.loc)
	}
	return f
}

// Location returns the day-truncation time zone.
func (f *Filter) Location() *time.Location {
	return f.loc
}

// Parsers returns the registry the vendor entry points draw from.
func (f *Filter) Parsers() *parser.Registry {
	return f.parsers
}

// InRange reports whether date falls inside r at day granularity.
// Both bounds are inclusive and compared as calendar days in the filter's
// location, so 2025-04-05T23:59 is inside a range ending 2025-04-05.
// An inactive range contains everything, including the zero date.
func (f *Filter) InRange(date time.Time, r models.DateRange) bool {
	if !r.IsActive() {
		return true
	}
	if date.IsZero() {
		return false
	}

	day := f.day(date)
	if !r.Start.IsZero() && day.Before(f.day(r.Start)) {
		return false
	}
	if !r.End.IsZero() && day.After(f.day(r.End)) {
		return false
	}
	return true
}

// day truncates t to midnight of its calendar day in the filter's location.
func (f *Filter) day(t time.Time) time.Time {
	y, m, d := t.In(f.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, f.loc)
}

// ByDateRange keeps the records whose first non-empty field from fields
// parses to a date inside r. Later fields are only consulted when earlier
// ones are missing or blank. Order is preserved and the input is never
// modified. With an inactive range the input slice itself is returned.
func (f *Filter) ByDateRange(records []models.Record, r models.DateRange, p parser.DateParser, fields []string) []models.Record {
	return f.apply(p.Name(), records, r, p, fields, false)
}

// ByAnyDate keeps the records for which any non-empty field from fields
// parses to a date inside r.
func (f *Filter) ByAnyDate(records []models.Record, r models.DateRange, p parser.DateParser, fields []string) []models.Record {
	return f.apply(p.Name(), records, r, p, fields, true)
}

func (f *Filter) apply(label string, records []models.Record, r models.DateRange, p parser.DateParser, fields []string, anyField bool) []models.Record {
	if !r.IsActive() {
		return records
	}

	out := make([]models.Record, 0, len(records))
	for i, rec := range records {
		var v verdict
		if anyField {
			v = f.matchAny(rec, r, p, fields)
		} else {
			v = f.matchFirst(rec, r, p, fields)
		}

		f.metrics.RecordEvaluated(label)
		if v.keep {
			f.metrics.RecordKept(label)
			out = append(out, rec)
		} else {
			f.metrics.RecordDropped(label, v.reason)
		}

		if ce := f.logger.Check(zap.DebugLevel, "date filter decision"); ce != nil {
			ce.Write(
				zap.String("parser", p.Name()),
				zap.Int("index", i),
				zap.String("field", v.field),
				zap.String("raw", v.raw),
				zap.Time("parsed", v.parsed),
				zap.Bool("included", v.keep),
				zap.String("reason", v.reason),
			)
		}
	}

	f.logger.Debug("date filter applied",
		zap.String("parser", p.Name()),
		zap.String("range", r.KeyIn(f.loc)),
		zap.Int("total", len(records)),
		zap.Int("kept", len(out)))

	return out
}

// verdict is the outcome for a single record.
type verdict struct {
	keep   bool
	field  string
	raw    string
	parsed time.Time
	reason string
}

func (f *Filter) matchFirst(rec models.Record, r models.DateRange, p parser.DateParser, fields []string) verdict {
	for _, field := range fields {
		raw, ok := rec.String(field)
		if !ok {
			continue
		}

		v := verdict{field: field, raw: raw, parsed: p.Parse(raw)}
		switch {
		case v.parsed.IsZero():
			v.reason = ReasonUnparseable
		case !f.InRange(v.parsed, r):
			v.reason = ReasonOutOfRange
		default:
			v.keep = true
		}
		return v
	}
	return verdict{reason: ReasonMissingField}
}

func (f *Filter) matchAny(rec models.Record, r models.DateRange, p parser.DateParser, fields []string) verdict {
	result := verdict{reason: ReasonMissingField}
	for _, field := range fields {
		raw, ok := rec.String(field)
		if !ok {
			continue
		}

		parsed := p.Parse(raw)
		if parsed.IsZero() {
			if result.reason == ReasonMissingField {
				result = verdict{field: field, raw: raw, reason: ReasonUnparseable}
			}
			continue
		}
		if f.InRange(parsed, r) {
			return verdict{keep: true, field: field, raw: raw, parsed: parsed}
		}
		result = verdict{field: field, raw: raw, parsed: parsed, reason: ReasonOutOfRange}
	}
	return result
}
