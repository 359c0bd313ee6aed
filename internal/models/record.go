// Package models contains domain types for the SOC analytics backend.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Vendor identifies an upstream security data source.
type Vendor string

const (
	VendorEDR       Vendor = "edr"
	VendorSIEM      Vendor = "siem"
	VendorMeraki    Vendor = "meraki"
	VendorGSuite    Vendor = "gsuite"
	VendorSonicWall Vendor = "sonicwall"
)

// Vendors lists every vendor the backend accepts.
var Vendors = []Vendor{VendorEDR, VendorSIEM, VendorMeraki, VendorGSuite, VendorSonicWall}

// ParseVendor normalizes a vendor name. Returns false for unknown vendors.
func ParseVendor(s string) (Vendor, bool) {
	v := Vendor(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Vendors {
		if v == known {
			return v, true
		}
	}
	return "", false
}

// Record is one row of vendor data (an endpoint, a threat, a bandwidth
// sample, an alert). Values are strings, numbers or nested values.
type Record map[string]any

// String returns the non-empty string form of a field.
// The second return value is false when the field is missing or blank.
func (r Record) String(field string) (string, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", false
	}

	var s string
	switch val := v.(type) {
	case string:
		s = val
	case time.Time:
		if val.IsZero() {
			return "", false
		}
		s = val.Format(time.RFC3339Nano)
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(val), 'f', -1, 32)
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}

	s = strings.TrimSpace(s)
	return s, s != ""
}

// DateRange is the calendar window selected in the dashboard's date picker.
// A zero Start or End means the range is unbounded on that side.
type DateRange struct {
	Start time.Time `json:"start,omitempty" msgpack:"start,omitempty"`
	End   time.Time `json:"end,omitempty" msgpack:"end,omitempty"`
}

// IsActive reports whether either bound is set.
func (r DateRange) IsActive() bool {
	return !r.Start.IsZero() || !r.End.IsZero()
}

// Key is a textual form of the range with each bound in its own location.
func (r DateRange) Key() string {
	return r.KeyIn(nil)
}

// KeyIn is the memoization key of the range: the calendar days of both
// bounds as seen in loc. Ranges that filter alike in loc share a key.
func (r DateRange) KeyIn(loc *time.Location) string {
	if !r.IsActive() {
		return "all"
	}
	return formatBound(r.Start, loc) + ".." + formatBound(r.End, loc)
}

func formatBound(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "*"
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("2006-01-02")
}

// ParseDateRange reads "YYYY-MM-DD" bounds as sent by the date picker.
// RFC3339 bounds are converted into loc. Empty strings leave that side
// unbounded.
func ParseDateRange(start, end string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}

	var r DateRange
	if s := strings.TrimSpace(start); s != "" {
		t, err := parseBound(s, loc)
		if err != nil {
			return DateRange{}, fmt.Errorf("invalid start date %q: %w", start, err)
		}
		r.Start = t
	}
	if s := strings.TrimSpace(end); s != "" {
		t, err := parseBound(s, loc)
		if err != nil {
			return DateRange{}, fmt.Errorf("invalid end date %q: %w", end, err)
		}
		r.End = t
	}
	return r, nil
}

func parseBound(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}
