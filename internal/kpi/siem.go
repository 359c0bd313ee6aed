package kpi

import (
	"fmt"
	"strings"

	"github.com/soc-analytics/backend/internal/models"
)

// SeverityFields are the columns consulted for an alert's severity.
var SeverityFields = []string{"severity", "Severity", "level"}

// numeric severities 0..4
var severityLevels = []models.Severity{
	models.SeverityInfo,
	models.SeverityLow,
	models.SeverityMedium,
	models.SeverityHigh,
	models.SeverityCritical,
}

// severityNames in match order: the first substring found wins.
var severityNames = []models.Severity{
	models.SeverityCritical,
	models.SeverityHigh,
	models.SeverityMedium,
	models.SeverityLow,
	models.SeverityInfo,
}

// SeverityOf maps a raw severity value onto a bucket. Numbers 0-4 map
// directly; anything else is matched by name ("Critical", "sev:high").
// Unrecognized values are info.
func SeverityOf(v any) models.Severity {
	if v == nil {
		return models.SeverityInfo
	}

	if f, ok := toFloat(v); ok {
		if n := int(f); f >= 0 && n < len(severityLevels) {
			return severityLevels[n]
		}
	}

	s := strings.ToLower(fmt.Sprint(v))
	for _, name := range severityNames {
		if strings.Contains(s, string(name)) {
			return name
		}
	}
	return models.SeverityInfo
}

// SeverityCounts tallies alerts per severity bucket. Rows without a
// severity column count as info.
func SeverityCounts(records []models.Record) *models.SeverityCounts {
	counts := &models.SeverityCounts{}
	for _, rec := range records {
		var raw any
		for _, field := range SeverityFields {
			if v, ok := rec[field]; ok {
				raw = v
				break
			}
		}

		switch SeverityOf(raw) {
		case models.SeverityCritical:
			counts.Critical++
		case models.SeverityHigh:
			counts.High++
		case models.SeverityMedium:
			counts.Medium++
		case models.SeverityLow:
			counts.Low++
		default:
			counts.Info++
		}
		counts.Total++
	}
	return counts
}

// SIEM tallies severities across every sheet.
func SIEM(sheets map[string][]models.Record) *models.SeverityCounts {
	total := &models.SeverityCounts{}
	for _, rows := range sheets {
		c := SeverityCounts(rows)
		total.Info += c.Info
		total.Low += c.Low
		total.Medium += c.Medium
		total.High += c.High
		total.Critical += c.Critical
		total.Total += c.Total
	}
	return total
}
