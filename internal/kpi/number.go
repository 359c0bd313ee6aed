// Package kpi recomputes dashboard KPIs over (possibly filtered) records.
// Every function is a pure reduction; an empty input yields zero values.
package kpi

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/soc-analytics/backend/internal/models"
)

// toFloat reads a numeric cell. Workbook exports hand numbers over as
// strings, sometimes with thousands separators.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// column finds the first candidate column present in rec, ignoring case.
func column(rec models.Record, candidates []string) (any, bool) {
	for _, c := range candidates {
		if v, ok := rec[c]; ok {
			return v, true
		}
	}
	for _, c := range candidates {
		for key, v := range rec {
			if strings.EqualFold(strings.TrimSpace(key), c) {
				return v, true
			}
		}
	}
	return nil, false
}

// numbers collects the numeric values of the first matching column of each
// record. Rows without a usable value are skipped.
func numbers(records []models.Record, candidates []string) []float64 {
	out := make([]float64, 0, len(records))
	for _, rec := range records {
		v, ok := column(rec, candidates)
		if !ok {
			continue
		}
		if f, ok := toFloat(v); ok {
			out = append(out, f)
		}
	}
	return out
}

type summary struct {
	sum, avg, peak float64
}

func summarize(values []float64) summary {
	if len(values) == 0 {
		return summary{}
	}
	s := summary{peak: values[0]}
	for _, v := range values {
		s.sum += v
		if v > s.peak {
			s.peak = v
		}
	}
	s.avg = s.sum / float64(len(values))
	return s
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
