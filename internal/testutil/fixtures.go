package testutil

import (
	"time"

	"github.com/soc-analytics/backend/internal/models"
)

// Day parses a YYYY-MM-DD date in UTC and panics on bad input.
func Day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// Range builds a DateRange from YYYY-MM-DD bounds; empty means unbounded.
func Range(start, end string) models.DateRange {
	var r models.DateRange
	if start != "" {
		r.Start = Day(start)
	}
	if end != "" {
		r.End = Day(end)
	}
	return r
}

// EDRSheets is a small EDR snapshot. With the range 2025-04-01..2025-04-05,
// endpoints e1 and e3 and threats t1 and t3 survive.
func EDRSheets() map[string][]models.Record {
	return map[string][]models.Record{
		models.SheetEndpoints: {
			{"hostname": "e1", "Date": "Completed(Apr 03, 2025 04:19:06 PM)", "scan_status": "Completed"},
			{"hostname": "e2", "Date": "2025-04-10", "scan_status": "Failed"},
			{"hostname": "e3", "extracted_date": "02-04-2025 09.30", "scan_status": "Completed"},
		},
		models.SheetThreats: {
			{"name": "t1", "reported_time": "2025-04-02T10:00:00Z", "status": "Active"},
			{"name": "t2", "reported_time": "2025-03-01T10:00:00Z", "status": "Resolved"},
			{"name": "t3", "reported_time": "2025-03-01T10:00:00Z", "resolved_date": "2025-04-04", "status": "Resolved"},
		},
	}
}

// SIEMSheets is a small SIEM snapshot. With the range 2025-04-01..2025-04-05,
// alerts a2, a3 and a4 survive.
func SIEMSheets() map[string][]models.Record {
	return map[string][]models.Record{
		"alerts": {
			{"id": "a1", "date": "31-03-2025 11.59.59 PM", "severity": "low"},
			{"id": "a2", "date": "01-04-2025 11.41.14 PM", "severity": "critical"},
			{"id": "a3", "Date": "03-04-2025 10:00:00", "severity": "high"},
			{"id": "a4", "tag_time": "05-04-2025", "severity": "3"},
			{"id": "a5", "date": "not a date", "severity": "medium"},
		},
	}
}

// MerakiSheets is a small Meraki snapshot. With the range
// 2025-04-01..2025-04-02, two usage samples and one session sample survive.
func MerakiSheets() map[string][]models.Record {
	return map[string][]models.Record{
		models.SheetUsageOverTime: {
			{"Time": "2025/03/31 00:00:00.000000 +00:00", "Total (bytes)": "100"},
			{"Time": "2025/04/01 00:00:00.000000 +00:00", "Total (bytes)": "200"},
			{"Time": "2025/04/02 12:00:00.000000 +00:00", "Total (bytes)": "300"},
		},
		models.SheetSessionsOverTime: {
			{"Time": "2025-04-01T06:00:00Z", "Sessions": "5"},
			{"Time": "2025-03-20T06:00:00Z", "Sessions": "7"},
		},
		models.SheetClientsPerDay: {
			{"Time": "2025/04/03", "Clients": "12"},
		},
		"Top clients by usage": {
			{"Date": "15-04-2025", "Client": "laptop-1"},
		},
	}
}

// Dataset wraps sheets in a Dataset with a fixed creation time.
func Dataset(id string, vendor models.Vendor, sheets map[string][]models.Record) *models.Dataset {
	return &models.Dataset{
		ID:        id,
		Vendor:    vendor,
		Name:      id,
		CreatedAt: time.Date(2025, 4, 6, 0, 0, 0, 0, time.UTC),
		Sheets:    sheets,
	}
}
