package kpi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soc-analytics/backend/internal/models"
	"github.com/soc-analytics/backend/internal/parser"
)

func TestSeverityOf(t *testing.T) {
	tests := []struct {
		in   any
		want models.Severity
	}{
		{0, models.SeverityInfo},
		{1, models.SeverityLow},
		{2.0, models.SeverityMedium},
		{"3", models.SeverityHigh},
		{int64(4), models.SeverityCritical},
		{json.Number("4"), models.SeverityCritical},
		{"Critical", models.SeverityCritical},
		{"sev:HIGH", models.SeverityHigh},
		{"Medium", models.SeverityMedium},
		{"low risk", models.SeverityLow},
		{"Informational", models.SeverityInfo},
		{"unknown", models.SeverityInfo},
		{7, models.SeverityInfo},
		{-1, models.SeverityInfo},
		{nil, models.SeverityInfo},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SeverityOf(tc.in), "SeverityOf(%v)", tc.in)
	}
}

func TestSeverityCounts(t *testing.T) {
	rows := []models.Record{
		{"severity": 4},
		{"Severity": "critical"},
		{"level": "High"},
		{"severity": "2"},
		{"severity": 1},
		{"message": "no severity"},
	}

	c := SeverityCounts(rows)
	assert.Equal(t, models.SeverityCounts{Info: 1, Low: 1, Medium: 1, High: 1, Critical: 2, Total: 6}, *c)

	assert.Equal(t, models.SeverityCounts{}, *SeverityCounts(nil))

	total := SIEM(map[string][]models.Record{"a": rows, "b": rows[:2]})
	assert.Equal(t, 4, total.Critical)
	assert.Equal(t, 8, total.Total)
}

func TestMeraki(t *testing.T) {
	sheets := map[string][]models.Record{
		models.SheetUsageOverTime: {
			{"Time": "2025/04/01 00:00:00.000000 +00:00", "Total (bytes)": 300.0, "Download (bytes)": 200.0, "Upload (bytes)": 100.0},
			{"Time": "2025/04/02 00:00:00.000000 +00:00", "download (BYTES)": "1,000", "upload (bytes)": "500"},
			{"Time": "2025/04/03 00:00:00.000000 +00:00", "note": "no numbers"},
		},
		models.SheetSessionsOverTime: {
			{"sessions": 10},
			{"Sessions": "30"},
		},
		models.SheetClientsPerDay: {
			{"Clients": 4},
			{"Clients": 8},
			{"Clients": ""},
		},
		"Top devices": {
			{"Date": "10-04-2025"},
			{"Date": "12-04-2025"},
			{"Date": "bad"},
		},
	}

	k := Meraki(sheets, parser.NewMerakiStaticDateParser(time.UTC))

	assert.InDelta(t, 900.0, k.AvgBandwidth, 1e-9)
	assert.InDelta(t, 1500.0, k.PeakBandwidth, 1e-9)
	assert.InDelta(t, 600.0, k.AvgDownload, 1e-9)
	assert.InDelta(t, 300.0, k.AvgUpload, 1e-9)
	assert.InDelta(t, 40.0, k.TotalSessions, 1e-9)
	assert.InDelta(t, 20.0, k.AvgSessions, 1e-9)
	assert.InDelta(t, 30.0, k.PeakSessions, 1e-9)
	assert.InDelta(t, 6.0, k.AvgClients, 1e-9)
	assert.InDelta(t, 8.0, k.PeakClients, 1e-9)
	assert.Equal(t, time.Date(2025, 4, 12, 0, 0, 0, 0, time.UTC), k.SnapshotDate)
}

func TestMeraki_Empty(t *testing.T) {
	assert.Equal(t, models.MerakiKPIs{}, *Meraki(nil, nil))
	assert.Equal(t, models.MerakiKPIs{}, *Meraki(map[string][]models.Record{
		models.SheetUsageOverTime: {},
	}, parser.NewMerakiStaticDateParser(nil)))
}

func TestEDR(t *testing.T) {
	endpoints := []models.Record{
		{"scan_status": "Completed(Apr 03, 2025 04:19:06 PM)"},
		{"scan_status": "Pending"},
		{"status": "COMPLETED"},
		{"hostname": "no status"},
	}
	threats := []models.Record{
		{"resolved_date": "2025-04-03"},
		{"status": "Resolved"},
		{"status": "Active"},
	}

	k := EDR(endpoints, threats)
	require.NotNil(t, k)
	assert.Equal(t, 4, k.Endpoints)
	assert.Equal(t, 3, k.Threats)
	assert.Equal(t, 2, k.ResolvedThreats)
	assert.Equal(t, 1, k.ActiveThreats)
	assert.InDelta(t, 50.0, k.ComplianceRate, 1e-9)
	assert.InDelta(t, 66.6667, k.ResolutionRate, 1e-3)
	assert.Equal(t, 58, k.SecurityScore)
	assert.Equal(t, 42, k.RiskScore)
}

func TestEDR_Empty(t *testing.T) {
	k := EDR(nil, nil)
	assert.Equal(t, 100, k.SecurityScore)
	assert.Equal(t, 0, k.RiskScore)
	assert.Zero(t, k.ComplianceRate)
	assert.Zero(t, k.ResolutionRate)

	k = EDR([]models.Record{{"scan_status": "Failed"}}, nil)
	assert.Equal(t, 50, k.SecurityScore)
}

func TestForDataset(t *testing.T) {
	static := parser.NewMerakiStaticDateParser(time.UTC)

	k := ForDataset(&models.Dataset{Vendor: models.VendorSIEM, Sheets: map[string][]models.Record{
		"alerts": {{"severity": 3}},
	}}, static)
	require.NotNil(t, k.SIEM)
	assert.Equal(t, 1, k.SIEM.High)
	assert.Nil(t, k.Meraki)

	k = ForDataset(&models.Dataset{Vendor: models.VendorEDR}, static)
	require.NotNil(t, k.EDR)
	assert.Equal(t, 100, k.EDR.SecurityScore)

	k = ForDataset(&models.Dataset{Vendor: models.VendorMeraki}, static)
	assert.NotNil(t, k.Meraki)

	assert.Equal(t, models.KPIs{}, ForDataset(&models.Dataset{Vendor: models.VendorSonicWall}, static))
	assert.Equal(t, models.KPIs{}, ForDataset(nil, static))
}
