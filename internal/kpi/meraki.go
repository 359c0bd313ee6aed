package kpi

import (
	"time"

	"github.com/soc-analytics/backend/internal/filter"
	"github.com/soc-analytics/backend/internal/models"
	"github.com/soc-analytics/backend/internal/parser"
)

// Candidate column names, matched case-insensitively.
var (
	totalColumns    = []string{"Total (bytes)", "Total", "Total bandwidth", "Usage", "bandwidth"}
	downloadColumns = []string{"Download (bytes)", "Download", "Downstream", "Received (bytes)"}
	uploadColumns   = []string{"Upload (bytes)", "Upload", "Upstream", "Sent (bytes)"}
	sessionColumns  = []string{"Sessions", "Number of sessions", "Session count", "Count"}
	clientColumns   = []string{"Clients", "Number of clients", "Client count", "Count"}
)

// StaticDateField is the snapshot date column of static Meraki sheets.
const StaticDateField = "Date"

// Meraki derives the network KPIs from the time-series sheets. Bandwidth
// per sample is the Total column, or download plus upload when there is no
// total. static reads the snapshot date of the other sheets; nil skips it.
func Meraki(sheets map[string][]models.Record, static parser.DateParser) *models.MerakiKPIs {
	k := &models.MerakiKPIs{}

	usage := sheets[models.SheetUsageOverTime]
	bandwidth := make([]float64, 0, len(usage))
	for _, rec := range usage {
		if v, ok := column(rec, totalColumns); ok {
			if f, ok := toFloat(v); ok {
				bandwidth = append(bandwidth, f)
				continue
			}
		}
		down, hasDown := numericColumn(rec, downloadColumns)
		up, hasUp := numericColumn(rec, uploadColumns)
		if hasDown || hasUp {
			bandwidth = append(bandwidth, down+up)
		}
	}
	bw := summarize(bandwidth)
	k.AvgBandwidth = bw.avg
	k.PeakBandwidth = bw.peak
	k.AvgDownload = summarize(numbers(usage, downloadColumns)).avg
	k.AvgUpload = summarize(numbers(usage, uploadColumns)).avg

	sessions := summarize(numbers(sheets[models.SheetSessionsOverTime], sessionColumns))
	k.TotalSessions = sessions.sum
	k.AvgSessions = sessions.avg
	k.PeakSessions = sessions.peak

	clients := summarize(numbers(sheets[models.SheetClientsPerDay], clientColumns))
	k.AvgClients = clients.avg
	k.PeakClients = clients.peak

	if static != nil {
		k.SnapshotDate = SnapshotDate(sheets, static)
	}
	return k
}

// SnapshotDate returns the latest Date found on the static sheets, or the
// zero time when none parses.
func SnapshotDate(sheets map[string][]models.Record, static parser.DateParser) time.Time {
	var latest time.Time
	for name, rows := range sheets {
		if filter.IsMerakiTimeSeries(name) {
			continue
		}
		for _, rec := range rows {
			raw, ok := rec.String(StaticDateField)
			if !ok {
				continue
			}
			if t := static.Parse(raw); t.After(latest) {
				latest = t
			}
		}
	}
	return latest
}

func numericColumn(rec models.Record, candidates []string) (float64, bool) {
	v, ok := column(rec, candidates)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}
