package models

import "time"

// Severity is a SIEM alert severity bucket.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityCounts is the per-bucket alert tally over a set of SIEM rows.
type SeverityCounts struct {
	Info     int `json:"info" msgpack:"info"`
	Low      int `json:"low" msgpack:"low"`
	Medium   int `json:"medium" msgpack:"medium"`
	High     int `json:"high" msgpack:"high"`
	Critical int `json:"critical" msgpack:"critical"`
	Total    int `json:"total" msgpack:"total"`
}

// MerakiKPIs are the network KPIs derived from the time-series sheets.
type MerakiKPIs struct {
	AvgBandwidth  float64   `json:"avgBandwidth" msgpack:"avgBandwidth"`
	PeakBandwidth float64   `json:"peakBandwidth" msgpack:"peakBandwidth"`
	AvgDownload   float64   `json:"avgDownload" msgpack:"avgDownload"`
	AvgUpload     float64   `json:"avgUpload" msgpack:"avgUpload"`
	TotalSessions float64   `json:"totalSessions" msgpack:"totalSessions"`
	AvgSessions   float64   `json:"avgSessions" msgpack:"avgSessions"`
	PeakSessions  float64   `json:"peakSessions" msgpack:"peakSessions"`
	AvgClients    float64   `json:"avgClients" msgpack:"avgClients"`
	PeakClients   float64   `json:"peakClients" msgpack:"peakClients"`
	SnapshotDate  time.Time `json:"snapshotDate,omitempty" msgpack:"snapshotDate,omitempty"`
}

// EDRKPIs summarize endpoint and threat posture.
type EDRKPIs struct {
	Endpoints       int     `json:"endpoints" msgpack:"endpoints"`
	Threats         int     `json:"threats" msgpack:"threats"`
	ActiveThreats   int     `json:"activeThreats" msgpack:"activeThreats"`
	ResolvedThreats int     `json:"resolvedThreats" msgpack:"resolvedThreats"`
	ComplianceRate  float64 `json:"complianceRate" msgpack:"complianceRate"`
	ResolutionRate  float64 `json:"resolutionRate" msgpack:"resolutionRate"`
	SecurityScore   int     `json:"securityScore" msgpack:"securityScore"`
	RiskScore       int     `json:"riskScore" msgpack:"riskScore"`
}

// KPIs holds whichever vendor KPI block applies to a dataset.
type KPIs struct {
	SIEM   *SeverityCounts `json:"siem,omitempty" msgpack:"siem,omitempty"`
	Meraki *MerakiKPIs     `json:"meraki,omitempty" msgpack:"meraki,omitempty"`
	EDR    *EDRKPIs        `json:"edr,omitempty" msgpack:"edr,omitempty"`
}

// SheetCount reports how many rows of a sheet survived filtering.
type SheetCount struct {
	Total    int `json:"total" msgpack:"total"`
	Filtered int `json:"filtered" msgpack:"filtered"`
}

// FilterResult is a dataset narrowed to a date range plus recomputed KPIs.
type FilterResult struct {
	Dataset *Dataset              `json:"dataset" msgpack:"dataset"`
	Range   DateRange             `json:"range" msgpack:"range"`
	Counts  map[string]SheetCount `json:"counts" msgpack:"counts"`
	KPIs    KPIs                  `json:"kpis" msgpack:"kpis"`
}
