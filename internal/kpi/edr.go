package kpi

import (
	"math"
	"strings"

	"github.com/soc-analytics/backend/internal/models"
)

// EDR derives the endpoint and threat KPIs.
//
// An endpoint is compliant when its scan status reads completed. A threat is
// resolved when it has a resolved date or its status says resolved. The
// security score weighs compliance and resolution equally; an empty side
// counts as fully healthy, so a dataset with nothing in it scores 100.
func EDR(endpoints, threats []models.Record) *models.EDRKPIs {
	k := &models.EDRKPIs{
		Endpoints: len(endpoints),
		Threats:   len(threats),
	}

	compliant := 0
	for _, rec := range endpoints {
		if fieldContains(rec, "completed", "scan_status", "status") {
			compliant++
		}
	}

	for _, rec := range threats {
		if _, ok := rec.String("resolved_date"); ok || fieldContains(rec, "resolved", "status", "threat_status") {
			k.ResolvedThreats++
		}
	}
	k.ActiveThreats = k.Threats - k.ResolvedThreats

	k.ComplianceRate = percent(compliant, k.Endpoints)
	k.ResolutionRate = percent(k.ResolvedThreats, k.Threats)

	compliance, resolution := k.ComplianceRate, k.ResolutionRate
	if k.Endpoints == 0 {
		compliance = 100
	}
	if k.Threats == 0 {
		resolution = 100
	}
	k.SecurityScore = int(math.Round(0.5*compliance + 0.5*resolution))
	k.RiskScore = 100 - k.SecurityScore
	return k
}

// fieldContains reports whether the first present field holds substr,
// ignoring case.
func fieldContains(rec models.Record, substr string, fields ...string) bool {
	for _, field := range fields {
		if s, ok := rec.String(field); ok {
			return strings.Contains(strings.ToLower(s), substr)
		}
	}
	return false
}
