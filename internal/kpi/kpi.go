package kpi

import (
	"github.com/soc-analytics/backend/internal/models"
	"github.com/soc-analytics/backend/internal/parser"
)

// ForDataset computes the KPI block matching the dataset's vendor. Vendors
// without KPIs get an empty block.
func ForDataset(ds *models.Dataset, static parser.DateParser) models.KPIs {
	if ds == nil {
		return models.KPIs{}
	}

	switch ds.Vendor {
	case models.VendorSIEM:
		return models.KPIs{SIEM: SIEM(ds.Sheets)}
	case models.VendorMeraki:
		return models.KPIs{Meraki: Meraki(ds.Sheets, static)}
	case models.VendorEDR:
		return models.KPIs{EDR: EDR(ds.Sheets[models.SheetEndpoints], ds.Sheets[models.SheetThreats])}
	}
	return models.KPIs{}
}
