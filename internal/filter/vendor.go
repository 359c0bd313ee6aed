package filter

import (
	"time"

	"go.uber.org/zap"

	"github.com/soc-analytics/backend/internal/models"
	"github.com/soc-analytics/backend/internal/parser"
)

// Date fields per vendor, in priority order.
var (
	EDREndpointFields = []string{"Date", "date", "extracted_date"}
	EDRThreatFields   = []string{"reported_time", "identifying_time", "created_date", "resolved_date", "last_updated"}
	SIEMFields        = []string{"date", "Date", "tag_time", "tag-time", "Tag_Time", "timestamp", "Timestamp"}
)

// MerakiTimeField is the timestamp column of Meraki time-series sheets.
const MerakiTimeField = "Time"

// MerakiTimeSeriesSheets are the only Meraki sheets narrowed by date. Every
// other Meraki sheet is a current-state snapshot.
var MerakiTimeSeriesSheets = []string{
	models.SheetSessionsOverTime,
	models.SheetUsageOverTime,
	models.SheetClientsPerDay,
}

// IsMerakiTimeSeries reports whether sheet is a Meraki time-series sheet.
func IsMerakiTimeSeries(sheet string) bool {
	for _, name := range MerakiTimeSeriesSheets {
		if name == sheet {
			return true
		}
	}
	return false
}

// EDREndpoints filters endpoint rows by their scan date.
func (f *Filter) EDREndpoints(records []models.Record, r models.DateRange) []models.Record {
	return f.apply(string(models.VendorEDR), records, r, f.dateParser("edr"), EDREndpointFields, false)
}

// EDRThreats keeps a threat when any of its lifecycle dates (reported,
// identified, created, resolved, last updated) falls in the range.
func (f *Filter) EDRThreats(records []models.Record, r models.DateRange) []models.Record {
	return f.apply(string(models.VendorEDR), records, r, f.dateParser("edr"), EDRThreatFields, true)
}

// SIEMRecords filters one SIEM sheet.
func (f *Filter) SIEMRecords(records []models.Record, r models.DateRange) []models.Record {
	return f.apply(string(models.VendorSIEM), records, r, f.dateParser("siem"), SIEMFields, false)
}

// MerakiSheets filters the time-series sheets by their Time column and
// passes every other sheet through unchanged. With an inactive range the
// input map itself is returned.
func (f *Filter) MerakiSheets(sheets map[string][]models.Record, r models.DateRange) map[string][]models.Record {
	if !r.IsActive() {
		return sheets
	}

	p := f.dateParser("meraki_time")
	out := make(map[string][]models.Record, len(sheets))
	for name, rows := range sheets {
		if IsMerakiTimeSeries(name) {
			out[name] = f.apply(string(models.VendorMeraki), rows, r, p, []string{MerakiTimeField}, false)
			continue
		}
		out[name] = rows
	}
	return out
}

// SIEMSheets filters every sheet of a SIEM workbook.
func (f *Filter) SIEMSheets(sheets map[string][]models.Record, r models.DateRange) map[string][]models.Record {
	if !r.IsActive() {
		return sheets
	}

	out := make(map[string][]models.Record, len(sheets))
	for name, rows := range sheets {
		out[name] = f.SIEMRecords(rows, r)
	}
	return out
}

// Dataset narrows ds to r according to its vendor. The result is a new
// Dataset sharing the row slices of sheets that were not filtered; ds is
// never modified. With an inactive range ds itself is returned.
func (f *Filter) Dataset(ds *models.Dataset, r models.DateRange) *models.Dataset {
	if ds == nil || !r.IsActive() {
		return ds
	}

	start := time.Now()
	out := *ds

	switch ds.Vendor {
	case models.VendorEDR:
		out.Sheets = make(map[string][]models.Record, len(ds.Sheets))
		for name, rows := range ds.Sheets {
			switch name {
			case models.SheetEndpoints:
				out.Sheets[name] = f.EDREndpoints(rows, r)
			case models.SheetThreats:
				out.Sheets[name] = f.EDRThreats(rows, r)
			default:
				out.Sheets[name] = rows
			}
		}
	case models.VendorMeraki:
		out.Sheets = f.MerakiSheets(ds.Sheets, r)
	case models.VendorSIEM:
		out.Sheets = f.SIEMSheets(ds.Sheets, r)
	default:
		// No date contract is known for the remaining vendors.
		out.Sheets = make(map[string][]models.Record, len(ds.Sheets))
		for name, rows := range ds.Sheets {
			out.Sheets[name] = rows
		}
	}

	elapsed := time.Since(start)
	f.metrics.ObserveFilter(string(ds.Vendor), elapsed.Seconds())
	f.logger.Debug("dataset filtered",
		zap.String("dataset", ds.ID),
		zap.String("vendor", string(ds.Vendor)),
		zap.String("range", r.KeyIn(f.loc)),
		zap.Int("before", ds.RecordCount()),
		zap.Int("after", out.RecordCount()),
		zap.Duration("elapsed", elapsed))

	return &out
}

// Counts reports total and surviving rows per sheet.
func Counts(original, filtered *models.Dataset) map[string]models.SheetCount {
	counts := make(map[string]models.SheetCount, len(original.Sheets))
	for name, rows := range original.Sheets {
		counts[name] = models.SheetCount{
			Total:    len(rows),
			Filtered: len(filtered.Sheets[name]),
		}
	}
	return counts
}

// dateParser returns a built-in parser by name. The registry always holds the
// built-ins unless a caller replaced the registry with an incomplete one,
// in which case the generic parser stands in.
func (f *Filter) dateParser(name string) parser.DateParser {
	if p, err := f.parsers.Get(name); err == nil {
		return p
	}
	return parser.NewGenericParser(f.loc)
}
