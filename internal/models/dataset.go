package models

import (
	"sort"
	"time"
)

// Well-known sheet names.
const (
	SheetEndpoints = "endpoints"
	SheetThreats   = "threats"

	SheetSessionsOverTime = "Number of sessions over time"
	SheetUsageOverTime    = "Usage over time"
	SheetClientsPerDay    = "Clients per day"

	// SheetDefault holds rows imported from a bare array.
	SheetDefault = "data"
)

// Dataset is one vendor snapshot, split into named sheets.
type Dataset struct {
	ID        string              `json:"id" msgpack:"id"`
	Vendor    Vendor              `json:"vendor" msgpack:"vendor"`
	Name      string              `json:"name" msgpack:"name"`
	CreatedAt time.Time           `json:"createdAt" msgpack:"createdAt"`
	Sheets    map[string][]Record `json:"sheets" msgpack:"sheets"`
}

// SheetNames returns the sheet names in sorted order.
func (d *Dataset) SheetNames() []string {
	names := make([]string, 0, len(d.Sheets))
	for name := range d.Sheets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RecordCount returns the number of rows across all sheets.
func (d *Dataset) RecordCount() int {
	n := 0
	for _, rows := range d.Sheets {
		n += len(rows)
	}
	return n
}

// Info returns the listing metadata for the dataset.
func (d *Dataset) Info() *DatasetInfo {
	return &DatasetInfo{
		ID:          d.ID,
		Vendor:      d.Vendor,
		Name:        d.Name,
		CreatedAt:   d.CreatedAt,
		Sheets:      d.SheetNames(),
		RecordCount: d.RecordCount(),
	}
}

// DatasetInfo represents metadata about a stored dataset.
type DatasetInfo struct {
	ID          string    `json:"id" msgpack:"id"`
	Vendor      Vendor    `json:"vendor" msgpack:"vendor"`
	Name        string    `json:"name" msgpack:"name"`
	CreatedAt   time.Time `json:"createdAt" msgpack:"createdAt"`
	Sheets      []string  `json:"sheets" msgpack:"sheets"`
	RecordCount int       `json:"recordCount" msgpack:"recordCount"`
}
