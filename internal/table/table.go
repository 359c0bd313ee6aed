// Package table implements the dashboard's searchable, sortable, paginated
// record table on the server side.
package table

import (
	"sort"
	"strconv"
	"strings"

	"github.com/soc-analytics/backend/internal/models"
)

// Paging limits.
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Query defines search, sorting and paging for a table request.
type Query struct {
	Search        string
	SortColumn    string
	SortDirection string // "asc" or "desc"
	Page          int
	PageSize      int
}

// Page is one page of rows plus the total after searching.
type Page struct {
	Rows     []models.Record `json:"rows" msgpack:"rows"`
	Total    int             `json:"total" msgpack:"total"`
	Page     int             `json:"page" msgpack:"page"`
	PageSize int             `json:"pageSize" msgpack:"pageSize"`
}

// Normalize clamps Page and PageSize into their valid ranges.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	q.SortDirection = strings.ToLower(strings.TrimSpace(q.SortDirection))
	return q
}

// Apply searches, sorts and paginates records. records is not modified.
func Apply(records []models.Record, q Query) Page {
	q = q.Normalize()

	rows := Search(records, q.Search)
	if q.SortColumn != "" {
		if len(rows) > 0 && &rows[0] == &records[0] {
			rows = append([]models.Record(nil), rows...)
		}
		Sort(rows, q.SortColumn, q.SortDirection == "desc")
	}

	total := len(rows)
	start := (q.Page - 1) * q.PageSize
	if start > total {
		start = total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}

	return Page{
		Rows:     rows[start:end],
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
}

// Search keeps the rows where any field value contains term, ignoring
// case. An empty term returns records unchanged.
func Search(records []models.Record, term string) []models.Record {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return records
	}

	out := make([]models.Record, 0, len(records))
	for _, rec := range records {
		if matches(rec, term) {
			out = append(out, rec)
		}
	}
	return out
}

func matches(rec models.Record, term string) bool {
	for field := range rec {
		if s, ok := rec.String(field); ok && strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

// Sort orders rows in place by column. Numbers compare numerically,
// everything else as case-insensitive text; rows missing the column go
// last in either direction. The sort is stable.
func Sort(rows []models.Record, column string, desc bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, aok := rows[i].String(column)
		b, bok := rows[j].String(column)
		if !aok || !bok {
			return aok && !bok
		}
		c := compare(a, b)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compare(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
