// Package workbook turns vendor exports (.xlsx workbooks and JSON
// payloads) into named sheets of records.
package workbook

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/soc-analytics/backend/internal/models"
)

// ErrUnsupportedFormat is returned for files that are neither .xlsx nor
// .json.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Load reads an .xlsx workbook. In each sheet the first non-empty row is
// the header and every following non-empty row becomes a record keyed by
// header. Empty cells and unnamed columns are omitted. Cell values are
// kept as their formatted text.
func Load(r io.Reader) (map[string][]models.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer f.Close()

	in := newInterner()
	sheets := make(map[string][]models.Record)
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, errors.Wrapf(err, "reading sheet %q", name)
		}
		sheets[name] = records(rows, in)
	}
	return sheets, nil
}

func records(rows [][]string, in *interner) []models.Record {
	out := []models.Record{}

	var header []string
	for _, row := range rows {
		if blank(row) {
			continue
		}
		if header == nil {
			header = make([]string, len(row))
			for i, cell := range row {
				header[i] = in.intern(strings.TrimSpace(cell))
			}
			continue
		}

		rec := make(models.Record, len(row))
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if v := strings.TrimSpace(cell); v != "" {
				rec[header[i]] = in.intern(v)
			}
		}
		if len(rec) > 0 {
			out = append(out, rec)
		}
	}
	return out
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// payload is the JSON envelope accepted for imports and upstream responses.
type payload struct {
	Sheets    map[string][]models.Record `json:"sheets"`
	Endpoints []models.Record            `json:"endpoints"`
	Threats   []models.Record            `json:"threats"`
	Data      []models.Record            `json:"data"`
}

// DecodeJSON reads one of:
//
//	{"sheets": {"name": [rows...]}}
//	{"endpoints": [...], "threats": [...]}   (EDR)
//	{"data": [...]} or a bare array          (single sheet "data")
func DecodeJSON(r io.Reader) (map[string][]models.Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading JSON")
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var rows []models.Record
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, errors.Wrap(err, "decoding JSON array")
		}
		return map[string][]models.Record{models.SheetDefault: nonNil(rows)}, nil
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.Wrap(err, "decoding JSON object")
	}

	switch {
	case p.Sheets != nil:
		for name, rows := range p.Sheets {
			p.Sheets[name] = nonNil(rows)
		}
		return p.Sheets, nil
	case p.Endpoints != nil || p.Threats != nil:
		return map[string][]models.Record{
			models.SheetEndpoints: nonNil(p.Endpoints),
			models.SheetThreats:   nonNil(p.Threats),
		}, nil
	case p.Data != nil:
		return map[string][]models.Record{models.SheetDefault: p.Data}, nil
	}
	return nil, errors.New(`JSON must hold "sheets", "endpoints"/"threats", "data" or an array`)
}

// Decode picks the reader for a file by its extension.
func Decode(filename string, r io.Reader) (map[string][]models.Record, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return Load(r)
	case ".json":
		return DecodeJSON(r)
	}
	return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", filename)
}

// LoadFile opens and decodes a file on disk.
func LoadFile(path string) (map[string][]models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	defer f.Close()
	return Decode(path, f)
}

func nonNil(rows []models.Record) []models.Record {
	if rows == nil {
		return []models.Record{}
	}
	return rows
}
