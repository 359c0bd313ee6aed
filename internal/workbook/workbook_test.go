package workbook

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/soc-analytics/backend/internal/models"
)

// createTestWorkbook builds an in-memory Meraki-style export.
func createTestWorkbook(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", models.SheetUsageOverTime))
	usage := [][]any{
		{"Time", "Total (bytes)", "Download (bytes)"},
		{"2025/04/01 00:00:00.000000 +00:00", 300, 200},
		{},
		{"2025/04/02 00:00:00.000000 +00:00", 500, ""},
	}
	for i, row := range usage {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(models.SheetUsageOverTime, cell, &row))
	}

	_, err := f.NewSheet("Top clients")
	require.NoError(t, err)
	clients := [][]any{
		{},
		{"Client", "", "Date"},
		{"laptop-1", "ignored", "15-04-2025"},
	}
	for i, row := range clients {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Top clients", cell, &row))
	}

	_, err = f.NewSheet("Empty")
	require.NoError(t, err)

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoad(t *testing.T) {
	sheets, err := Load(bytes.NewReader(createTestWorkbook(t)))
	require.NoError(t, err)

	require.Contains(t, sheets, models.SheetUsageOverTime)
	usage := sheets[models.SheetUsageOverTime]
	require.Len(t, usage, 2)
	assert.Equal(t, models.Record{
		"Time":             "2025/04/01 00:00:00.000000 +00:00",
		"Total (bytes)":    "300",
		"Download (bytes)": "200",
	}, usage[0])
	assert.NotContains(t, usage[1], "Download (bytes)")

	clients := sheets["Top clients"]
	require.Len(t, clients, 1)
	assert.Equal(t, models.Record{"Client": "laptop-1", "Date": "15-04-2025"}, clients[0])

	assert.Empty(t, sheets["Empty"])
}

func TestLoad_NotAWorkbook(t *testing.T) {
	_, err := Load(strings.NewReader("plain text"))
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	t.Run("sheets", func(t *testing.T) {
		sheets, err := DecodeJSON(strings.NewReader(`{"sheets": {"alerts": [{"severity": 4}], "empty": null}}`))
		require.NoError(t, err)
		assert.Equal(t, []models.Record{{"severity": 4.0}}, sheets["alerts"])
		assert.NotNil(t, sheets["empty"])
	})

	t.Run("edr", func(t *testing.T) {
		sheets, err := DecodeJSON(strings.NewReader(`{"endpoints": [{"hostname": "a"}]}`))
		require.NoError(t, err)
		assert.Len(t, sheets[models.SheetEndpoints], 1)
		assert.NotNil(t, sheets[models.SheetThreats])
	})

	t.Run("array", func(t *testing.T) {
		sheets, err := DecodeJSON(strings.NewReader(` [{"a": "b"}, {"a": "c"}]`))
		require.NoError(t, err)
		assert.Len(t, sheets[models.SheetDefault], 2)
	})

	t.Run("data", func(t *testing.T) {
		sheets, err := DecodeJSON(strings.NewReader(`{"data": []}`))
		require.NoError(t, err)
		assert.Empty(t, sheets[models.SheetDefault])
	})

	t.Run("unknown shape", func(t *testing.T) {
		_, err := DecodeJSON(strings.NewReader(`{"rows": []}`))
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := DecodeJSON(strings.NewReader(`{"sheets": `))
		assert.Error(t, err)
	})
}

func TestDecode(t *testing.T) {
	sheets, err := Decode("export.XLSX", bytes.NewReader(createTestWorkbook(t)))
	require.NoError(t, err)
	assert.Len(t, sheets, 3)

	_, err = Decode("export.csv", strings.NewReader("a,b"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "siem.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"date": "01-04-2025"}]`), 0644))

	sheets, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "01-04-2025", sheets[models.SheetDefault][0]["date"])

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
