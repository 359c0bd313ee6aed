package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soc-analytics/backend/internal/testutil"
)

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeSheets(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestFilterCmd(t *testing.T) {
	path := writeSheets(t, map[string]any{"sheets": testutil.SIEMSheets()})

	out, _, err := runCmd(t, "filter", "--vendor", "siem", "--start", "2025-04-01", "--end", "2025-04-05", "--kpi", path)
	require.NoError(t, err)

	var got filterOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "siem", got.Vendor)
	assert.Equal(t, 5, got.Counts["alerts"].Total)
	assert.Equal(t, 3, got.Counts["alerts"].Filtered)
	assert.Len(t, got.Sheets["alerts"], 3)
	require.NotNil(t, got.KPIs)
	assert.NotNil(t, got.KPIs.SIEM)
}

func TestFilterCmd_NoRange(t *testing.T) {
	path := writeSheets(t, map[string]any{"sheets": testutil.SIEMSheets()})

	out, _, err := runCmd(t, "filter", "--vendor", "siem", "--counts-only", path)
	require.NoError(t, err)

	var got filterOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 5, got.Counts["alerts"].Filtered)
	assert.Nil(t, got.Sheets)
	assert.Nil(t, got.KPIs)
}

func TestFilterCmd_Errors(t *testing.T) {
	path := writeSheets(t, []any{})

	tests := []struct {
		name string
		args []string
	}{
		{"unknown vendor", []string{"filter", "--vendor", "splunk", path}},
		{"bad start", []string{"filter", "--vendor", "siem", "--start", "04/01/2025", path}},
		{"bad timezone", []string{"filter", "--vendor", "siem", "--tz", "Mars/Olympus", path}},
		{"missing file", []string{"filter", "--vendor", "siem", filepath.Join(t.TempDir(), "nope.json")}},
		{"missing vendor", []string{"filter", path}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCmd(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestParseCmd(t *testing.T) {
	out, _, err := runCmd(t, "parse", "--vendor", "siem", "01-04-2025 11.41.14 PM")
	require.NoError(t, err)
	assert.Equal(t, "2025-04-01T23:41:14Z", strings.TrimSpace(out))

	out, stderr, err := runCmd(t, "parse", "--vendor", "edr", "Completed(Apr 03, 2025 04:19:06 PM)", "garbage")
	assert.Error(t, err)
	assert.Contains(t, out, "2025-04-03T16:19:06Z")
	assert.Contains(t, stderr, "garbage")
}
