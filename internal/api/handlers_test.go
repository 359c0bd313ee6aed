// handlers_test.go - Shared fixtures for handler tests
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/soc-analytics/backend/internal/filter"
	"github.com/soc-analytics/backend/internal/models"
	"github.com/soc-analytics/backend/internal/session"
	"github.com/soc-analytics/backend/internal/storage"
	"github.com/soc-analytics/backend/internal/testutil"
	"github.com/soc-analytics/backend/internal/upload"
)

type testEnv struct {
	e        *echo.Echo
	datasets *session.Manager
	store    *testutil.MockStore
	archive  *storage.LocalArchive
	jobs     *upload.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := testutil.NewMockStore()
	archive, err := storage.NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	datasets := session.NewManager(store, filter.New())
	jobs := upload.NewManager(archive, datasets, nil)

	e := echo.New()
	SetupMiddleware(e, MiddlewareConfig{})
	handlers := NewHandlers(&Dependencies{
		Datasets:          datasets,
		Archive:           archive,
		Jobs:              jobs,
		Parsers:           datasets.Parsers(),
		Location:          time.UTC,
		AllowedExtensions: []string{".xlsx", ".json"},
		KeepUploads:       true,
		Version:           "test",
	})
	RegisterRoutes(e, handlers)
	RegisterWebSocketRoutes(e, handlers)

	return &testEnv{e: e, datasets: datasets, store: store, archive: archive, jobs: jobs}
}

func (env *testEnv) importSheets(t *testing.T, vendor models.Vendor, sheets map[string][]models.Record) string {
	t.Helper()
	info, err := env.datasets.Import(context.Background(), vendor, string(vendor), sheets)
	require.NoError(t, err)
	return info.ID
}

func (env *testEnv) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) doJSON(t *testing.T, method, target string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return env.do(t, method, target, body, echo.MIMEApplicationJSON)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var apiErr APIError
	decodeBody(t, rec, &apiErr)
	return apiErr.Code
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)
	env.importSheets(t, models.VendorSIEM, testutil.SIEMSheets())

	rec := env.do(t, http.MethodGet, "/api/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("expected version test, got %v", body["version"])
	}
	if body["datasetsLoaded"] != float64(1) {
		t.Errorf("expected 1 loaded dataset, got %v", body["datasetsLoaded"])
	}
}
