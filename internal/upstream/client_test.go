package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soc-analytics/backend/internal/models"
)

func TestClient_Fetch(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/tool/edr/live-data/":
			w.Write([]byte(`{"endpoints": [{"hostname": "web-01"}], "threats": []}`))
		case "/api/tool/siem/live-data/":
			w.Write([]byte(`[{"date": "01-04-2025"}]`))
		default:
			http.Error(w, "nope", http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/api/", Token: "secret", Timeout: time.Second}, nil, nil)
	require.True(t, c.Configured())

	sheets, err := c.Fetch(context.Background(), models.VendorEDR)
	require.NoError(t, err)
	assert.Equal(t, "/api/tool/edr/live-data/", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Len(t, sheets[models.SheetEndpoints], 1)
	assert.Empty(t, sheets[models.SheetThreats])

	sheets, err = c.Fetch(context.Background(), models.VendorSIEM)
	require.NoError(t, err)
	assert.Len(t, sheets[models.SheetDefault], 1)

	_, err = c.Fetch(context.Background(), models.VendorMeraki)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient(Config{}, nil, nil)
	assert.False(t, c.Configured())

	_, err := c.Fetch(context.Background(), models.VendorEDR)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestClient_BadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected": true}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil, nil)
	_, err := c.Fetch(context.Background(), models.VendorEDR)
	assert.Error(t, err)
}
