// Package upstream fetches live vendor snapshots from the tool API that
// feeds the dashboard.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/soc-analytics/backend/internal/logging"
	"github.com/soc-analytics/backend/internal/metrics"
	"github.com/soc-analytics/backend/internal/models"
	"github.com/soc-analytics/backend/internal/workbook"
)

// ErrNotConfigured is returned when no upstream base URL is set.
var ErrNotConfigured = errors.New("upstream API is not configured")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Vendor string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s live-data returned %s", e.Vendor, e.Status)
}

// Config configures the client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client reads GET {base}/tool/{vendor}/live-data/.
type Client struct {
	base    string
	token   string
	client  *http.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewClient creates a client. An empty BaseURL yields a client whose
// fetches fail with ErrNotConfigured.
func NewClient(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		logger:  logging.OrNop(logger).With(zap.String("component", "upstream")),
		metrics: m,
	}
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c.base != ""
}

// Fetch downloads the current snapshot for vendor and splits it into
// sheets.
func (c *Client) Fetch(ctx context.Context, vendor models.Vendor) (map[string][]models.Record, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	sheets, err := c.fetch(ctx, vendor)
	if err != nil {
		c.metrics.UpstreamFetch(string(vendor), "error")
		c.logger.Warn("live-data fetch failed", zap.String("vendor", string(vendor)), zap.Error(err))
		return nil, err
	}
	c.metrics.UpstreamFetch(string(vendor), "ok")
	return sheets, nil
}

func (c *Client) fetch(ctx context.Context, vendor models.Vendor) (map[string][]models.Record, error) {
	endpoint := fmt.Sprintf("%s/tool/%s/live-data/", c.base, url.PathEscape(string(vendor)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "http request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Vendor: string(vendor), Code: resp.StatusCode, Status: resp.Status}
	}

	sheets, err := workbook.DecodeJSON(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s live-data", vendor)
	}

	c.logger.Info("live-data fetched",
		zap.String("vendor", string(vendor)),
		zap.Int("sheets", len(sheets)),
		zap.Duration("elapsed", time.Since(start)))
	return sheets, nil
}
