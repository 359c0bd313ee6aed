// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version  string
	started  time.Time
	datasets DatasetService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, datasets DatasetService) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		started:  time.Now(),
		datasets: datasets,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	}
	if h.datasets != nil {
		body["datasetsLoaded"] = h.datasets.Loaded()
	}
	return c.JSON(http.StatusOK, body)
}
