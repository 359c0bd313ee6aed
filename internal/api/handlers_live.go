// handlers_live.go - Live refresh handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/soc-analytics/backend/internal/models"
)

// LiveHandlerImpl implements the LiveHandler interface
type LiveHandlerImpl struct {
	datasets DatasetService
}

// NewLiveHandler creates a new live handler instance
func NewLiveHandler(datasets DatasetService) LiveHandler {
	return &LiveHandlerImpl{datasets: datasets}
}

// HandleRefresh pulls a fresh snapshot for a vendor from the upstream API
// and stores it as a new dataset
func (h *LiveHandlerImpl) HandleRefresh(c echo.Context) error {
	vendor, ok := models.ParseVendor(c.Param("vendor"))
	if !ok {
		return NewValidationError("vendor")
	}

	ds, err := h.datasets.Refresh(c.Request().Context(), vendor)
	if err != nil {
		return datasetError(err, string(vendor))
	}
	return c.JSON(http.StatusCreated, ds)
}
