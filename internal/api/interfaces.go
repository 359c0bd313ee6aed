// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/soc-analytics/backend/internal/models"
	"github.com/soc-analytics/backend/internal/upload"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// DatasetHandler handles dataset listing, import and filtered views
type DatasetHandler interface {
	HandleListDatasets(c echo.Context) error
	HandleImportDataset(c echo.Context) error
	HandleGetDataset(c echo.Context) error
	HandleDeleteDataset(c echo.Context) error
	HandleFilterDataset(c echo.Context) error
	HandleFilterDatasetMsgpack(c echo.Context) error
	HandleGetKPIs(c echo.Context) error
	HandleGetSheetRows(c echo.Context) error
	HandleKeepAlive(c echo.Context) error
}

// UploadHandler handles chunked workbook uploads
type UploadHandler interface {
	HandleUploadChunk(c echo.Context) error
	HandleCompleteUpload(c echo.Context) error
	HandleGetUploadJob(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
}

// ParseHandler exposes the vendor date parsers for diagnostics
type ParseHandler interface {
	HandleListParsers(c echo.Context) error
	HandleParseDates(c echo.Context) error
}

// LiveHandler refreshes datasets from the upstream tool API
type LiveHandler interface {
	HandleRefresh(c echo.Context) error
}

// DatasetService is the dataset lifecycle used by the handlers.
// This allows mocking in tests
type DatasetService interface {
	Import(ctx context.Context, vendor models.Vendor, name string, sheets map[string][]models.Record) (*models.DatasetInfo, error)
	Refresh(ctx context.Context, vendor models.Vendor) (*models.DatasetInfo, error)
	Get(ctx context.Context, id string) (*models.Dataset, error)
	List(ctx context.Context, limit int) ([]*models.DatasetInfo, error)
	Delete(ctx context.Context, id string) error
	Filtered(ctx context.Context, id string, r models.DateRange) (*models.FilterResult, error)
	Touch(id string) bool
	Loaded() int
}

// FileArchive is the subset of the upload archive used by the handlers.
type FileArchive interface {
	Save(name string, r io.Reader) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	Open(id string) (io.ReadCloser, *models.FileInfo, error)
	MarkImported(id, datasetID string) error
	MarkFailed(id string, cause error) error
	SaveChunk(uploadID string, chunkIndex int, r io.Reader) error
}

// JobRunner starts and reports asynchronous imports.
type JobRunner interface {
	StartJob(req upload.Request) (*upload.Job, error)
	GetJob(id string) (*upload.Job, bool)
}
