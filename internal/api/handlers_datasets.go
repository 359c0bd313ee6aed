// handlers_datasets.go - Dataset, filter and table handlers
package api

import (
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/soc-analytics/backend/internal/logging"
	"github.com/soc-analytics/backend/internal/models"
	"github.com/soc-analytics/backend/internal/table"
	"github.com/soc-analytics/backend/internal/workbook"
)

// MIMEApplicationMsgpack is the content type of MessagePack responses.
const MIMEApplicationMsgpack = "application/msgpack"

const defaultListLimit = 50

// DatasetHandlerImpl implements the DatasetHandler interface
type DatasetHandlerImpl struct {
	datasets   DatasetService
	archive    FileArchive
	loc        *time.Location
	allowed    []string
	listLimit  int
	logger     *zap.Logger
	keepUpload bool
}

// DatasetHandlerConfig configures a DatasetHandlerImpl.
type DatasetHandlerConfig struct {
	// Location interprets the YYYY-MM-DD range bounds.
	Location *time.Location
	// AllowedExtensions limits direct imports; empty allows every
	// format the workbook reader understands.
	AllowedExtensions []string
	ListLimit         int
	// KeepUploads archives imported files; otherwise they are dropped once
	// the dataset is stored.
	KeepUploads bool
}

// NewDatasetHandler creates a new dataset handler instance
func NewDatasetHandler(datasets DatasetService, archive FileArchive, cfg DatasetHandlerConfig, logger *zap.Logger) DatasetHandler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = defaultListLimit
	}
	return &DatasetHandlerImpl{
		datasets:   datasets,
		archive:    archive,
		loc:        cfg.Location,
		allowed:    cfg.AllowedExtensions,
		listLimit:  cfg.ListLimit,
		logger:     logging.OrNop(logger),
		keepUpload: cfg.KeepUploads,
	}
}

// HandleListDatasets returns stored dataset metadata, newest first
func (h *DatasetHandlerImpl) HandleListDatasets(c echo.Context) error {
	limit := h.listLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return NewValidationError("limit")
		}
		limit = n
	}

	list, err := h.datasets.List(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to list datasets", err)
	}
	if vendor := c.QueryParam("vendor"); vendor != "" {
		list = filterByVendor(list, models.Vendor(strings.ToLower(vendor)))
	}
	return c.JSON(http.StatusOK, list)
}

// HandleImportDataset accepts a workbook (multipart/form-data) and imports it
func (h *DatasetHandlerImpl) HandleImportDataset(c echo.Context) error {
	vendor, ok := models.ParseVendor(c.FormValue("vendor"))
	if !ok {
		return NewValidationError("vendor")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}
	if !h.extensionAllowed(file.Filename) {
		return NewBadRequestError("unsupported file type", workbook.ErrUnsupportedFormat)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	// Save first, then decode from the archived copy.
	info, err := h.archive.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	sheets, err := h.decodeArchived(file.Filename, info.ID)
	if err != nil {
		h.markFailed(info.ID, err)
		return NewBadRequestError("failed to read workbook", err)
	}

	name := c.FormValue("name")
	if name == "" {
		name = strings.TrimSuffix(info.Name, filepath.Ext(info.Name))
	}

	ds, err := h.datasets.Import(c.Request().Context(), vendor, name, sheets)
	if err != nil {
		h.markFailed(info.ID, err)
		return NewInternalError("failed to import dataset", err)
	}

	if h.keepUpload {
		if err := h.archive.MarkImported(info.ID, ds.ID); err != nil {
			h.logger.Warn("failed to mark upload imported", zap.String("file", info.ID), zap.String("dataset", ds.ID), zap.Error(err))
		}
	} else if err := h.archive.Delete(info.ID); err != nil {
		h.logger.Warn("failed to drop imported upload", zap.String("file", info.ID), zap.Error(err))
	}

	return c.JSON(http.StatusCreated, ds)
}

func (h *DatasetHandlerImpl) markFailed(id string, cause error) {
	if err := h.archive.MarkFailed(id, cause); err != nil {
		h.logger.Warn("failed to mark upload failed", zap.String("file", id), zap.NamedError("cause", cause), zap.Error(err))
	}
}

func (h *DatasetHandlerImpl) decodeArchived(filename, id string) (map[string][]models.Record, error) {
	rc, _, err := h.archive.Open(id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return workbook.Decode(filename, rc)
}

// HandleGetDataset returns dataset metadata
func (h *DatasetHandlerImpl) HandleGetDataset(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	ds, err := h.datasets.Get(c.Request().Context(), id)
	if err != nil {
		return datasetError(err, id)
	}
	return c.JSON(http.StatusOK, ds.Info())
}

// HandleDeleteDataset removes a dataset and its cached views
func (h *DatasetHandlerImpl) HandleDeleteDataset(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.datasets.Delete(c.Request().Context(), id); err != nil {
		return datasetError(err, id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleFilterDataset returns the dataset narrowed to ?start=&end= with
// recomputed KPIs. Clients sending Accept: application/msgpack get
// MessagePack.
func (h *DatasetHandlerImpl) HandleFilterDataset(c echo.Context) error {
	res, err := h.filtered(c)
	if err != nil {
		return err
	}
	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEApplicationMsgpack) {
		return respondMsgpack(c, http.StatusOK, res)
	}
	return c.JSON(http.StatusOK, res)
}

// HandleFilterDatasetMsgpack always answers in MessagePack
func (h *DatasetHandlerImpl) HandleFilterDatasetMsgpack(c echo.Context) error {
	res, err := h.filtered(c)
	if err != nil {
		return err
	}
	return respondMsgpack(c, http.StatusOK, res)
}

// HandleGetKPIs returns only the recomputed KPIs and per-sheet counts
func (h *DatasetHandlerImpl) HandleGetKPIs(c echo.Context) error {
	res, err := h.filtered(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summarize(c.Param("id"), res))
}

// HandleGetSheetRows returns one sheet of the filtered dataset, searched,
// sorted and paginated
func (h *DatasetHandlerImpl) HandleGetSheetRows(c echo.Context) error {
	sheet, err := url.PathUnescape(c.Param("sheet"))
	if err != nil || sheet == "" {
		return NewValidationError("sheet")
	}

	res, err := h.filtered(c)
	if err != nil {
		return err
	}

	rows, ok := res.Dataset.Sheets[sheet]
	if !ok {
		return NewNotFoundError("sheet", sheet)
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))

	return c.JSON(http.StatusOK, table.Apply(rows, table.Query{
		Search:        c.QueryParam("search"),
		SortColumn:    c.QueryParam("sort"),
		SortDirection: c.QueryParam("dir"),
		Page:          page,
		PageSize:      pageSize,
	}))
}

// HandleKeepAlive keeps a loaded dataset in memory while it is viewed
func (h *DatasetHandlerImpl) HandleKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if ok := h.datasets.Touch(id); !ok {
		return NewNotFoundError("dataset", id)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *DatasetHandlerImpl) filtered(c echo.Context) (*models.FilterResult, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}

	r, err := models.ParseDateRange(c.QueryParam("start"), c.QueryParam("end"), h.loc)
	if err != nil {
		return nil, NewBadRequestError("invalid date range", err)
	}

	res, err := h.datasets.Filtered(c.Request().Context(), id, r)
	if err != nil {
		return nil, datasetError(err, id)
	}
	return res, nil
}

func (h *DatasetHandlerImpl) extensionAllowed(name string) bool {
	return len(h.allowed) == 0 || hasExtension(name, h.allowed)
}

// kpiResponse is the rows-free view of a FilterResult.
type kpiResponse struct {
	DatasetID string                       `json:"datasetId" msgpack:"datasetId"`
	Range     models.DateRange             `json:"range" msgpack:"range"`
	Counts    map[string]models.SheetCount `json:"counts" msgpack:"counts"`
	KPIs      models.KPIs                  `json:"kpis" msgpack:"kpis"`
}

func summarize(id string, res *models.FilterResult) kpiResponse {
	return kpiResponse{
		DatasetID: id,
		Range:     res.Range,
		Counts:    res.Counts,
		KPIs:      res.KPIs,
	}
}

func respondMsgpack(c echo.Context, code int, v interface{}) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return NewInternalError("failed to encode response", err)
	}
	return c.Blob(code, MIMEApplicationMsgpack, data)
}

func filterByVendor(list []*models.DatasetInfo, vendor models.Vendor) []*models.DatasetInfo {
	out := make([]*models.DatasetInfo, 0, len(list))
	for _, info := range list {
		if info.Vendor == vendor {
			out = append(out, info)
		}
	}
	return out
}
