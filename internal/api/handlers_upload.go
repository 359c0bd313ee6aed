// handlers_upload.go - Chunked upload and archive handlers
package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/soc-analytics/backend/internal/logging"
	"github.com/soc-analytics/backend/internal/models"
	"github.com/soc-analytics/backend/internal/storage"
	"github.com/soc-analytics/backend/internal/upload"
)

const (
	recentFilesLimit = 20
	jobPollInterval  = 250 * time.Millisecond
	jobStreamTimeout = 10 * time.Minute
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	archive FileArchive
	jobs    JobRunner
	allowed []string
	logger  *zap.Logger
}

// NewUploadHandler creates a new upload handler instance
func NewUploadHandler(archive FileArchive, jobs JobRunner, allowed []string, logger *zap.Logger) UploadHandler {
	return &UploadHandlerImpl{
		archive: archive,
		jobs:    jobs,
		allowed: allowed,
		logger:  logging.OrNop(logger),
	}
}

// HandleUploadChunk accepts a single chunk of a chunked upload
func (h *UploadHandlerImpl) HandleUploadChunk(c echo.Context) error {
	var req uploadChunkRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	if err := h.archive.SaveChunk(req.UploadID, req.ChunkIndex, bytes.NewReader(decoded)); err != nil {
		return NewBadRequestError("failed to save chunk", err)
	}

	return c.NoContent(http.StatusAccepted)
}

// HandleCompleteUpload completes a chunked upload and starts async import
func (h *UploadHandlerImpl) HandleCompleteUpload(c echo.Context) error {
	var req completeUploadRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	if err := req.validate(h.allowed); err != nil {
		return err
	}

	job, err := h.jobs.StartJob(upload.Request{
		UploadID:    req.UploadID,
		FileName:    req.Name,
		Vendor:      req.vendor,
		TotalChunks: req.TotalChunks,
		Encoding:    req.Encoding,
	})
	if err != nil {
		return NewBadRequestError("failed to start import", err)
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

// HandleGetUploadJob reports an import job. With ?stream=true the status is
// pushed as server-sent events until the job finishes.
func (h *UploadHandlerImpl) HandleGetUploadJob(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	job, ok := h.jobs.GetJob(id)
	if !ok {
		return NewNotFoundError("job", id)
	}

	if stream, _ := strconv.ParseBool(c.QueryParam("stream")); !stream {
		return c.JSON(http.StatusOK, job)
	}
	return h.streamJob(c, id)
}

func (h *UploadHandlerImpl) streamJob(c echo.Context, id string) error {
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()
	timeout := time.After(jobStreamTimeout)

	var last upload.Status
	var lastProgress float64 = -1
	for {
		job, ok := h.jobs.GetJob(id)
		if !ok {
			return sendSSEError(c, "job not found")
		}

		if job.Status != last || job.Progress != lastProgress {
			if err := sendSSEData(c, job); err != nil {
				return nil
			}
			last, lastProgress = job.Status, job.Progress
		}
		if job.Status == upload.StatusComplete || job.Status == upload.StatusError {
			return nil
		}

		select {
		case <-c.Request().Context().Done():
			return nil
		case <-timeout:
			return sendSSEError(c, "timeout waiting for import")
		case <-ticker.C:
		}
	}
}

// HandleGetRecentFiles returns a list of recently uploaded workbooks
func (h *UploadHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	limit := recentFilesLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return NewValidationError("limit")
		}
		limit = n
	}

	files, err := h.archive.List(limit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a specific file
func (h *UploadHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.archive.Get(id)
	if err != nil {
		return archiveError(err, id)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile deletes an archived upload. Datasets imported from it
// are kept.
func (h *UploadHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.archive.Delete(id); err != nil {
		return archiveError(err, id)
	}
	return c.NoContent(http.StatusNoContent)
}

func archiveError(err error, id string) *APIError {
	if errors.Is(err, storage.ErrFileNotFound) {
		return NewNotFoundError("file", id)
	}
	return NewInternalError("file operation failed", err)
}

// SSE helpers

func sendSSEData(c echo.Context, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response(), "data: %s\n\n", data); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}

func sendSSEError(c echo.Context, message string) error {
	data, _ := json.Marshal(map[string]string{"error": message})
	fmt.Fprintf(c.Response(), "event: error\ndata: %s\n\n", data)
	c.Response().Flush()
	return nil
}

// Request/Response types

type uploadChunkRequest struct {
	UploadID    string `json:"uploadId"`
	ChunkIndex  int    `json:"chunkIndex"`
	Data        string `json:"data"` // Base64-encoded chunk
	TotalChunks int    `json:"totalChunks"`
}

func (r *uploadChunkRequest) validate() error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.ChunkIndex < 0 {
		return NewValidationError("chunkIndex")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type completeUploadRequest struct {
	UploadID    string `json:"uploadId"`
	Name        string `json:"name"`
	Vendor      string `json:"vendor"`
	TotalChunks int    `json:"totalChunks"`
	Encoding    string `json:"encoding"`

	vendor models.Vendor
}

func (r *completeUploadRequest) validate(allowed []string) error {
	if r.UploadID == "" {
		return NewValidationError("uploadId")
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	vendor, ok := models.ParseVendor(r.Vendor)
	if !ok {
		return NewValidationError("vendor")
	}
	r.vendor = vendor
	if r.TotalChunks <= 0 {
		return NewBadRequestError("totalChunks must be positive", nil)
	}
	if r.Encoding != "" && r.Encoding != "gzip" {
		return NewValidationError("encoding")
	}
	if len(allowed) > 0 && !hasExtension(r.Name, allowed) {
		return NewBadRequestError("unsupported file type", nil)
	}
	return nil
}

func hasExtension(name string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range allowed {
		if a == ext {
			return true
		}
	}
	return false
}
