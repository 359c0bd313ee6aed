// Package upload runs asynchronous import jobs for chunked workbook uploads.
package upload

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/soc-analytics/backend/internal/logging"
	"github.com/soc-analytics/backend/internal/models"
	"github.com/soc-analytics/backend/internal/storage"
	"github.com/soc-analytics/backend/internal/workbook"
)

// Status represents the job processing status.
type Status string

const (
	StatusProcessing    Status = "processing"
	StatusAssembling    Status = "assembling"
	StatusDecompressing Status = "decompressing"
	StatusDecoding      Status = "decoding"
	StatusImporting     Status = "importing"
	StatusComplete      Status = "complete"
	StatusError         Status = "error"
)

// Job represents an async import job.
type Job struct {
	ID          string              `json:"id"`
	UploadID    string              `json:"uploadId"`
	FileName    string              `json:"fileName"`
	Vendor      models.Vendor       `json:"vendor"`
	TotalChunks int                 `json:"totalChunks"`
	Encoding    string              `json:"encoding,omitempty"`
	Status      Status              `json:"status"`
	Progress    float64             `json:"progress"`
	Stage       string              `json:"stage"`
	FileInfo    *models.FileInfo    `json:"fileInfo,omitempty"`
	Dataset     *models.DatasetInfo `json:"dataset,omitempty"`
	Error       string              `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
}

// Importer turns decoded sheets into a stored dataset.
type Importer interface {
	Import(ctx context.Context, vendor models.Vendor, name string, sheets map[string][]models.Record) (*models.DatasetInfo, error)
}

// Request describes a chunked upload that is ready to assemble.
type Request struct {
	UploadID    string
	FileName    string
	Vendor      models.Vendor
	TotalChunks int
	// Encoding is "gzip" when the client compressed the file before
	// chunking it.
	Encoding string
}

// Manager handles async import processing.
type Manager struct {
	jobs     map[string]*Job
	mu       sync.RWMutex
	archive  storage.Archive
	importer Importer
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewManager creates a new import job manager.
func NewManager(archive storage.Archive, importer Importer, logger *zap.Logger) *Manager {
	return &Manager{
		jobs:     make(map[string]*Job),
		archive:  archive,
		importer: importer,
		logger:   logging.OrNop(logger).With(zap.String("component", "upload")),
	}
}

// StartJob begins async processing of a chunked upload.
func (m *Manager) StartJob(req Request) (*Job, error) {
	if _, ok := models.ParseVendor(string(req.Vendor)); !ok {
		return nil, fmt.Errorf("unknown vendor %q", req.Vendor)
	}
	if req.TotalChunks <= 0 {
		return nil, fmt.Errorf("totalChunks must be positive")
	}

	job := &Job{
		ID:          uuid.New().String(),
		UploadID:    req.UploadID,
		FileName:    req.FileName,
		Vendor:      req.Vendor,
		TotalChunks: req.TotalChunks,
		Encoding:    req.Encoding,
		Status:      StatusProcessing,
		Stage:       "preparing",
		CreatedAt:   time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.processJob(job)
	}()

	return m.snapshot(job), nil
}

// GetJob retrieves a copy of a job by ID.
func (m *Manager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

// Wait blocks until every started job has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) snapshot(job *Job) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := *job
	return &cp
}

func (m *Manager) processJob(job *Job) {
	defer func() {
		if r := recover(); r != nil {
			m.markJobError(job, nil, fmt.Errorf("import panicked: %v", r))
		}
	}()

	log := m.logger.With(zap.String("job", job.ID), zap.String("file", job.FileName))
	log.Info("import job started")

	m.updateJobStatus(job, StatusAssembling, "assembling chunks")
	info, err := m.archive.CompleteChunkedUpload(job.UploadID, job.FileName, job.TotalChunks)
	if err != nil {
		m.markJobError(job, nil, fmt.Errorf("failed to assemble chunks: %w", err))
		return
	}
	m.mu.Lock()
	job.FileInfo = info
	m.mu.Unlock()

	sheets, err := m.decode(job, info)
	if err != nil {
		m.markJobError(job, info, err)
		return
	}

	m.updateJobStatus(job, StatusImporting, "importing dataset")
	ds, err := m.importer.Import(context.Background(), job.Vendor, job.FileName, sheets)
	if err != nil {
		m.markJobError(job, info, fmt.Errorf("import failed: %w", err))
		return
	}
	if err := m.archive.MarkImported(info.ID, ds.ID); err != nil {
		log.Warn("failed to mark upload imported", zap.Error(err))
	}

	m.markJobComplete(job, ds)
	log.Info("import job complete", zap.String("dataset", ds.ID), zap.Int("records", ds.RecordCount))
}

func (m *Manager) decode(job *Job, info *models.FileInfo) (map[string][]models.Record, error) {
	rc, _, err := m.archive.Open(info.ID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if job.Encoding == "gzip" {
		m.updateJobStatus(job, StatusDecompressing, "decompressing file")
		zr, err := gzip.NewReader(bufio.NewReader(rc))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	m.updateJobStatus(job, StatusDecoding, "reading workbook")
	sheets, err := workbook.Decode(job.FileName, r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", job.FileName, err)
	}
	return sheets, nil
}

// updateJobStatus updates job progress (thread-safe).
func (m *Manager) updateJobStatus(job *Job, status Status, stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = status
	job.Stage = stage

	// Assembling: 0-30%, Decompressing: 30-50%, Decoding: 50-80%, Importing: 80-100%
	switch status {
	case StatusAssembling:
		job.Progress = 0
	case StatusDecompressing:
		job.Progress = 30
	case StatusDecoding:
		job.Progress = 50
	case StatusImporting:
		job.Progress = 80
	}
}

// markJobComplete marks job as complete (thread-safe).
func (m *Manager) markJobComplete(job *Job, ds *models.DatasetInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusComplete
	job.Stage = "done"
	job.Progress = 100
	job.Dataset = ds
	now := time.Now()
	job.CompletedAt = &now
}

// markJobError marks job as failed (thread-safe).
func (m *Manager) markJobError(job *Job, info *models.FileInfo, err error) {
	if info != nil {
		if markErr := m.archive.MarkFailed(info.ID, err); markErr != nil {
			m.logger.Warn("failed to mark upload failed", zap.Error(markErr))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = StatusError
	job.Error = err.Error()
	now := time.Now()
	job.CompletedAt = &now
	m.logger.Warn("import job failed", zap.String("job", job.ID), zap.Error(err))
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for id, job := range m.jobs {
		if job.Status == StatusComplete || job.Status == StatusError {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(m.jobs, id)
			}
		}
	}
}
