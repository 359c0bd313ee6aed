package models

import "time"

// FileStatus tracks an uploaded workbook through import.
type FileStatus string

const (
	FileStatusUploaded FileStatus = "uploaded"
	FileStatusImported FileStatus = "imported"
	FileStatusError    FileStatus = "error"
)

// FileInfo represents metadata about an uploaded file.
type FileInfo struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Size       int64      `json:"size"`
	UploadedAt time.Time  `json:"uploadedAt"`
	Status     FileStatus `json:"status"`
	DatasetID  string     `json:"datasetId,omitempty"`
	Error      string     `json:"error,omitempty"`
}
