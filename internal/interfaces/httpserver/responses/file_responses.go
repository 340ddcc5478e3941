package responses

import (
	"time"

	domain "file-hub/internal/domain/file"
)

// FileRecordResponse represents one file record
type FileRecordResponse struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	MediaType        string    `json:"media_type"`
	Size             int64     `json:"size"`
	ContentHash      string    `json:"content_hash"`
	IsDuplicate      bool      `json:"is_duplicate"`
	OwnerRef         *string   `json:"owner_ref,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// BuildFileRecordResponse creates the response from the domain record
func BuildFileRecordResponse(record *domain.FileRecord) FileRecordResponse {
	return FileRecordResponse{
		ID:               record.ID,
		OriginalFilename: record.OriginalFilename,
		MediaType:        record.MediaType,
		Size:             record.Size,
		ContentHash:      record.ContentHash,
		IsDuplicate:      record.IsDuplicate,
		OwnerRef:         record.OwnerRef,
		UploadedAt:       record.CreatedAt,
	}
}

// BuildFileRecordResponses maps a slice of domain records
func BuildFileRecordResponses(records []domain.FileRecord) []FileRecordResponse {
	out := make([]FileRecordResponse, 0, len(records))
	for i := range records {
		out = append(out, BuildFileRecordResponse(&records[i]))
	}
	return out
}

// UploadResponse represents a successful upload
type UploadResponse struct {
	FileRecordResponse
	Duplicated bool   `json:"duplicated"`
	Message    string `json:"message"`
}

// BuildUploadResponse creates the upload response with the caller-facing
// new vs duplicate-of message
func BuildUploadResponse(record *domain.FileRecord, duplicated bool) *UploadResponse {
	message := "File uploaded successfully."
	if duplicated {
		message = "File already exists. Created reference to existing file."
	}
	return &UploadResponse{
		FileRecordResponse: BuildFileRecordResponse(record),
		Duplicated:         duplicated,
		Message:            message,
	}
}

// ListResponse represents one page of records
type ListResponse struct {
	Records  []FileRecordResponse `json:"records"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Cached   bool                 `json:"cached"`
}

// BuildListResponse creates the listing response
func BuildListResponse(page *domain.RecordPage, cached bool) *ListResponse {
	return &ListResponse{
		Records:  BuildFileRecordResponses(page.Records),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Cached:   cached,
	}
}

// StatsResponse wraps the aggregate statistics
type StatsResponse struct {
	*domain.StorageStats
	Cached bool `json:"cached"`
}

// BuildStatsResponse creates the statistics response
func BuildStatsResponse(stats *domain.StorageStats, cached bool) *StatsResponse {
	return &StatsResponse{StorageStats: stats, Cached: cached}
}
