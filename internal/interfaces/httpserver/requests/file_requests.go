package requests

import (
	"time"

	domain "file-hub/internal/domain/file"
)

// ListFilesRequest represents the query string of a listing request
type ListFilesRequest struct {
	Filename       string     `form:"filename"`
	MediaType      string     `form:"media_type"`
	IsDuplicate    *bool      `form:"is_duplicate"`
	MinSize        *int64     `form:"min_size"`
	MaxSize        *int64     `form:"max_size"`
	UploadedAfter  *time.Time `form:"uploaded_after" time_format:"2006-01-02T15:04:05Z07:00"`
	UploadedBefore *time.Time `form:"uploaded_before" time_format:"2006-01-02T15:04:05Z07:00"`
	Page           int        `form:"page,default=1"`
	PageSize       int        `form:"page_size"`
	Ordering       string     `form:"ordering"`
}

// ToFilter converts request parameters to the domain filter
func (r *ListFilesRequest) ToFilter() domain.ListFilter {
	return domain.ListFilter{
		Filename:       r.Filename,
		MediaType:      r.MediaType,
		IsDuplicate:    r.IsDuplicate,
		MinSize:        r.MinSize,
		MaxSize:        r.MaxSize,
		UploadedAfter:  r.UploadedAfter,
		UploadedBefore: r.UploadedBefore,
	}
}
