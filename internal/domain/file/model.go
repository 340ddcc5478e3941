package file

import "time"

// FileRecord represents stored file metadata. Records with IsDuplicate set
// do not own their payload; OwnerRef resolves in one hop to the owning
// record of the same content hash.
type FileRecord struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	MediaType        string    `json:"media_type"`
	Size             int64     `json:"size"`
	ContentHash      string    `json:"content_hash"`
	IsDuplicate      bool      `json:"is_duplicate"`
	OwnerRef         *string   `json:"owner_ref,omitempty"`
	CreatedAt        time.Time `json:"uploaded_at"`
	UpdatedAt        time.Time `json:"-"`
}

// ListFilter narrows a listing query. Zero values mean "not set".
type ListFilter struct {
	Filename       string     `json:"filename,omitempty"`
	MediaType      string     `json:"media_type,omitempty"`
	IsDuplicate    *bool      `json:"is_duplicate,omitempty"`
	MinSize        *int64     `json:"min_size,omitempty"`
	MaxSize        *int64     `json:"max_size,omitempty"`
	UploadedAfter  *time.Time `json:"uploaded_after,omitempty"`
	UploadedBefore *time.Time `json:"uploaded_before,omitempty"`
}

// DefaultOrdering sorts newest uploads first.
const DefaultOrdering = "-uploaded_at"

var orderableFields = map[string]struct{}{
	"uploaded_at":       {},
	"size":              {},
	"original_filename": {},
}

// NormalizeOrdering validates an ordering expression ("field" or "-field")
// and falls back to DefaultOrdering for anything not orderable.
func NormalizeOrdering(raw string) string {
	field := raw
	if len(field) > 0 && field[0] == '-' {
		field = field[1:]
	}
	if _, ok := orderableFields[field]; !ok {
		return DefaultOrdering
	}
	return raw
}

// RecordPage is one page of a listing result, the unit stored in the list
// cache.
type RecordPage struct {
	Records  []FileRecord `json:"records"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// DuplicatedOwner is one row of the top-duplicated statistic.
type DuplicatedOwner struct {
	ID                string  `json:"id"`
	OriginalFilename  string  `json:"original_filename"`
	Size              int64   `json:"size"`
	DuplicateCount    int64   `json:"duplicate_count"`
	TotalSizeSaved    int64   `json:"total_size_saved"`
	OriginalityFactor float64 `json:"originality_factor"`
}

// StorageStats are the derived storage-efficiency statistics.
type StorageStats struct {
	TotalFiles               int64             `json:"total_files"`
	UniqueFiles              int64             `json:"unique_files"`
	DuplicateFiles           int64             `json:"duplicate_files"`
	ActualStorage            int64             `json:"actual_storage"`
	TheoreticalStorage       int64             `json:"theoretical_storage"`
	OriginalityPercentage    float64           `json:"originality_percentage"`
	StorageEfficiency        float64           `json:"storage_efficiency"`
	AverageDuplicationFactor float64           `json:"average_duplication_factor"`
	TopDuplicated            []DuplicatedOwner `json:"top_duplicated"`
}

// RawStats are the storage-level aggregates the statistics are derived from.
type RawStats struct {
	TotalFiles     int64
	DuplicateFiles int64
	OwnerBytes     int64
	TotalBytes     int64
	// DuplicateGroups maps owner id to its duplicate count, for owners
	// that have at least one duplicate.
	DuplicateGroups map[string]int64
	// TopDuplicated holds the N owners with the most duplicates,
	// descending, ties broken by owner id.
	TopDuplicated []OwnerDuplicates
}

// OwnerDuplicates pairs an owning record with its duplicate count.
type OwnerDuplicates struct {
	Record         FileRecord
	DuplicateCount int64
}
