package file

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"file-hub/internal/config"
	"file-hub/internal/infrastructure/metrics"
	"file-hub/internal/infrastructure/observability"
	"file-hub/internal/utils/platformerrors"
	"file-hub/utils/fileid"
)

// Repository defines persistence operations needed by the service.
type Repository interface {
	// GetByID returns the record or a NOT_FOUND error.
	GetByID(ctx context.Context, id string) (*FileRecord, error)
	// FindOwnerByHash returns the owning record of the hash group, nil
	// when the hash is new to the store, and an INTEGRITY error when more
	// than one live owner matches.
	FindOwnerByHash(ctx context.Context, hash string) (*FileRecord, error)
	// Create inserts a record. Inserting a second owner for an existing
	// content hash fails with a CONFLICT error.
	Create(ctx context.Context, record *FileRecord) error
	// DeleteWithPromotion removes the record inside a single transaction,
	// promoting the earliest-created duplicate when an owner with
	// duplicates is deleted. It returns how many group members remain.
	DeleteWithPromotion(ctx context.Context, target *FileRecord) (remaining int64, err error)
	List(ctx context.Context, filter ListFilter, page, pageSize int, ordering string) (*RecordPage, error)
	ListDuplicateOwners(ctx context.Context) ([]FileRecord, error)
	Aggregate(ctx context.Context, topN int) (*RawStats, error)
}

// BlobStorage defines payload storage keyed by content hash.
type BlobStorage interface {
	Put(ctx context.Context, hash string, body io.Reader, size int64, mediaType string) error
	Get(ctx context.Context, hash string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, hash string) error
}

// Service orchestrates deduplicated uploads, deletion with ownership
// transfer, and cache-checked listing and statistics.
type Service struct {
	cfg   *config.Config
	repo  Repository
	blobs BlobStorage
	lists *ListCache
	stats *StatsCache
	log   zerolog.Logger
}

func NewService(cfg *config.Config, repo Repository, blobs BlobStorage, cache CacheClient, log zerolog.Logger) *Service {
	return &Service{
		cfg:   cfg,
		repo:  repo,
		blobs: blobs,
		lists: NewListCache(cache, cfg.ListCacheTTL, log),
		stats: NewStatsCache(cache, cfg.StatsCacheTTL, log),
		log:   log.With().Str("component", "file-service").Logger(),
	}
}

// HashContent computes the content digest used for deduplication.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:])
}

// Upload stores content and returns its record. bool reports whether the
// content was deduplicated against an existing payload.
func (s *Service) Upload(ctx context.Context, data []byte, filename, mediaType string) (*FileRecord, bool, error) {
	ctx, span := observability.StartSpan(ctx, s.cfg.ServiceName, "file.upload")
	defer span.End()

	if len(data) == 0 {
		return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "file is empty", nil, "file-upload-empty-001")
	}
	if int64(len(data)) > s.cfg.MaxFileBytes {
		return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation,
			fmt.Sprintf("file exceeds max size of %d bytes", s.cfg.MaxFileBytes), nil,
			"file-upload-toolarge-001")
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = mimetype.Detect(data).String()
	}

	hash := HashContent(data)
	observability.AddSpanAttributes(ctx,
		attribute.String("file.content_hash", hash),
		attribute.Int("file.size", len(data)),
	)

	owner, err := s.repo.FindOwnerByHash(ctx, hash)
	if err != nil {
		observability.RecordError(ctx, err)
		return nil, false, err
	}
	if owner != nil {
		return s.createDuplicate(ctx, owner, filename, mediaType, int64(len(data)))
	}

	if err := s.blobs.Put(ctx, hash, bytes.NewReader(data), int64(len(data)), mediaType); err != nil {
		return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeExternal, "failed to store payload", err, "file-upload-blob-001")
	}

	record := &FileRecord{
		ID:               fileid.New(),
		OriginalFilename: filename,
		MediaType:        mediaType,
		Size:             int64(len(data)),
		ContentHash:      hash,
		IsDuplicate:      false,
	}
	err = s.repo.Create(ctx, record)
	if err == nil {
		metrics.RecordUpload(mediaType, "created", record.Size)
		s.lists.Invalidate(ctx)
		return record, false, nil
	}
	if !platformerrors.IsType(err, platformerrors.ErrorTypeConflict) {
		return nil, false, err
	}

	// A concurrent upload of the same new content won the owner insert.
	// The payload write was idempotent (keyed by hash), so resolve the
	// winner and fall back to duplicate creation.
	owner, ferr := s.repo.FindOwnerByHash(ctx, hash)
	if ferr != nil {
		return nil, false, ferr
	}
	if owner == nil {
		return nil, false, err
	}
	return s.createDuplicate(ctx, owner, filename, mediaType, int64(len(data)))
}

func (s *Service) createDuplicate(ctx context.Context, owner *FileRecord, filename, mediaType string, size int64) (*FileRecord, bool, error) {
	ownerID := owner.ID
	record := &FileRecord{
		ID:               fileid.New(),
		OriginalFilename: filename,
		MediaType:        mediaType,
		Size:             size,
		ContentHash:      owner.ContentHash,
		IsDuplicate:      true,
		OwnerRef:         &ownerID,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, false, err
	}
	metrics.RecordUpload(mediaType, "deduplicated", size)
	metrics.RecordBytesSaved(size)
	s.lists.Invalidate(ctx)
	s.log.Info().
		Str("id", record.ID).
		Str("owner", ownerID).
		Str("hash", record.ContentHash).
		Msg("duplicate upload linked to existing payload")
	return record, true, nil
}

// Delete removes a record. Deleting an owner that still has duplicates
// transfers ownership to the earliest-created duplicate before the row is
// removed; the payload is released only when the last member of the hash
// group is destroyed.
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := observability.StartSpan(ctx, s.cfg.ServiceName, "file.delete")
	defer span.End()
	observability.AddSpanAttributes(ctx, attribute.String("file.id", id))

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	remaining, err := s.repo.DeleteWithPromotion(ctx, record)
	if err != nil {
		observability.RecordError(ctx, err)
		return err
	}

	kind := "duplicate"
	if !record.IsDuplicate {
		kind = "owner"
	}
	metrics.RecordDelete(kind)

	if remaining == 0 {
		if err := s.blobs.Delete(ctx, record.ContentHash); err != nil {
			// The row is gone; an orphaned payload is an operational
			// concern, not a caller-visible failure.
			s.log.Error().Err(err).
				Str("hash", record.ContentHash).
				Msg("failed to release payload for deleted group")
		}
	}

	s.lists.Invalidate(ctx)
	return nil
}

// Download fetches the payload for proxying. The payload is keyed by
// content hash, so duplicates resolve to the owner's bytes without an
// explicit owner hop.
func (s *Service) Download(ctx context.Context, id string) (io.ReadCloser, *FileRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	reader, mime, err := s.blobs.Get(ctx, record.ContentHash)
	if err != nil {
		return nil, nil, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeNotFound, "payload not found", err, "file-download-blob-001")
	}
	if record.MediaType == "" {
		record.MediaType = mime
	}
	return reader, record, nil
}

// ListDuplicateOwners returns owners that currently have at least one
// duplicate.
func (s *Service) ListDuplicateOwners(ctx context.Context) ([]FileRecord, error) {
	return s.repo.ListDuplicateOwners(ctx)
}

// List returns one page of records, serving from the list cache when a
// result for the same logical query is present. bool reports a cache hit.
func (s *Service) List(ctx context.Context, filter ListFilter, page, pageSize int, ordering string) (*RecordPage, bool, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.cfg.DefaultPageSize
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}
	ordering = NormalizeOrdering(ordering)

	key := s.lists.Key(filter, page, pageSize, ordering)
	if cached, ok := s.lists.GetPage(ctx, key); ok {
		return cached, true, nil
	}

	result, err := s.repo.List(ctx, filter, page, pageSize, ordering)
	if err != nil {
		return nil, false, err
	}
	s.lists.SetPage(ctx, key, result)
	return result, false, nil
}

// Stats returns the storage-efficiency statistics, recomputing lazily when
// the cached copy has expired. bool reports a cache hit.
func (s *Service) Stats(ctx context.Context) (*StorageStats, bool, error) {
	if cached, ok := s.stats.Get(ctx); ok {
		return cached, true, nil
	}

	raw, err := s.repo.Aggregate(ctx, s.cfg.StatsTopDuplicated)
	if err != nil {
		return nil, false, err
	}
	computed := ComputeStats(raw)
	s.stats.Set(ctx, computed)
	return computed, false, nil
}
