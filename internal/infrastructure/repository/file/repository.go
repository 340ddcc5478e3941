package file

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "file-hub/internal/domain/file"
	"file-hub/internal/infrastructure/database/entities"
	"file-hub/internal/infrastructure/metrics"
	"file-hub/internal/utils/platformerrors"
)

// Repository handles file record persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.FileRecord, error) {
	var entity entities.FileRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				"file record not found",
				err,
				"file-get-notfound-001",
			)
		}
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to get file record",
			err,
			"file-get-db-001",
		)
	}
	record := mapEntity(entity)
	return &record, nil
}

// FindOwnerByHash returns the owning record of a hash group. The schema
// keeps "not a duplicate" equivalent to "no owner reference", so the owner
// predicate is the duplicate flag alone; matching more than one row means
// the owner-uniqueness invariant is broken and is surfaced, never resolved
// by picking one.
func (r *Repository) FindOwnerByHash(ctx context.Context, hash string) (*domain.FileRecord, error) {
	var owners []entities.FileRecord
	err := r.db.WithContext(ctx).
		Where("content_hash = ? AND NOT is_duplicate", hash).
		Limit(2).
		Find(&owners).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to find owner by hash",
			err,
			"file-findowner-db-001",
		)
	}
	switch len(owners) {
	case 0:
		return nil, nil
	case 1:
		record := mapEntity(owners[0])
		return &record, nil
	default:
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeIntegrity,
			fmt.Sprintf("multiple owners found for content hash %s", hash),
			nil,
			"file-findowner-integrity-001",
		)
	}
}

func (r *Repository) Create(ctx context.Context, record *domain.FileRecord) error {
	entity := mapRecord(record)
	err := r.db.WithContext(ctx).Create(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeConflict,
				"an owner already exists for this content hash",
				err,
				"file-create-conflict-001",
			)
		}
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to create file record",
			err,
			"file-create-db-001",
		)
	}
	record.CreatedAt = entity.CreatedAt
	record.UpdatedAt = entity.UpdatedAt
	return nil
}

// DeleteWithPromotion removes the target row and, when an owner with
// duplicates is deleted, transfers ownership to the earliest-created
// duplicate (ties broken by lowest id). The row delete, the bulk re-point
// and the promoted record's mutation run in one transaction so a
// concurrent reader never observes a group with zero or two owners. The
// target row goes first because the partial unique index would otherwise
// reject the promoted record while the old owner still exists.
//
// The promotion decision is made on the row's state inside the
// transaction, locked with FOR UPDATE, never on the caller's snapshot: a
// concurrent owner delete may have promoted the target between the
// caller's load and this transaction, and deleting a freshly promoted
// owner on a stale duplicate flag would leave the group ownerless.
func (r *Repository) DeleteWithPromotion(ctx context.Context, target *domain.FileRecord) (int64, error) {
	var remaining int64
	promoted := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current entities.FileRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", target.ID).
			First(&current).Error; err != nil {
			return err
		}

		if err := tx.Where("id = ?", current.ID).Delete(&entities.FileRecord{}).Error; err != nil {
			return err
		}

		if !current.IsDuplicate {
			var successor entities.FileRecord
			err := tx.Where("owner_ref = ?", current.ID).
				Order("created_at ASC, id ASC").
				First(&successor).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err == nil {
				if err := tx.Model(&entities.FileRecord{}).
					Where("owner_ref = ? AND id <> ?", current.ID, successor.ID).
					Update("owner_ref", successor.ID).Error; err != nil {
					return err
				}
				if err := tx.Model(&entities.FileRecord{}).
					Where("id = ?", successor.ID).
					Updates(map[string]interface{}{
						"is_duplicate": false,
						"owner_ref":    nil,
					}).Error; err != nil {
					return err
				}
				promoted = true
			}
		}

		return tx.Model(&entities.FileRecord{}).
			Where("content_hash = ?", current.ContentHash).
			Count(&remaining).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, platformerrors.NewError(
				ctx,
				platformerrors.LayerRepository,
				platformerrors.ErrorTypeNotFound,
				"file record not found",
				err,
				"file-delete-notfound-001",
			)
		}
		return 0, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to delete file record",
			err,
			"file-delete-db-001",
		)
	}
	if promoted {
		metrics.RecordPromotion()
	}
	return remaining, nil
}

var orderingColumns = map[string]string{
	"uploaded_at":       "created_at",
	"size":              "size",
	"original_filename": "original_filename",
}

func (r *Repository) List(ctx context.Context, filter domain.ListFilter, page, pageSize int, ordering string) (*domain.RecordPage, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&entities.FileRecord{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to count file records",
			err,
			"file-list-count-001",
		)
	}

	var rows []entities.FileRecord
	err := query.Order(orderingClause(ordering)).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list file records",
			err,
			"file-list-db-001",
		)
	}

	records := make([]domain.FileRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, mapEntity(row))
	}
	return &domain.RecordPage{
		Records:  records,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (r *Repository) applyFilter(query *gorm.DB, filter domain.ListFilter) *gorm.DB {
	if filter.Filename != "" {
		query = query.Where("original_filename ILIKE ?", "%"+filter.Filename+"%")
	}
	if filter.MediaType != "" {
		query = query.Where("LOWER(media_type) = LOWER(?)", filter.MediaType)
	}
	if filter.IsDuplicate != nil {
		query = query.Where("is_duplicate = ?", *filter.IsDuplicate)
	}
	if filter.MinSize != nil {
		query = query.Where("size >= ?", *filter.MinSize)
	}
	if filter.MaxSize != nil {
		query = query.Where("size <= ?", *filter.MaxSize)
	}
	if filter.UploadedAfter != nil {
		query = query.Where("created_at >= ?", *filter.UploadedAfter)
	}
	if filter.UploadedBefore != nil {
		query = query.Where("created_at <= ?", *filter.UploadedBefore)
	}
	return query
}

func orderingClause(ordering string) string {
	direction := "ASC"
	field := ordering
	if strings.HasPrefix(ordering, "-") {
		direction = "DESC"
		field = ordering[1:]
	}
	column, ok := orderingColumns[field]
	if !ok {
		return "created_at DESC"
	}
	return column + " " + direction
}

func (r *Repository) ListDuplicateOwners(ctx context.Context) ([]domain.FileRecord, error) {
	var rows []entities.FileRecord
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&entities.FileRecord{}).
			Select("DISTINCT owner_ref").
			Where("is_duplicate")).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to list duplicate owners",
			err,
			"file-duplicates-db-001",
		)
	}
	records := make([]domain.FileRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, mapEntity(row))
	}
	return records, nil
}

type duplicateGroupRow struct {
	OwnerRef       string
	DuplicateCount int64
}

type topDuplicatedRow struct {
	entities.FileRecord
	DuplicateCount int64
}

// Aggregate collects the raw aggregates the storage statistics are derived
// from: population counts, owner and total byte sums, per-owner duplicate
// counts, and the top-N most duplicated owners.
func (r *Repository) Aggregate(ctx context.Context, topN int) (*domain.RawStats, error) {
	raw := &domain.RawStats{DuplicateGroups: map[string]int64{}}
	db := r.db.WithContext(ctx)

	if err := db.Model(&entities.FileRecord{}).Count(&raw.TotalFiles).Error; err != nil {
		return nil, r.aggregateError(ctx, "count records", err)
	}
	if err := db.Model(&entities.FileRecord{}).
		Where("is_duplicate").
		Count(&raw.DuplicateFiles).Error; err != nil {
		return nil, r.aggregateError(ctx, "count duplicates", err)
	}
	if err := db.Model(&entities.FileRecord{}).
		Select("COALESCE(SUM(size), 0)").
		Where("NOT is_duplicate").
		Scan(&raw.OwnerBytes).Error; err != nil {
		return nil, r.aggregateError(ctx, "sum owner bytes", err)
	}
	if err := db.Model(&entities.FileRecord{}).
		Select("COALESCE(SUM(size), 0)").
		Scan(&raw.TotalBytes).Error; err != nil {
		return nil, r.aggregateError(ctx, "sum total bytes", err)
	}

	var groups []duplicateGroupRow
	if err := db.Model(&entities.FileRecord{}).
		Select("owner_ref, COUNT(*) AS duplicate_count").
		Where("is_duplicate").
		Group("owner_ref").
		Scan(&groups).Error; err != nil {
		return nil, r.aggregateError(ctx, "group duplicates", err)
	}
	for _, group := range groups {
		raw.DuplicateGroups[group.OwnerRef] = group.DuplicateCount
	}

	var top []topDuplicatedRow
	if err := db.Raw(
		`SELECT f.*, d.duplicate_count
		 FROM file_records f
		 JOIN (
			SELECT owner_ref, COUNT(*) AS duplicate_count
			FROM file_records
			WHERE is_duplicate
			GROUP BY owner_ref
		 ) d ON d.owner_ref = f.id
		 ORDER BY d.duplicate_count DESC, f.id ASC
		 LIMIT ?`, topN,
	).Scan(&top).Error; err != nil {
		return nil, r.aggregateError(ctx, "top duplicated", err)
	}
	raw.TopDuplicated = make([]domain.OwnerDuplicates, 0, len(top))
	for _, row := range top {
		raw.TopDuplicated = append(raw.TopDuplicated, domain.OwnerDuplicates{
			Record:         mapEntity(row.FileRecord),
			DuplicateCount: row.DuplicateCount,
		})
	}

	return raw, nil
}

func (r *Repository) aggregateError(ctx context.Context, op string, err error) error {
	return platformerrors.NewError(
		ctx,
		platformerrors.LayerRepository,
		platformerrors.ErrorTypeDatabaseError,
		"failed to aggregate storage stats: "+op,
		err,
		"file-stats-db-001",
	)
}

func mapEntity(entity entities.FileRecord) domain.FileRecord {
	return domain.FileRecord{
		ID:               entity.ID,
		OriginalFilename: entity.OriginalFilename,
		MediaType:        entity.MediaType,
		Size:             entity.Size,
		ContentHash:      entity.ContentHash,
		IsDuplicate:      entity.IsDuplicate,
		OwnerRef:         entity.OwnerRef,
		CreatedAt:        entity.CreatedAt,
		UpdatedAt:        entity.UpdatedAt,
	}
}

func mapRecord(record *domain.FileRecord) entities.FileRecord {
	return entities.FileRecord{
		ID:               record.ID,
		OriginalFilename: record.OriginalFilename,
		MediaType:        record.MediaType,
		Size:             record.Size,
		ContentHash:      record.ContentHash,
		IsDuplicate:      record.IsDuplicate,
		OwnerRef:         record.OwnerRef,
	}
}
