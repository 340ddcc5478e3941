package database

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"file-hub/internal/infrastructure/database/entities"
)

// AutoMigrate applies database schema changes.
//
// Beyond the generated schema it installs a partial unique index so that at
// most one non-duplicate row can exist per content hash. Two concurrent
// uploads of the same new content then race on the insert instead of on a
// check-then-act lookup; the loser gets a uniqueness violation and retries
// as a duplicate.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(&entities.FileRecord{}); err != nil {
		return err
	}
	if err := db.WithContext(ctx).Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uidx_file_records_owner_hash
		 ON file_records (content_hash) WHERE NOT is_duplicate`,
	).Error; err != nil {
		return err
	}
	// "not a duplicate" and "no owner reference" must stay equivalent, so
	// owner lookups can rely on either condition alone. One statement per
	// Exec: the connection runs with prepared statements, and the extended
	// protocol rejects multi-command strings.
	if err := db.WithContext(ctx).Exec(
		`ALTER TABLE file_records DROP CONSTRAINT IF EXISTS chk_file_records_owner_ref`,
	).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Exec(
		`ALTER TABLE file_records ADD CONSTRAINT chk_file_records_owner_ref
		 CHECK (is_duplicate = (owner_ref IS NOT NULL))`,
	).Error; err != nil {
		return err
	}
	log.Info().Msg("applied file record migrations")
	return nil
}
