package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"file-hub/internal/config"
)

// LocalStorage stores payloads on the local filesystem, addressed solely
// by content hash. Identical content always lands on the same path, so a
// concurrent duplicate upload overwrites a byte-identical file.
type LocalStorage struct {
	basePath string
	log      zerolog.Logger
}

// NewLocalStorage creates a new local filesystem blob store.
func NewLocalStorage(cfg *config.Config, log zerolog.Logger) (*LocalStorage, error) {
	logger := log.With().Str("component", "local-storage").Logger()

	basePath := cfg.LocalStoragePath
	if basePath == "" {
		return nil, errors.New("FILE_LOCAL_STORAGE_PATH must be set for local storage")
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory: %w", err)
	}

	logger.Info().Str("path", basePath).Msg("local storage initialized")

	return &LocalStorage{
		basePath: basePath,
		log:      logger,
	}, nil
}

// blobPath fans the hash out over a two-character prefix directory to keep
// directory sizes bounded.
func (l *LocalStorage) blobPath(hash string) string {
	prefix := hash
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(l.basePath, "blobs", prefix, hash)
}

// Put stores payload bytes under their content hash.
func (l *LocalStorage) Put(ctx context.Context, hash string, body io.Reader, size int64, mediaType string) error {
	fullPath := l.blobPath(hash)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, body)
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	l.log.Debug().
		Str("hash", hash).
		Int64("bytes", written).
		Msg("payload stored in local storage")

	return nil
}

// Get reads payload bytes by content hash.
func (l *LocalStorage) Get(ctx context.Context, hash string) (io.ReadCloser, string, error) {
	fullPath := l.blobPath(hash)

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("payload not found: %s", hash)
		}
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}

	contentType := ""
	if detected, err := mimetype.DetectFile(fullPath); err == nil {
		contentType = detected.String()
	}

	return file, contentType, nil
}

// Delete releases the payload for a destroyed hash group.
func (l *LocalStorage) Delete(ctx context.Context, hash string) error {
	fullPath := l.blobPath(hash)
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove file: %w", err)
	}
	l.log.Debug().Str("hash", hash).Msg("payload released from local storage")
	return nil
}

// Health checks if the storage directory is accessible.
func (l *LocalStorage) Health(ctx context.Context) error {
	testFile := filepath.Join(l.basePath, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0644); err != nil {
		return fmt.Errorf("storage directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	return nil
}
