package file

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"file-hub/internal/infrastructure/metrics"
)

// ErrCacheMiss is returned by CacheClient.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

const (
	listKeyPrefix = "file-hub:file-list:"
	statsKey      = "file-hub:storage-stats"
)

// CacheClient is the shared key-value cache capability injected into the
// service. Implementations must return ErrCacheMiss for absent keys.
type CacheClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) error
}

// ListCache fronts the listing query with a shared cache. Every operation
// is best-effort: a failing backend degrades to cache misses and no-ops,
// never to a caller-visible error.
type ListCache struct {
	client CacheClient
	ttl    time.Duration
	log    zerolog.Logger
}

func NewListCache(client CacheClient, ttl time.Duration, log zerolog.Logger) *ListCache {
	return &ListCache{
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "list-cache").Logger(),
	}
}

// Key derives a deterministic cache key from the logical query. Only set
// filter fields participate, and map marshalling sorts keys, so two
// semantically identical queries always produce the same key regardless of
// construction order.
func (c *ListCache) Key(filter ListFilter, page, pageSize int, ordering string) string {
	params := map[string]any{
		"page":      page,
		"page_size": pageSize,
		"ordering":  ordering,
	}
	if filter.Filename != "" {
		params["filename"] = filter.Filename
	}
	if filter.MediaType != "" {
		params["media_type"] = filter.MediaType
	}
	if filter.IsDuplicate != nil {
		params["is_duplicate"] = *filter.IsDuplicate
	}
	if filter.MinSize != nil {
		params["min_size"] = *filter.MinSize
	}
	if filter.MaxSize != nil {
		params["max_size"] = *filter.MaxSize
	}
	if filter.UploadedAfter != nil {
		params["uploaded_after"] = filter.UploadedAfter.UTC().Format(time.RFC3339Nano)
	}
	if filter.UploadedBefore != nil {
		params["uploaded_before"] = filter.UploadedBefore.UTC().Format(time.RFC3339Nano)
	}

	canonical, _ := json.Marshal(params)
	return fmt.Sprintf("%s%x", listKeyPrefix, md5.Sum(canonical))
}

// GetPage returns the cached page for the key, if any.
func (c *ListCache) GetPage(ctx context.Context, key string) (*RecordPage, bool) {
	raw, err := c.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			metrics.RecordCacheOp("get", "error")
			c.log.Error().Err(err).Str("key", key).Msg("list cache get failed")
		} else {
			metrics.RecordCacheOp("get", "miss")
		}
		return nil, false
	}

	var page RecordPage
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		metrics.RecordCacheOp("get", "error")
		c.log.Error().Err(err).Str("key", key).Msg("list cache payload corrupt")
		return nil, false
	}
	metrics.RecordCacheOp("get", "hit")
	return &page, true
}

// SetPage stores the page, then reads the key back and reports a
// verification mismatch as an operational signal. Neither a failing write
// nor a failing verification blocks the caller.
func (c *ListCache) SetPage(ctx context.Context, key string, page *RecordPage) {
	raw, err := json.Marshal(page)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("list cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, key, string(raw), c.ttl); err != nil {
		metrics.RecordCacheOp("set", "error")
		c.log.Error().Err(err).Str("key", key).Msg("list cache set failed")
		return
	}
	metrics.RecordCacheOp("set", "ok")

	verification, err := c.client.Get(ctx, key)
	if err != nil || verification != string(raw) {
		metrics.RecordCacheVerificationFailure()
		c.log.Error().Err(err).Str("key", key).Msg("list cache storage verification failed")
		return
	}
	c.log.Debug().Str("key", key).Msg("list cache storage verified")
}

// Invalidate drops every cached listing. Called after each create and each
// delete so no stale listing is ever served past a mutation.
func (c *ListCache) Invalidate(ctx context.Context) {
	if err := c.client.DeletePattern(ctx, listKeyPrefix+"*"); err != nil {
		metrics.RecordCacheOp("invalidate", "error")
		c.log.Error().Err(err).Msg("list cache invalidation failed")
		return
	}
	metrics.RecordCacheOp("invalidate", "ok")
}

// StatsCache holds the aggregate statistics under one fixed key with its
// own TTL. Record mutations deliberately do not invalidate it; bounded
// staleness is accepted in exchange for not recomputing the aggregates on
// every write.
type StatsCache struct {
	client CacheClient
	ttl    time.Duration
	log    zerolog.Logger
}

func NewStatsCache(client CacheClient, ttl time.Duration, log zerolog.Logger) *StatsCache {
	return &StatsCache{
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "stats-cache").Logger(),
	}
}

func (c *StatsCache) Get(ctx context.Context) (*StorageStats, bool) {
	raw, err := c.client.Get(ctx, statsKey)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			metrics.RecordCacheOp("get", "error")
			c.log.Error().Err(err).Msg("stats cache get failed")
		} else {
			metrics.RecordCacheOp("get", "miss")
		}
		return nil, false
	}
	var stats StorageStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		metrics.RecordCacheOp("get", "error")
		c.log.Error().Err(err).Msg("stats cache payload corrupt")
		return nil, false
	}
	metrics.RecordCacheOp("get", "hit")
	return &stats, true
}

func (c *StatsCache) Set(ctx context.Context, stats *StorageStats) {
	raw, err := json.Marshal(stats)
	if err != nil {
		c.log.Error().Err(err).Msg("stats cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, statsKey, string(raw), c.ttl); err != nil {
		metrics.RecordCacheOp("set", "error")
		c.log.Error().Err(err).Msg("stats cache set failed")
		return
	}
	metrics.RecordCacheOp("set", "ok")
}
