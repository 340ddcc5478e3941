package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	domain "file-hub/internal/domain/file"
)

// RedisCache implements the domain cache capability on a shared Redis
// tier. When no Redis URL is configured the client runs disabled: every
// read is a miss and writes are no-ops, so the service keeps working
// without a cache tier.
type RedisCache struct {
	client   redis.UniversalClient
	log      zerolog.Logger
	disabled bool
}

func NewRedisCache(redisURL string, log zerolog.Logger) (*RedisCache, error) {
	logger := log.With().Str("component", "redis-cache").Logger()

	if strings.TrimSpace(redisURL) == "" {
		logger.Warn().Msg("REDIS_URL is not set; result caching is disabled")
		return &RedisCache{log: logger, disabled: true}, nil
	}

	opts, err := buildUniversalOptions(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if len(opts.Addrs) > 1 && opts.DB != 0 {
		logger.Warn().Msg("ignoring non-zero DB when using Redis Cluster configuration")
		opts.DB = 0
	}

	client := redis.NewUniversalClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info().Msg("successfully connected to Redis cache")
	return &RedisCache{client: client, log: logger}, nil
}

func buildUniversalOptions(raw string) (*redis.UniversalOptions, error) {
	parts := strings.Split(raw, ",")
	opts := &redis.UniversalOptions{}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "://") {
			parsed, err := redis.ParseURL(part)
			if err != nil {
				return nil, err
			}

			opts.Addrs = append(opts.Addrs, parsed.Addr)

			if opts.Username == "" {
				opts.Username = parsed.Username
			}
			if opts.Password == "" {
				opts.Password = parsed.Password
			}
			if opts.DB == 0 {
				opts.DB = parsed.DB
			}
			if opts.TLSConfig == nil {
				opts.TLSConfig = parsed.TLSConfig
			}
			if opts.ReadTimeout == 0 {
				opts.ReadTimeout = parsed.ReadTimeout
			}
			if opts.WriteTimeout == 0 {
				opts.WriteTimeout = parsed.WriteTimeout
			}
			if opts.DialTimeout == 0 {
				opts.DialTimeout = parsed.DialTimeout
			}
			if opts.PoolSize == 0 {
				opts.PoolSize = parsed.PoolSize
			}
			if opts.MinIdleConns == 0 {
				opts.MinIdleConns = parsed.MinIdleConns
			}
		} else {
			opts.Addrs = append(opts.Addrs, part)
		}
	}

	if len(opts.Addrs) == 0 {
		return nil, fmt.Errorf("no Redis addresses provided")
	}

	return opts, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	if r.disabled {
		return "", domain.ErrCacheMiss
	}
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrCacheMiss
		}
		return "", fmt.Errorf("failed to get value from cache: %w", err)
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if r.disabled {
		return nil
	}
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if r.disabled {
		return nil
	}
	return r.client.Del(ctx, key).Err()
}

// DeletePattern removes every key matching the pattern, scanning in
// batches and unlinking through a pipeline so large namespaces do not
// block the server.
func (r *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	if r.disabled {
		return nil
	}
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys: %w", err)
		}
		if len(keys) > 0 {
			pipe := r.client.Pipeline()
			for _, k := range keys {
				pipe.Unlink(ctx, k)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("failed to unlink keys: %w", err)
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return nil
}

func (r *RedisCache) Close() error {
	if r.disabled {
		return nil
	}
	return r.client.Close()
}

func (r *RedisCache) HealthCheck(ctx context.Context) error {
	if r.disabled {
		return nil
	}
	return r.client.Ping(ctx).Err()
}
