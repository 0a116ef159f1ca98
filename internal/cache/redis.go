// Package cache wraps go-redis v8 the way the teacher's scheduler-service
// does (services/scheduler-service/internal/cache/redis.go): a thin client
// over marshal/unmarshal-on-the-wire Set/Get, hit/miss metrics, and a set of
// cache-key builder functions — adapted here from scheduler/SM2/BKT state
// keys to the CAT domain's item and session keys.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catcore/internal/config"
	"catcore/internal/logger"
	"catcore/internal/metrics"

	"github.com/go-redis/redis/v8"
)

// RedisClient wraps the Redis client with marshal/unmarshal and metrics.
type RedisClient struct {
	client  *redis.Client
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// New creates a new Redis client and verifies connectivity.
func New(cfg *config.RedisConfig, m *metrics.Metrics, log *logger.Logger) (*RedisClient, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to parse Redis URL: %w", err)
	}

	opt.DB = cfg.DB
	opt.MaxRetries = cfg.MaxRetries
	opt.PoolSize = cfg.PoolSize

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: failed to connect to Redis: %w", err)
	}

	log.Info("redis connection established")

	return &RedisClient{client: client, metrics: m, logger: log}, nil
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Health checks Redis reachability.
func (r *RedisClient) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Set stores a JSON-marshaled value with a TTL.
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal value for key %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache: failed to set key %s: %w", key, err)
	}
	return nil
}

// Get retrieves and unmarshals a value. Returns ErrCacheMiss if absent.
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			r.recordMiss("redis")
			return ErrCacheMiss
		}
		return fmt.Errorf("cache: failed to get key %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("cache: failed to unmarshal value for key %s: %w", key, err)
	}
	r.recordHit("redis")
	return nil
}

// Delete removes one or more keys.
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: failed to delete keys: %w", err)
	}
	return nil
}

// Exists checks whether a key is present.
func (r *RedisClient) Exists(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache: failed to check existence of key %s: %w", key, err)
	}
	return count > 0, nil
}

func (r *RedisClient) recordHit(cacheType string) {
	if r.metrics != nil {
		r.metrics.CacheHits.WithLabelValues(cacheType).Inc()
	}
}

func (r *RedisClient) recordMiss(cacheType string) {
	if r.metrics != nil {
		r.metrics.CacheMisses.WithLabelValues(cacheType).Inc()
	}
}

// Cache key builders, adapted from the teacher's per-algorithm state keys
// to the CAT core's item-bank and session-progress keys.
func ItemEligibilityKey(userID string) string {
	return fmt.Sprintf("catcore:eligible:%s", userID)
}

func ItemByIDKey(itemID string) string {
	return fmt.Sprintf("catcore:item:%s", itemID)
}

func SessionProgressKey(sessionID string) string {
	return fmt.Sprintf("catcore:session:%s", sessionID)
}

// ErrCacheMiss is returned by Get when the key is absent.
var ErrCacheMiss = fmt.Errorf("cache: miss")
