package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/config"
)

// RedisCache wraps a Redis client with cache operations
type RedisCache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisCache creates a new Redis cache client
func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	if !cfg.Enabled {
		log.Info().Msg("Redis cache is disabled")
		return &RedisCache{enabled: false}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis, cache disabled")
		return &RedisCache{enabled: false}
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	log.Info().Str("addr", client.Options().Addr).Msg("Connected to Redis cache")
	return &RedisCache{client: client, enabled: true, ttl: ttl}
}

// Enabled reports whether the cache backend is reachable
func (c *RedisCache) Enabled() bool {
	return c.enabled
}

// Get retrieves a value from cache, returns false if not found
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.enabled {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores a value in cache with the configured TTL
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// SetWithTTL stores a value in cache with an explicit TTL
func (c *RedisCache) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete removes a key from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if !c.enabled {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}

// Client exposes the underlying client for pub/sub use
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// RequirementCacheKey returns the cache key for a requirement
func RequirementCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("requirement:%s", id)
}

// AvailabilityCacheKey returns the cache key for an availability
func AvailabilityCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("availability:%s", id)
}

// PartnerCreditCacheKey returns the cache key for a partner's remaining credit
func PartnerCreditCacheKey(partnerID uuid.UUID) string {
	return fmt.Sprintf("partner:%s:credit", partnerID)
}

// PartnerRatingCacheKey returns the cache key for a partner's rating
func PartnerRatingCacheKey(partnerID uuid.UUID) string {
	return fmt.Sprintf("partner:%s:rating", partnerID)
}

// PartnerPerformanceCacheKey returns the cache key for a partner's performance score
func PartnerPerformanceCacheKey(partnerID uuid.UUID, kind string) string {
	return fmt.Sprintf("partner:%s:performance:%s", partnerID, kind)
}
