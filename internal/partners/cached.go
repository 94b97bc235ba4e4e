package partners

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/cache"
)

// Cached decorates a Directory with a Redis TTL cache so repeated prechecks
// against the same partner do not hammer the master-data service.
type Cached struct {
	next  Directory
	cache *cache.RedisCache
}

// NewCached wraps next with the given cache
func NewCached(next Directory, c *cache.RedisCache) *Cached {
	return &Cached{next: next, cache: c}
}

func (d *Cached) FetchCreditLimitRemaining(ctx context.Context, partnerID uuid.UUID) (decimal.Decimal, error) {
	key := cache.PartnerCreditCacheKey(partnerID)
	var raw string
	if found, err := d.cache.Get(ctx, key, &raw); err == nil && found {
		if v, perr := decimal.NewFromString(raw); perr == nil {
			return v, nil
		}
	}

	v, err := d.next.FetchCreditLimitRemaining(ctx, partnerID)
	if err != nil {
		return decimal.Zero, err
	}
	d.prime(ctx, key, v.String())
	return v, nil
}

func (d *Cached) FetchRating(ctx context.Context, partnerID uuid.UUID) (decimal.Decimal, error) {
	key := cache.PartnerRatingCacheKey(partnerID)
	var raw string
	if found, err := d.cache.Get(ctx, key, &raw); err == nil && found {
		if v, perr := decimal.NewFromString(raw); perr == nil {
			return v, nil
		}
	}

	v, err := d.next.FetchRating(ctx, partnerID)
	if err != nil {
		return decimal.Zero, err
	}
	d.prime(ctx, key, v.String())
	return v, nil
}

func (d *Cached) FetchPerformanceScore(ctx context.Context, partnerID uuid.UUID, kind PerformanceKind) (int, error) {
	key := cache.PartnerPerformanceCacheKey(partnerID, string(kind))
	var score int
	if found, err := d.cache.Get(ctx, key, &score); err == nil && found {
		return score, nil
	}

	v, err := d.next.FetchPerformanceScore(ctx, partnerID, kind)
	if err != nil {
		return 0, err
	}
	d.prime(ctx, key, v)
	return v, nil
}

func (d *Cached) prime(ctx context.Context, key string, value interface{}) {
	if err := d.cache.Set(ctx, key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache partner metric")
	}
}
