package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/models"

	"github.com/redis/go-redis/v9"
)

const weightsKeyPrefix = "matching:weights:"

// CachedWeights is a read-through Redis cache in front of a WeightStore.
// Cache failures are logged and fall through to the backing store.
type CachedWeights struct {
	next   WeightStore
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedWeights(next WeightStore, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedWeights {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedWeights{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "weights_cache"}),
	}
}

func WeightsCacheKey(mandateID string) string {
	return weightsKeyPrefix + mandateID
}

func (c *CachedWeights) GetWeights(ctx context.Context, mandateID string) (*models.WeightsRecord, bool, error) {
	key := WeightsCacheKey(mandateID)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rec models.WeightsRecord
		if jsonErr := json.Unmarshal(data, &rec); jsonErr == nil {
			return &rec, true, nil
		}
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{"key": key})
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("weights cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	rec, found, err := c.next.GetWeights(ctx, mandateID)
	if err != nil || !found {
		return rec, found, err
	}

	if data, err := json.Marshal(rec); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("weights cache write failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	return rec, true, nil
}

func (c *CachedWeights) SetWeights(ctx context.Context, rec models.WeightsRecord, expectedVersion int64) (*models.WeightsRecord, error) {
	out, err := c.next.SetWeights(ctx, rec, expectedVersion)
	if err != nil {
		return nil, err
	}
	c.Invalidate(ctx, rec.MandateID)
	return out, nil
}

// Invalidate drops the cached vector for mandateID.
func (c *CachedWeights) Invalidate(ctx context.Context, mandateID string) {
	if err := c.redis.Del(ctx, WeightsCacheKey(mandateID)).Err(); err != nil {
		c.logger.Warn("weights cache invalidation failed", map[string]interface{}{
			"mandateId": mandateID,
			"error":     err.Error(),
		})
	}
}

// Direct returns a view that reads from the backing store and writes
// through c. Read-modify-write callers use it so a cache entry refilled
// with an older record cannot feed them a stale version.
func (c *CachedWeights) Direct() WeightStore {
	return directWeights{cache: c}
}

type directWeights struct {
	cache *CachedWeights
}

func (d directWeights) GetWeights(ctx context.Context, mandateID string) (*models.WeightsRecord, bool, error) {
	return d.cache.next.GetWeights(ctx, mandateID)
}

func (d directWeights) SetWeights(ctx context.Context, rec models.WeightsRecord, expectedVersion int64) (*models.WeightsRecord, error) {
	return d.cache.SetWeights(ctx, rec, expectedVersion)
}
