// Package placecache keeps place details fetched from the maps provider in the key-value store.
package placecache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pairfecto/backend/internal/db"
	"github.com/pairfecto/backend/internal/domain"
)

const keyPrefix = "pairfecto:place:"

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache stores place details as JSON with a fixed TTL.
// Failures degrade to misses; the maps provider stays the source of truth.
type Cache struct {
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a place details cache. cacheTotal has labels "cache" and "result".
func New(s store, ttl time.Duration, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{store: s, ttl: ttl, cacheTotal: cacheTotal, logger: logger}
}

// Get returns cached details for placeID.
func (c *Cache) Get(ctx context.Context, placeID string) (domain.PlaceDetails, bool) {
	data, err := c.store.Get(ctx, keyPrefix+placeID)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to read place cache", zap.String("place_id", placeID), zap.Error(err))
		}
		c.inc("miss")
		return domain.PlaceDetails{}, false
	}

	var info domain.PlaceDetails
	if err := json.Unmarshal(data, &info); err != nil {
		c.logger.Warn("Failed to decode cached place", zap.String("place_id", placeID), zap.Error(err))
		c.inc("miss")
		return domain.PlaceDetails{}, false
	}

	c.inc("hit")
	info.PlaceID = placeID
	return info, true
}

// Put stores details under the place id. The id itself lives only in the key.
func (c *Cache) Put(ctx context.Context, info domain.PlaceDetails) {
	if info.PlaceID == "" || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := c.store.SetWithTTL(ctx, keyPrefix+info.PlaceID, data, c.ttl); err != nil {
		c.logger.Warn("Failed to write place cache", zap.String("place_id", info.PlaceID), zap.Error(err))
	}
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues("place_details", result).Inc()
	}
}
