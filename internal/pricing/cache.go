package pricing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/log"
	"github.com/jia-app/hotelservice/internal/metrics"
)

const cacheKeyPrefix = "price:"

// CacheStore is the key-value store behind the price cache
type CacheStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// PriceCache stores quotes by request fingerprint. Store failures are logged
// and behave like a miss. A nil cache or store disables caching.
type PriceCache struct {
	store CacheStore
	ttl   time.Duration
}

// NewPriceCache creates a price cache
func NewPriceCache(store CacheStore, ttl time.Duration) *PriceCache {
	return &PriceCache{store: store, ttl: ttl}
}

func (c *PriceCache) enabled() bool {
	return c != nil && c.store != nil
}

// normalizeRequest is the canonical form of a request used for fingerprints
func normalizeRequest(req domain.PriceRequest) domain.PriceRequest {
	req.CheckIn = domain.Day(req.CheckIn)
	req.CheckOut = domain.Day(req.CheckOut)
	if req.RoomQuantity == 0 {
		req.RoomQuantity = 1
	}
	req.PromotionCodes = NormalizeCodes(req.PromotionCodes)
	req.CorporateCode = strings.ToUpper(strings.TrimSpace(req.CorporateCode))
	req.BookingSource = strings.ToUpper(strings.TrimSpace(req.BookingSource))
	if len(req.HeldPromotionIDs) > 0 {
		held := slices.Clone(req.HeldPromotionIDs)
		slices.Sort(held)
		req.HeldPromotionIDs = slices.Compact(held)
	}
	return req
}

// Fingerprint returns the cache key of a request
func Fingerprint(req domain.PriceRequest) (string, error) {
	req = normalizeRequest(req)
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode price request: %w", err)
	}
	sum := sha256.Sum256(raw)
	return propertyPrefix(req.PropertyID) + hex.EncodeToString(sum[:]), nil
}

func propertyPrefix(propertyID string) string {
	return cacheKeyPrefix + propertyID + ":"
}

// Get returns the cached quote for req. A quote whose ValidUntil is not after
// now counts as a miss.
func (c *PriceCache) Get(ctx context.Context, req domain.PriceRequest, now time.Time) (*domain.PriceCalculationResult, bool) {
	if !c.enabled() {
		return nil, false
	}
	key, err := Fingerprint(req)
	if err != nil {
		return nil, false
	}

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Warn(ctx, "Price cache lookup failed", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheLookup("error")
		return nil, false
	}
	if !ok {
		metrics.RecordCacheLookup("miss")
		return nil, false
	}

	var result domain.PriceCalculationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		log.Warn(ctx, "Discarding undecodable cached price", zap.String("key", key), zap.Error(err))
		metrics.RecordCacheLookup("error")
		return nil, false
	}
	if !result.ValidUntil.After(now) {
		metrics.RecordCacheLookup("expired")
		return nil, false
	}
	metrics.RecordCacheLookup("hit")
	return &result, true
}

// Set stores result under the fingerprint of req
func (c *PriceCache) Set(ctx context.Context, req domain.PriceRequest, result *domain.PriceCalculationResult) {
	if !c.enabled() {
		return
	}
	key, err := Fingerprint(req)
	if err != nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		log.Warn(ctx, "Failed to encode price for cache", zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key, string(raw), c.ttl); err != nil {
		log.Warn(ctx, "Price cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateProperty drops every cached quote of a property
func (c *PriceCache) InvalidateProperty(ctx context.Context, propertyID string) {
	if !c.enabled() {
		return
	}
	n, err := c.store.DeletePrefix(ctx, propertyPrefix(propertyID))
	if err != nil {
		log.Warn(ctx, "Price cache invalidation failed", zap.String("property_id", propertyID), zap.Error(err))
		return
	}
	log.Debug(ctx, "Price cache invalidated", zap.String("property_id", propertyID), zap.Int("keys", n))
}
