package geolocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/trialmatch/internal/domain/providers"
	"github.com/zatekoja/trialmatch/internal/infrastructure/observability"
)

const defaultGeocodeCacheTTL = 30 * 24 * time.Hour

// CachingGeocoder memoizes a geocoder through a CacheProvider. Misses that
// the backend answers with ErrNoGeocodeResult are cached too, so unknown
// places are not re-queried on every screening.
type CachingGeocoder struct {
	next    providers.Geocoder
	cache   providers.CacheProvider
	ttl     time.Duration
	name    string
	metrics *observability.Metrics
}

type cachedCoordinates struct {
	Found     bool    `json:"found"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewCachingGeocoder wraps next. name labels cache metrics and scopes keys.
func NewCachingGeocoder(next providers.Geocoder, cache providers.CacheProvider, name string, ttl time.Duration, metrics *observability.Metrics) *CachingGeocoder {
	if ttl <= 0 {
		ttl = defaultGeocodeCacheTTL
	}
	return &CachingGeocoder{next: next, cache: cache, ttl: ttl, name: name, metrics: metrics}
}

// Geocode serves from cache when possible and stores fresh answers.
func (c *CachingGeocoder) Geocode(ctx context.Context, address string) (*providers.Coordinates, error) {
	key := "geo:v1:" + c.name + ":" + hashKey(normalizePlace(address))

	if cached, err := c.cache.Get(ctx, key); err == nil {
		var entry cachedCoordinates
		if err := json.Unmarshal(cached, &entry); err == nil {
			observability.RecordCacheHit(ctx, c.metrics, c.name)
			if !entry.Found {
				return nil, providers.ErrNoGeocodeResult
			}
			return &providers.Coordinates{Latitude: entry.Latitude, Longitude: entry.Longitude}, nil
		}
	} else if !errors.Is(err, providers.ErrCacheMiss) {
		log.Warn().Err(err).Str("provider", c.name).Msg("geocode cache read failed")
	}
	observability.RecordCacheMiss(ctx, c.metrics, c.name)

	coords, err := c.next.Geocode(ctx, address)
	switch {
	case err == nil:
		c.store(ctx, key, cachedCoordinates{Found: true, Latitude: coords.Latitude, Longitude: coords.Longitude})
	case errors.Is(err, providers.ErrNoGeocodeResult):
		c.store(ctx, key, cachedCoordinates{})
	}
	return coords, err
}

func (c *CachingGeocoder) store(ctx context.Context, key string, entry cachedCoordinates) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, payload, c.ttl); err != nil {
		log.Warn().Err(err).Str("provider", c.name).Msg("geocode cache write failed")
	}
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(value)))
	return hex.EncodeToString(sum[:])
}
