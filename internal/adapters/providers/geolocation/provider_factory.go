package geolocation

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zatekoja/trialmatch/internal/domain/providers"
	"github.com/zatekoja/trialmatch/internal/infrastructure/observability"
	"github.com/zatekoja/trialmatch/pkg/config"
)

// NewGeocoder builds the geocoder chain for cfg. It returns nil for the
// "gazetteer" provider, in which case only the matcher's built-in city table
// is used. Remote providers are wrapped in a circuit breaker, then cached when
// cache is non-nil, and backed by the places file when one is configured.
func NewGeocoder(cfg config.GeolocationConfig, cache providers.CacheProvider, metrics *observability.Metrics) (providers.Geocoder, error) {
	var static providers.Geocoder
	if cfg.PlacesFile != "" {
		g, err := LoadStaticGeocoder(cfg.PlacesFile)
		if err != nil {
			return nil, err
		}
		static = g
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	var remote providers.Geocoder
	switch cfg.Provider {
	case "gazetteer", "":
		return static, nil
	case "static":
		if static == nil {
			return nil, fmt.Errorf("static geocoder requires a places file")
		}
		return static, nil
	case "nominatim":
		remote = NewNominatimGeocoder(cfg.BaseURL, cfg.UserAgent, httpClient)
	case "google":
		remote = NewGoogleGeocoderWithOptions(cfg.APIKey, cfg.BaseURL, httpClient)
	default:
		return nil, fmt.Errorf("unknown geolocation provider %q", cfg.Provider)
	}

	remote = NewBreakerGeocoder(cfg.Provider, remote)
	if cache != nil {
		remote = NewCachingGeocoder(remote, cache, cfg.Provider, cfg.CacheTTL, metrics)
	}
	if static == nil {
		return remote, nil
	}
	return &FallbackGeocoder{primary: remote, fallback: static, metrics: metrics}, nil
}

// FallbackGeocoder wraps a primary geocoder with a secondary one that is
// consulted when the primary fails or does not know the place.
type FallbackGeocoder struct {
	primary  providers.Geocoder
	fallback providers.Geocoder
	metrics  *observability.Metrics
}

// NewFallbackGeocoder creates a fallback chain. Either side may be nil.
func NewFallbackGeocoder(primary, fallback providers.Geocoder, metrics *observability.Metrics) *FallbackGeocoder {
	return &FallbackGeocoder{primary: primary, fallback: fallback, metrics: metrics}
}

func (f *FallbackGeocoder) Geocode(ctx context.Context, address string) (*providers.Coordinates, error) {
	if f.primary == nil {
		if f.fallback != nil {
			return f.fallback.Geocode(ctx, address)
		}
		return nil, errors.New("geocoder not configured")
	}

	coords, err := f.primary.Geocode(ctx, address)
	if err == nil || f.fallback == nil {
		return coords, err
	}
	if !errors.Is(err, providers.ErrNoGeocodeResult) {
		observability.LoggerFromContext(ctx).Debug().Err(err).Msg("primary geocoder failed; trying fallback")
		observability.RecordFallback(ctx, f.metrics, "geocoder")
	}

	fallbackCoords, fallbackErr := f.fallback.Geocode(ctx, address)
	if fallbackErr != nil {
		return nil, err
	}
	return fallbackCoords, nil
}
