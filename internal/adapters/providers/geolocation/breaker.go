package geolocation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/zatekoja/trialmatch/internal/domain/providers"
)

const (
	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 30 * time.Second
)

// BreakerGeocoder stops calling a failing remote geocoder for a while after
// repeated errors. "No such place" answers do not count as failures.
type BreakerGeocoder struct {
	next    providers.Geocoder
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerGeocoder wraps next in a circuit breaker named name.
func NewBreakerGeocoder(name string, next providers.Geocoder) *BreakerGeocoder {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("geocoder circuit state changed")
		},
	}
	return &BreakerGeocoder{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Geocode forwards to the wrapped geocoder unless the circuit is open.
func (b *BreakerGeocoder) Geocode(ctx context.Context, address string) (*providers.Coordinates, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		coords, err := b.next.Geocode(ctx, address)
		if errors.Is(err, providers.ErrNoGeocodeResult) {
			return nil, nil
		}
		return coords, err
	})
	if err != nil {
		return nil, err
	}
	coords, ok := result.(*providers.Coordinates)
	if !ok || coords == nil {
		return nil, providers.ErrNoGeocodeResult
	}
	return coords, nil
}
