package providers

import (
	"context"
	"errors"
)

// ErrNoGeocodeResult is returned when a geocoder answers but knows no such place.
var ErrNoGeocodeResult = errors.New("no geocoding result")

// Geocoder resolves a free-text place name to a single best-guess point.
// Implementations must respect ctx deadlines; the geographic matcher works
// without one, on its embedded gazetteer.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Coordinates, error)
}

// Coordinates represents geographical coordinates
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
