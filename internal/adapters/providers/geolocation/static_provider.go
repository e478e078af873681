package geolocation

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/zatekoja/trialmatch/internal/domain/providers"
)

// StaticGeocoder answers from a fixed table keyed by lowercased place name.
// It is used for offline runs and as the last resort behind a remote geocoder.
type StaticGeocoder struct {
	places map[string]providers.Coordinates
}

// NewStaticGeocoder creates a table geocoder. Keys are matched case-insensitively.
func NewStaticGeocoder(places map[string]providers.Coordinates) *StaticGeocoder {
	normalized := make(map[string]providers.Coordinates, len(places))
	for name, coords := range places {
		normalized[normalizePlace(name)] = coords
	}
	return &StaticGeocoder{places: normalized}
}

// Geocode looks address up in the table, then retries with only its first
// comma-separated part ("Austin, TX" falls back to "austin").
func (s *StaticGeocoder) Geocode(ctx context.Context, address string) (*providers.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := normalizePlace(address)
	if coords, ok := s.places[key]; ok {
		return &coords, nil
	}
	if head, _, found := strings.Cut(key, ","); found {
		if coords, ok := s.places[strings.TrimSpace(head)]; ok {
			return &coords, nil
		}
	}
	return nil, providers.ErrNoGeocodeResult
}

func normalizePlace(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// LoadStaticGeocoder reads a places file with one "name,latitude,longitude"
// record per line. Lines starting with '#' are ignored.
func LoadStaticGeocoder(path string) (*StaticGeocoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open places file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comment = '#'
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read places file %s: %w", path, err)
	}

	places := make(map[string]providers.Coordinates, len(records))
	for i, rec := range records {
		lat, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("places file %s line %d: invalid latitude %q", path, i+1, rec[1])
		}
		lon, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("places file %s line %d: invalid longitude %q", path, i+1, rec[2])
		}
		places[rec[0]] = providers.Coordinates{Latitude: lat, Longitude: lon}
	}
	return NewStaticGeocoder(places), nil
}
