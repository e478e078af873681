package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Matching.MaxResults)
	assert.Equal(t, 100.0, cfg.Matching.DefaultRadiusMiles)
	assert.Equal(t, "gazetteer", cfg.Geolocation.Provider)
	assert.Equal(t, 5*time.Second, cfg.Geolocation.Timeout)
	assert.Equal(t, "https://clinicaltrials.gov/api/v2", cfg.ClinicalTrials.BaseURL)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoad_GeolocationConfig(t *testing.T) {
	t.Setenv("GEOLOCATION_PROVIDER", "nominatim")
	t.Setenv("GEOLOCATION_TIMEOUT", "2s")
	t.Setenv("GEOLOCATION_BASE_URL", "http://nominatim.test/search")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "nominatim", cfg.Geolocation.Provider)
	assert.Equal(t, 2*time.Second, cfg.Geolocation.Timeout)
	assert.Equal(t, "http://nominatim.test/search", cfg.Geolocation.BaseURL)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("MATCH_MAX_RESULTS", "lots")
	t.Setenv("NER_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Matching.MaxResults)
	assert.Equal(t, 3*time.Second, cfg.NER.Timeout)
}

func TestLoad_RejectsUnknownGeocoder(t *testing.T) {
	t.Setenv("GEOLOCATION_PROVIDER", "carrier-pigeon")

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_RejectsNonPositiveRadius(t *testing.T) {
	t.Setenv("MATCH_DEFAULT_RADIUS_MILES", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RemoteGeocodersNeedTheirSettings(t *testing.T) {
	t.Setenv("GEOLOCATION_PROVIDER", "google")
	_, err := Load()
	assert.ErrorContains(t, err, "GEOLOCATION_API_KEY")

	t.Setenv("GEOLOCATION_PROVIDER", "static")
	_, err = Load()
	assert.ErrorContains(t, err, "GEOLOCATION_PLACES_FILE")

	t.Setenv("GEOLOCATION_PLACES_FILE", "testdata/places.csv")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "testdata/places.csv", cfg.Geolocation.PlacesFile)
}

func TestLoad_AllowedOrigins(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)

	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}
