package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server         ServerConfig
	App            AppConfig
	Trials         TrialsConfig
	Matching       MatchingConfig
	Redis          RedisConfig
	Geolocation    GeolocationConfig
	NER            NERConfig
	ClinicalTrials ClinicalTrialsConfig
	OTEL           OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Environment string
	LogLevel    string
}

// TrialsConfig points at the trial table snapshot
type TrialsConfig struct {
	DataPath       string
	RefreshOnStart bool
}

// MatchingConfig holds the request-level matching defaults
type MatchingConfig struct {
	MaxResults         int
	DefaultRadiusMiles float64
	MaxSuggestions     int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// GeolocationConfig holds geocoder configuration.
// Provider is one of "gazetteer", "static", "nominatim" or "google".
// PlacesFile, when set, backs the remote providers as an offline fallback.
type GeolocationConfig struct {
	Provider     string
	APIKey       string
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	CacheTTL     time.Duration
	CacheEntries int
	PlacesFile   string
}

// NERConfig holds the optional external entity recognizer settings
type NERConfig struct {
	URL     string
	Timeout time.Duration
}

// ClinicalTrialsConfig holds the remote trial registry settings
type ClinicalTrialsConfig struct {
	BaseURL      string
	PageSize     int
	PerCondition int
	Timeout      time.Duration
	RequestDelay time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Trials: TrialsConfig{
			DataPath:       getEnv("TRIALS_DATA_PATH", "datasets/cancer_studies.csv"),
			RefreshOnStart: getEnvAsBool("TRIALS_REFRESH_ON_START", false),
		},
		Matching: MatchingConfig{
			MaxResults:         getEnvAsInt("MATCH_MAX_RESULTS", 20),
			DefaultRadiusMiles: getEnvAsFloat("MATCH_DEFAULT_RADIUS_MILES", 100),
			MaxSuggestions:     getEnvAsInt("MATCH_MAX_SUGGESTIONS", 5),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Geolocation: GeolocationConfig{
			Provider:     getEnv("GEOLOCATION_PROVIDER", "gazetteer"),
			APIKey:       getEnv("GEOLOCATION_API_KEY", ""),
			BaseURL:      getEnv("GEOLOCATION_BASE_URL", ""),
			UserAgent:    getEnv("GEOLOCATION_USER_AGENT", "TrialMatch/2.0"),
			Timeout:      getEnvAsDuration("GEOLOCATION_TIMEOUT", 5*time.Second),
			CacheTTL:     getEnvAsDuration("GEOLOCATION_CACHE_TTL", 30*24*time.Hour),
			CacheEntries: getEnvAsInt("GEOLOCATION_CACHE_ENTRIES", 4096),
			PlacesFile:   getEnv("GEOLOCATION_PLACES_FILE", ""),
		},
		NER: NERConfig{
			URL:     getEnv("NER_SERVICE_URL", ""),
			Timeout: getEnvAsDuration("NER_TIMEOUT", 3*time.Second),
		},
		ClinicalTrials: ClinicalTrialsConfig{
			BaseURL:      getEnv("CLINICALTRIALS_BASE_URL", "https://clinicaltrials.gov/api/v2"),
			PageSize:     getEnvAsInt("CLINICALTRIALS_PAGE_SIZE", 100),
			PerCondition: getEnvAsInt("CLINICALTRIALS_PER_CONDITION", 100),
			Timeout:      getEnvAsDuration("CLINICALTRIALS_TIMEOUT", 30*time.Second),
			RequestDelay: getEnvAsDuration("CLINICALTRIALS_REQUEST_DELAY", 500*time.Millisecond),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "trialmatch"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the matcher cannot work with
func (c *Config) Validate() error {
	if c.Matching.MaxResults <= 0 {
		return fmt.Errorf("MATCH_MAX_RESULTS must be positive, got %d", c.Matching.MaxResults)
	}
	if c.Matching.DefaultRadiusMiles <= 0 {
		return fmt.Errorf("MATCH_DEFAULT_RADIUS_MILES must be positive, got %g", c.Matching.DefaultRadiusMiles)
	}
	switch c.Geolocation.Provider {
	case "gazetteer", "nominatim":
	case "static":
		if c.Geolocation.PlacesFile == "" {
			return fmt.Errorf("GEOLOCATION_PLACES_FILE is required for the static geocoder")
		}
	case "google":
		if c.Geolocation.APIKey == "" {
			return fmt.Errorf("GEOLOCATION_API_KEY is required for the google geocoder")
		}
	default:
		return fmt.Errorf("unknown GEOLOCATION_PROVIDER %q", c.Geolocation.Provider)
	}
	return nil
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
