package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/trialmatch/internal/adapters/cache"
	"github.com/zatekoja/trialmatch/internal/adapters/events"
	"github.com/zatekoja/trialmatch/internal/adapters/providers/geolocation"
	"github.com/zatekoja/trialmatch/internal/adapters/providers/ner"
	"github.com/zatekoja/trialmatch/internal/adapters/trialtable"
	"github.com/zatekoja/trialmatch/internal/api/handlers"
	"github.com/zatekoja/trialmatch/internal/api/routes"
	"github.com/zatekoja/trialmatch/internal/application/services"
	"github.com/zatekoja/trialmatch/internal/domain/entities"
	"github.com/zatekoja/trialmatch/internal/domain/providers"
	"github.com/zatekoja/trialmatch/internal/infrastructure/clients/clinicaltrials"
	"github.com/zatekoja/trialmatch/internal/infrastructure/clients/redis"
	"github.com/zatekoja/trialmatch/internal/infrastructure/observability"
	"github.com/zatekoja/trialmatch/pkg/config"
)

// refreshTimeout bounds a full registry download at startup.
const refreshTimeout = 15 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.App.Environment, cfg.App.LogLevel)
	log.Info().
		Str("environment", cfg.App.Environment).
		Str("geocoder", cfg.Geolocation.Provider).
		Msg("Starting trial matching API")

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize metrics")
	}

	// Geocode cache and catalog events: Redis when enabled and reachable,
	// in-process LRU and no cross-instance events otherwise
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Redis client; using in-memory cache")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient, "")
			eventBus = events.NewRedisEventBus(redisClient)
			log.Info().Msg("Redis client initialized successfully")
		}
	}
	if cacheProvider == nil {
		cacheProvider = cache.NewMemoryAdapter(cfg.Geolocation.CacheEntries, cfg.Geolocation.CacheTTL)
	}

	geocoder, err := geolocation.NewGeocoder(cfg.Geolocation, cacheProvider, metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize geocoder")
	}

	var recognizer providers.EntityRecognizer
	if cfg.NER.URL != "" {
		recognizer = ner.NewHTTPRecognizer(cfg.NER.URL, cfg.NER.Timeout, nil)
		log.Info().Str("url", cfg.NER.URL).Msg("External entity recognizer enabled")
	}

	registry := clinicaltrials.NewClient(cfg.ClinicalTrials)

	// Initialize services
	catalog := services.NewTrialCatalogService(registry, cfg.ClinicalTrials.PerCondition, metrics).
		WithPersistence(func(trials []entities.Trial) error {
			return trialtable.WriteFile(cfg.Trials.DataPath, trials)
		})
	loadCatalog(ctx, catalog, cfg.Trials.DataPath, metrics)

	if eventBus != nil {
		defer eventBus.Close()
		catalog.WithEvents(eventBus, instanceID())
		go func() {
			err := catalog.FollowRefreshes(ctx, func() ([]entities.Trial, string, error) {
				trials, _, err := trialtable.Load(cfg.Trials.DataPath)
				return trials, cfg.Trials.DataPath, err
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Stopped following catalog refreshes")
			}
		}()
	}

	extractor := services.NewEntityExtractionService(recognizer, cfg.NER.Timeout, metrics)
	geo := services.NewGeographicMatcher(geocoder, cfg.Geolocation.Timeout, metrics)
	parser := services.NewEligibilityParser()
	evaluator := services.NewEligibilityEvaluator(services.DefaultEvaluatorConfig())
	screening := services.NewScreeningService(
		extractor,
		services.NewTrialMatcher(services.DefaultMatcherConfig()),
		geo,
		parser,
		evaluator,
		catalog,
		services.ScreeningConfig{
			MaxResults:         cfg.Matching.MaxResults,
			DefaultRadiusMiles: cfg.Matching.DefaultRadiusMiles,
			MaxSuggestions:     cfg.Matching.MaxSuggestions,
		},
		metrics,
	)

	if cfg.Trials.RefreshOnStart {
		go func() {
			refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
			defer cancel()
			report, err := catalog.Refresh(refreshCtx)
			if err != nil {
				log.Error().Err(err).Msg("Startup catalog refresh failed")
				return
			}
			log.Info().
				Int("fetched", report.Fetched).
				Int("unique", report.Unique).
				Strs("failed_conditions", report.Failed).
				Msg("Startup catalog refresh complete")
		}()
	}

	// Set up router
	router := routes.NewRouter(
		handlers.NewScreeningHandler(screening, extractor),
		handlers.NewEligibilityHandler(parser, evaluator, extractor, catalog),
		handlers.NewTrialHandler(catalog),
		handlers.NewGeocodeHandler(geo),
		handlers.NewHealthHandler(catalog),
		cfg.Server.AllowedOrigins,
		metrics,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("address", server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("Server stopped")
}

// instanceID names this process in catalog events.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "api"
	}
	return host + "-" + uuid.NewString()[:8]
}

// loadCatalog seeds the catalog from the trial table on disk. A missing file
// is not fatal: the server starts with an empty catalog and reports degraded.
func loadCatalog(ctx context.Context, catalog *services.TrialCatalogService, path string, metrics *observability.Metrics) {
	trials, report, err := trialtable.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("Trial table not found; starting with an empty catalog")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to load trial table; starting with an empty catalog")
		return
	}

	observability.RecordIngestion(ctx, metrics, report.Source, report.Accepted, report.Rejected)
	catalog.Replace(trials, path)
	log.Info().
		Str("path", path).
		Int("accepted", report.Accepted).
		Int("rejected", report.Rejected).
		Strs("missing_columns", report.MissingColumns).
		Msg("Trial catalog loaded")
}
