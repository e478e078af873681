package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/trialmatch/internal/adapters/cache"
	"github.com/zatekoja/trialmatch/internal/adapters/providers/geolocation"
	"github.com/zatekoja/trialmatch/internal/adapters/trialtable"
	"github.com/zatekoja/trialmatch/internal/application/services"
	"github.com/zatekoja/trialmatch/internal/evaluation"
	"github.com/zatekoja/trialmatch/internal/infrastructure/observability"
	"github.com/zatekoja/trialmatch/pkg/config"
)

func main() {
	var goldenPath, trialsPath string
	var enforce bool
	flag.StringVar(&goldenPath, "golden", "datasets/golden_cases.json", "golden case file")
	flag.StringVar(&trialsPath, "trials", "", "trial table to screen against (defaults to TRIALS_DATA_PATH)")
	flag.BoolVar(&enforce, "enforce", true, "exit non-zero when a quality gate fails")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-evaluate", cfg.App.Environment, cfg.App.LogLevel)

	if trialsPath == "" {
		trialsPath = cfg.Trials.DataPath
	}

	cases, err := evaluation.LoadGoldenCases(goldenPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load golden cases")
	}
	if err := evaluation.ValidateGoldenCases(cases); err != nil {
		log.Fatal().Err(err).Msg("Invalid golden cases")
	}

	trials, report, err := trialtable.Load(trialsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", trialsPath).Msg("Failed to load trial table")
	}
	log.Info().Int("accepted", report.Accepted).Int("rejected", report.Rejected).Msg("Trial table loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	geocoder, err := geolocation.NewGeocoder(cfg.Geolocation,
		cache.NewMemoryAdapter(cfg.Geolocation.CacheEntries, cfg.Geolocation.CacheTTL), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize geocoder")
	}

	catalog := services.NewTrialCatalogService(nil, 0, nil)
	catalog.Replace(trials, trialsPath)
	screening := services.NewScreeningService(
		services.NewEntityExtractionService(nil, 0, nil),
		services.NewTrialMatcher(services.DefaultMatcherConfig()),
		services.NewGeographicMatcher(geocoder, cfg.Geolocation.Timeout, nil),
		services.NewEligibilityParser(),
		services.NewEligibilityEvaluator(services.DefaultEvaluatorConfig()),
		catalog,
		services.ScreeningConfig{DefaultRadiusMiles: cfg.Matching.DefaultRadiusMiles},
		nil,
	)

	summary, err := evaluation.NewRunner(screening).Run(ctx, cases)
	if err != nil {
		log.Fatal().Err(err).Msg("Evaluation interrupted")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Fatal().Err(err).Msg("Failed to print summary")
	}

	violations := evaluation.DefaultQualityGates().Check(summary)
	for _, v := range violations {
		log.Warn().Str("gate", v).Msg("Quality gate failed")
	}
	if enforce && len(violations) > 0 {
		os.Exit(1)
	}
	log.Info().
		Float64("recall_at_10", summary.AvgRecallAt10).
		Float64("mrr_at_10", summary.AvgMRRAt10).
		Msg("Evaluation complete")
}
