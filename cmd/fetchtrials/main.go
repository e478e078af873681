package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/trialmatch/internal/adapters/trialtable"
	"github.com/zatekoja/trialmatch/internal/application/services"
	"github.com/zatekoja/trialmatch/internal/domain/entities"
	"github.com/zatekoja/trialmatch/internal/infrastructure/clients/clinicaltrials"
	"github.com/zatekoja/trialmatch/internal/infrastructure/observability"
	"github.com/zatekoja/trialmatch/pkg/config"
)

func main() {
	var out, conditionsFlag string
	var perCondition int
	flag.StringVar(&out, "out", "", "trial table to write (defaults to TRIALS_DATA_PATH)")
	flag.StringVar(&conditionsFlag, "conditions", "", "comma-separated conditions to fetch (defaults to the cancer condition list)")
	flag.IntVar(&perCondition, "per-condition", 0, "maximum trials per condition (defaults to CLINICALTRIALS_PER_CONDITION)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-fetchtrials", cfg.App.Environment, cfg.App.LogLevel)

	if out == "" {
		out = cfg.Trials.DataPath
	}
	if perCondition <= 0 {
		perCondition = cfg.ClinicalTrials.PerCondition
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog := services.NewTrialCatalogService(clinicaltrials.NewClient(cfg.ClinicalTrials), perCondition, nil).
		WithPersistence(func(trials []entities.Trial) error {
			return trialtable.WriteFile(out, trials)
		})
	if conditions := splitList(conditionsFlag); len(conditions) > 0 {
		catalog = catalog.WithConditions(conditions)
	}

	report, err := catalog.Refresh(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Trial download failed")
	}

	log.Info().
		Str("out", out).
		Int("fetched", report.Fetched).
		Int("unique", report.Unique).
		Strs("failed_conditions", report.Failed).
		Msg("Trial table written")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(catalog.Statistics()); err != nil {
		log.Fatal().Err(err).Msg("Failed to print statistics")
	}
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
