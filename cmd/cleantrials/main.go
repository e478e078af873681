package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/trialmatch/internal/adapters/trialtable"
	"github.com/zatekoja/trialmatch/internal/infrastructure/observability"
)

func main() {
	var in, out string
	flag.StringVar(&in, "in", "", "raw trial table exported from the registry")
	flag.StringVar(&out, "out", "", "cleaned trial table to write")
	flag.Parse()

	observability.InitLogger("trialmatch-cleantrials", os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))

	if in == "" || out == "" {
		flag.Usage()
		os.Exit(2)
	}

	report, err := trialtable.CleanFile(in, out)
	if err != nil {
		log.Fatal().Err(err).Str("in", in).Msg("Failed to clean trial table")
	}

	log.Info().
		Str("in", in).
		Str("out", out).
		Int("accepted", report.Accepted).
		Int("rejected", report.Rejected).
		Msg("Trial table cleaned")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatal().Err(err).Msg("Failed to print report")
	}
}
