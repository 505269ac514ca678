// Command update refreshes the live store with the latest FRED observations.
// The fetched window is spliced onto what the store already holds, rates are
// rederived and the result is upserted in place, so re-running it is safe.
package main

import (
	"context"
	"os"

	"inflacion/internal/cli"
	"inflacion/internal/core"
	"inflacion/internal/fred"
	"inflacion/internal/ingest"
	"inflacion/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	ctx := context.Background()

	fetcher, err := fred.NewFromEnv()
	if err != nil {
		logger.Error("FRED client unavailable", "error", err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	var publisher services.Publisher
	if amqpClient != nil {
		publisher = amqpClient
	}
	service := services.NewInflationService(repo, publisher)

	start := cfg.FetchStart
	if start == "" {
		start = fred.DefaultObservationStart
	}
	fetched, err := fetcher.Records(ctx, start)
	if err != nil {
		logger.Error("FRED fetch failed", "error", err)
		os.Exit(1)
	}
	if len(fetched) == 0 {
		logger.Warn("FRED returned no observations, nothing to update")
		return
	}

	// Splice onto the stored series so the fetched chain is rebased to the
	// store's index level and every derived rate sees its reference month.
	existing, err := repo.ListRecords(ctx, core.Query{StartYear: core.MinYear})
	if err != nil {
		logger.Error("Failed to read existing records", "error", err)
		os.Exit(1)
	}
	combined := ingest.MergeFetched(existing, fetched)

	result, err := service.ApplyBatch(ctx, combined)
	if err != nil {
		logger.Error("Update failed", "error", err)
		os.Exit(1)
	}

	last := combined[len(combined)-1]
	logger.Info("Update complete",
		"fetched", len(fetched),
		"applied", result.Applied,
		"rejected", len(result.Rejected),
		"through", last.DateString())
}
