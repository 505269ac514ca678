// Command setup builds the CPI store from scratch: it loads the historical
// CSV, fetches the recent window from FRED, splices the two series and
// publishes the result atomically over the configured database path.
package main

import (
	"context"
	"flag"
	"os"

	"inflacion/internal/cli"
	"inflacion/internal/fred"
	"inflacion/internal/ingest"
	"inflacion/internal/storage"
)

func main() {
	skipFetch := flag.Bool("skip-fetch", false, "build from the historical CSV only, without calling FRED")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	ctx := context.Background()

	pipeline := ingest.Pipeline{
		CSVPath:    cfg.HistoricalCSVPath,
		FetchStart: cfg.FetchStart,
		StartYear:  cfg.StartYear,
	}
	if !*skipFetch {
		fetcher, err := fred.NewFromEnv()
		if err != nil {
			// Missing key fails here, before touching the existing store.
			logger.Error("FRED client unavailable", "error", err)
			os.Exit(1)
		}
		pipeline.Fetcher = fetcher
	}

	report, err := pipeline.Run(ctx)
	if err != nil {
		logger.Error("Series assembly failed", "error", err)
		os.Exit(1)
	}
	for _, skipped := range report.CSVSkipped {
		logger.Warn("Skipped CSV row", "line", skipped.Line, "error", skipped.Err)
	}

	err = storage.Rebuild(cfg.SQLiteDBPath, func(repo *storage.SQLiteRepository) error {
		result, err := repo.UpsertRecords(ctx, report.Records)
		if err != nil {
			return err
		}
		logger.Info("Store populated",
			"applied", result.Applied,
			"rejected", len(result.Rejected))
		return nil
	})
	if err != nil {
		logger.Error("Store rebuild failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Setup complete",
		"db", cfg.SQLiteDBPath,
		"historical", report.Historical,
		"fetched", report.Fetched,
		"total", len(report.Records))
}
