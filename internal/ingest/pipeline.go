// Package ingest assembles the full CPI series from its two sources, the
// historical CSV and the FRED fetcher, into a batch ready for the store.
package ingest

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"inflacion/internal/core"
	"inflacion/internal/fred"
	"inflacion/internal/history"
)

// ErrNoData means neither source produced a single record.
var ErrNoData = errors.New("no data available from any source")

// ObservationSource produces fetched records from some start date onward.
// *fred.Client satisfies it.
type ObservationSource interface {
	Records(ctx context.Context, start string) ([]core.CpiRecord, error)
}

// Pipeline loads both sources, splices them into one continuous series and
// derives the missing rates. Either source may be absent: a missing CSV or a
// failing fetch degrades to the other source alone.
type Pipeline struct {
	// CSVPath is the historical dataset; empty skips the CSV entirely.
	CSVPath string

	// Fetcher pulls the recent window; nil skips fetching.
	Fetcher ObservationSource

	// FetchStart is the first observation date requested from the fetcher,
	// YYYY-MM-DD. Empty uses fred.DefaultObservationStart.
	FetchStart string

	// StartYear drops records from before it after splicing. Zero keeps
	// everything.
	StartYear int
}

// Report describes one pipeline run.
type Report struct {
	Records    []core.CpiRecord
	Historical int
	Fetched    int
	CSVSkipped []history.RowError
}

// Run executes both loads concurrently and merges the results. A single
// failing source is logged and tolerated; only both sources coming up empty
// is an error.
func (p Pipeline) Run(ctx context.Context) (Report, error) {
	var (
		report     Report
		historical []core.CpiRecord
		fetched    []core.CpiRecord
	)

	// Source failures are swallowed inside each goroutine so one source
	// going down never cancels the other.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if p.CSVPath == "" {
			return nil
		}
		records, rep, err := history.LoadFile(gctx, p.CSVPath)
		if err != nil {
			slog.ErrorContext(gctx, "Historical CSV load failed, continuing without it",
				"path", p.CSVPath, "error", err)
			return nil
		}
		historical = records
		report.CSVSkipped = rep.Skipped
		return nil
	})

	g.Go(func() error {
		if p.Fetcher == nil {
			return nil
		}
		start := p.FetchStart
		if start == "" {
			start = fred.DefaultObservationStart
		}
		records, err := p.Fetcher.Records(gctx, start)
		if err != nil {
			slog.ErrorContext(gctx, "FRED fetch failed, continuing without it", "error", err)
			return nil
		}
		fetched = records
		return nil
	})

	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report.Historical = len(historical)
	report.Fetched = len(fetched)
	if report.Historical == 0 && report.Fetched == 0 {
		return Report{}, ErrNoData
	}

	combined := core.Splice(historical, fetched)
	core.FillRates(combined)

	if p.StartYear > 0 {
		filtered := combined[:0]
		for _, r := range combined {
			if r.Year >= p.StartYear {
				filtered = append(filtered, r)
			}
		}
		combined = filtered
	}

	report.Records = combined
	slog.InfoContext(ctx, "Series assembled",
		"historical", report.Historical,
		"fetched", report.Fetched,
		"total", len(combined))
	return report, nil
}

// MergeFetched splices a freshly fetched window into an already populated
// series. The stored records are split around the window first: the rebase
// factor must come from the last month before the window, and stored months
// after the window (manual projections) survive the merge. Fetched records
// replace stored ones inside the window, then indexes and rates are
// rederived over the joined series.
func MergeFetched(existing, fetched []core.CpiRecord) []core.CpiRecord {
	if len(fetched) == 0 {
		return existing
	}
	core.SortByMonth(fetched)

	firstKey := fetched[0].Key()
	lastKey := fetched[len(fetched)-1].Key()
	var before, after []core.CpiRecord
	for _, r := range existing {
		switch {
		case r.Key() < firstKey:
			before = append(before, r)
		case r.Key() > lastKey:
			after = append(after, r)
		}
	}

	combined := core.Splice(before, fetched)
	combined = append(combined, after...)
	core.SortByMonth(combined)
	combined = core.DedupeLastWins(combined)
	core.FillIndexes(combined)
	core.FillRates(combined)
	return combined
}
