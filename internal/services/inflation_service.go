// Package services provides business logic and orchestration over the CPI
// store, the update pipeline output and the AMQP announcements.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"inflacion/internal/core"
	"inflacion/internal/storage"
)

// Store is the persistence surface the service needs. *storage.SQLiteRepository
// satisfies it; tests substitute a fake.
type Store interface {
	UpsertRecords(ctx context.Context, records []core.CpiRecord) (storage.BatchResult, error)
	ListRecords(ctx context.Context, q core.Query) ([]core.CpiRecord, error)
	GetRecord(ctx context.Context, year, month int) (core.CpiRecord, bool, error)
	Latest(ctx context.Context) (core.CpiRecord, bool, error)
	Earliest(ctx context.Context) (core.CpiRecord, bool, error)
	IndexForMonth(ctx context.Context, year, month int) (float64, bool, error)
	Count(ctx context.Context) (int64, error)
}

// Publisher announces series changes. A nil publisher disables announcements.
type Publisher interface {
	PublishSeriesUpdated(ctx context.Context, records, throughYear, throughMonth int) error
}

// InflationService orchestrates CPI operations across SQLite and AMQP.
type InflationService struct {
	store     Store
	publisher Publisher
}

func NewInflationService(store Store, publisher Publisher) *InflationService {
	return &InflationService{store: store, publisher: publisher}
}

// ApplyBatch upserts a prepared record batch and announces the result.
// Publish failures are logged, not returned: the store write already
// succeeded and consumers recover on the next announcement.
func (s *InflationService) ApplyBatch(ctx context.Context, records []core.CpiRecord) (storage.BatchResult, error) {
	result, err := s.store.UpsertRecords(ctx, records)
	if err != nil {
		return result, fmt.Errorf("apply batch: %w", err)
	}

	if result.Applied > 0 {
		last := records[len(records)-1]
		s.announce(ctx, result.Applied, last.Year, last.Month)
	}
	return result, nil
}

func (s *InflationService) announce(ctx context.Context, records, throughYear, throughMonth int) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSeriesUpdated(ctx, records, throughYear, throughMonth); err != nil {
		slog.ErrorContext(ctx, "Failed to publish series updated message", "error", err)
	}
}

// ManualResult reports what happened to one manual entry.
type ManualResult struct {
	Year   int
	Month  int
	Record core.CpiRecord
	Err    error
}

// AddManualEntries resolves and stores operator-supplied months one by one.
// A failing entry is reported in its ManualResult and does not stop the rest.
//
// Missing fields are derived from the store: the index comes from the
// previous month's CPI when present, otherwise it is projected forward from
// the latest stored index by compounding the entry's monthly rate over the
// gap. The annual rate comes from the index twelve months back when present,
// otherwise it is estimated as monthly times twelve.
func (s *InflationService) AddManualEntries(ctx context.Context, entries []core.ManualEntry) []ManualResult {
	results := make([]ManualResult, 0, len(entries))
	applied := 0
	var lastYear, lastMonth int

	for _, entry := range entries {
		res := ManualResult{Year: entry.Year, Month: entry.Month}
		rec, err := s.resolveManualEntry(ctx, entry)
		if err == nil {
			_, err = s.store.UpsertRecords(ctx, []core.CpiRecord{rec})
		}
		if err != nil {
			res.Err = err
			slog.ErrorContext(ctx, "Manual entry failed",
				"year", entry.Year, "month", entry.Month, "error", err)
		} else {
			res.Record = rec
			applied++
			lastYear, lastMonth = rec.Year, rec.Month
		}
		results = append(results, res)
	}

	if applied > 0 {
		s.announce(ctx, applied, lastYear, lastMonth)
	}
	return results
}

func (s *InflationService) resolveManualEntry(ctx context.Context, entry core.ManualEntry) (core.CpiRecord, error) {
	if err := entry.Validate(); err != nil {
		return core.CpiRecord{}, err
	}
	rec := entry.Record()

	if !rec.Index.Valid {
		idx, err := s.deriveIndex(ctx, entry)
		if err != nil {
			return core.CpiRecord{}, err
		}
		rec.Index = idx
	}

	if !rec.Annual.Valid {
		rec.Annual = s.deriveAnnual(ctx, rec)
	}
	return rec, nil
}

func (s *InflationService) deriveIndex(ctx context.Context, entry core.ManualEntry) (core.NullFloat, error) {
	prevYear, prevMonth := core.PrevMonth(entry.Year, entry.Month)
	prev, found, err := s.store.GetRecord(ctx, prevYear, prevMonth)
	if err != nil {
		return core.NullFloat{}, fmt.Errorf("look up previous month: %w", err)
	}
	if found && prev.Index.Valid {
		return core.Float(core.ProjectIndex(prev.Index.Float64, entry.Monthly, 1)), nil
	}

	latest, found, err := s.store.Latest(ctx)
	if err != nil {
		return core.NullFloat{}, fmt.Errorf("look up latest record: %w", err)
	}
	if !found || !latest.Index.Valid {
		// First record ever: leave the index unset rather than invent a base.
		slog.WarnContext(ctx, "No stored CPI to derive index from, leaving unset",
			"year", entry.Year, "month", entry.Month)
		return core.NullFloat{}, nil
	}

	gap := core.MonthKey(entry.Year, entry.Month) - latest.Key()
	if gap <= 0 {
		slog.WarnContext(ctx, "Manual entry predates latest record and has no previous month, leaving index unset",
			"entry", fmt.Sprintf("%04d-%02d", entry.Year, entry.Month),
			"latest", latest.DateString())
		return core.NullFloat{}, nil
	}

	slog.WarnContext(ctx, "Previous month missing, projecting index from latest record",
		"entry", fmt.Sprintf("%04d-%02d", entry.Year, entry.Month),
		"latest", latest.DateString(),
		"months", gap)
	return core.Float(core.ProjectIndex(latest.Index.Float64, entry.Monthly, gap)), nil
}

func (s *InflationService) deriveAnnual(ctx context.Context, rec core.CpiRecord) core.NullFloat {
	if rec.Index.Valid {
		yearBack, found, err := s.store.GetRecord(ctx, rec.Year-1, rec.Month)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to look up year-back record", "error", err)
		} else if found && yearBack.Index.Valid {
			return core.Float((rec.Index.Float64/yearBack.Index.Float64 - 1) * 100)
		}
	}

	if rec.Monthly.Valid {
		slog.WarnContext(ctx, "Year-back record missing, estimating annual rate from monthly",
			"year", rec.Year, "month", rec.Month)
		return core.Float(core.EstimateAnnualFromMonthly(rec.Monthly.Float64))
	}
	return core.NullFloat{}
}

// Records lists stored records for the query, oldest first.
func (s *InflationService) Records(ctx context.Context, q core.Query) ([]core.CpiRecord, error) {
	return s.store.ListRecords(ctx, q)
}

// Convert revalues amount from one month's pesos into another's. Months
// outside coverage resolve to the nearest covered edge.
func (s *InflationService) Convert(ctx context.Context, amount float64, fromYear, fromMonth, toYear, toMonth int) (core.Conversion, error) {
	fromCPI, ok, err := s.store.IndexForMonth(ctx, fromYear, fromMonth)
	if err != nil {
		return core.Conversion{}, err
	}
	if !ok {
		return core.Conversion{}, fmt.Errorf("%w: %04d-%02d", core.ErrNoCPIData, fromYear, fromMonth)
	}
	toCPI, ok, err := s.store.IndexForMonth(ctx, toYear, toMonth)
	if err != nil {
		return core.Conversion{}, err
	}
	if !ok {
		return core.Conversion{}, fmt.Errorf("%w: %04d-%02d", core.ErrNoCPIData, toYear, toMonth)
	}
	return core.ConvertPrice(amount, fromCPI, toCPI)
}

// Summary computes headline statistics over the stored series.
func (s *InflationService) Summary(ctx context.Context) (core.Summary, error) {
	latest, found, err := s.store.Latest(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	if !found {
		return core.Summary{}, core.ErrNoCPIData
	}

	summary := core.Summary{
		CurrentMonthly: latest.Monthly.Float64,
		CurrentAnnual:  latest.Annual.Float64,
		LastUpdated:    latest.DateString(),
	}

	recent, err := s.store.ListRecords(ctx, core.Query{
		StartYear: latest.Year - 2,
		Limit:     core.DefaultLimit,
	})
	if err != nil {
		return core.Summary{}, err
	}
	cutoff := latest.Key() - 12
	var sum float64
	var n int
	for _, r := range recent {
		if r.Key() > cutoff && r.Monthly.Valid {
			sum += r.Monthly.Float64
			n++
		}
	}
	if n > 0 {
		summary.AvgLast12Months = core.Round2(sum / float64(n))
	}

	earliest, found, err := s.store.Earliest(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	if found && earliest.Index.Valid && latest.Index.Valid {
		summary.TotalInflation = core.Round2((latest.Index.Float64/earliest.Index.Float64 - 1) * 100)
	}
	return summary, nil
}

// RangeInflation computes total inflation between two months.
func (s *InflationService) RangeInflation(ctx context.Context, fromYear, fromMonth, toYear, toMonth int) (core.RangeResult, error) {
	conv, err := s.Convert(ctx, 1, fromYear, fromMonth, toYear, toMonth)
	if err != nil {
		return core.RangeResult{}, err
	}
	months := core.MonthKey(toYear, toMonth) - core.MonthKey(fromYear, fromMonth)
	return core.RangeResult{
		TotalInflation: conv.PercentageChange,
		Multiplier:     conv.Multiplier,
		Years:          core.Round2(float64(months) / 12),
	}, nil
}

// AnnualByYear returns each year's closing year-over-year rate, taken from
// the last record of the year that has one.
func (s *InflationService) AnnualByYear(ctx context.Context, startYear, endYear int) ([]core.AnnualRate, error) {
	records, err := s.store.ListRecords(ctx, core.Query{
		StartYear: startYear,
		EndYear:   endYear,
		Limit:     core.DefaultLimit,
	})
	if err != nil {
		return nil, err
	}

	byYear := make(map[int]float64)
	var years []int
	for _, r := range records {
		if !r.Annual.Valid {
			continue
		}
		if _, seen := byYear[r.Year]; !seen {
			years = append(years, r.Year)
		}
		// Records arrive oldest first, so the last write per year wins.
		byYear[r.Year] = r.Annual.Float64
	}

	rates := make([]core.AnnualRate, 0, len(years))
	for _, y := range years {
		rates = append(rates, core.AnnualRate{Year: y, Rate: core.Round2(byYear[y])})
	}
	return rates, nil
}

// Count returns the number of stored records.
func (s *InflationService) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}
