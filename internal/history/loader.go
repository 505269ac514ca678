// Package history loads the static historical CPI dataset (the pre-2017
// window) from a CSV file into store records.
package history

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"inflacion/internal/core"
)

// RowError records one skipped CSV row.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Report summarizes a load: how many rows became records and which rows
// were skipped. A skipped row never aborts the file.
type Report struct {
	Loaded  int
	Skipped []RowError
}

// LoadFile reads a `date,cpi` CSV (rows `YYYY-MM-DD,<float>`) and returns
// index-only records; rates are derived later once the full series is
// assembled. Malformed rows are skipped and reported, not fatal.
func LoadFile(ctx context.Context, path string) ([]core.CpiRecord, Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Report{}, fmt.Errorf("open historical csv: %w", err)
	}
	defer f.Close()

	records, report, err := Load(ctx, f)
	if err != nil {
		return nil, report, fmt.Errorf("read historical csv %s: %w", path, err)
	}
	return records, report, nil
}

// Load parses CSV content from r. The first row must be the `date,cpi`
// header.
func Load(ctx context.Context, r io.Reader) ([]core.CpiRecord, Report, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, Report{}, fmt.Errorf("read header: %w", err)
	}
	if len(header) != 2 || !strings.EqualFold(header[0], "date") || !strings.EqualFold(strings.TrimSpace(header[1]), "cpi") {
		return nil, Report{}, fmt.Errorf("unexpected header %v, want date,cpi", header)
	}

	var (
		records []core.CpiRecord
		report  Report
		line    = 1
	)
	for {
		row, err := cr.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			// Structural CSV errors (wrong field count) are per-row too.
			report.Skipped = append(report.Skipped, RowError{Line: line, Err: err})
			slog.WarnContext(ctx, "Skipping malformed CSV row", "line", line, "error", err)
			continue
		}

		rec, err := parseRow(row)
		if err != nil {
			report.Skipped = append(report.Skipped, RowError{Line: line, Err: err})
			slog.WarnContext(ctx, "Skipping invalid CSV row", "line", line, "error", err, "row", strings.Join(row, ","))
			continue
		}
		records = append(records, rec)
	}

	core.SortByMonth(records)
	records = core.DedupeLastWins(records)
	report.Loaded = len(records)

	slog.InfoContext(ctx, "Historical CSV loaded",
		"records", report.Loaded,
		"skipped", len(report.Skipped))
	return records, report, nil
}

func parseRow(row []string) (core.CpiRecord, error) {
	day, err := time.Parse("2006-01-02", strings.TrimSpace(row[0]))
	if err != nil {
		return core.CpiRecord{}, fmt.Errorf("parse date %q: %w", row[0], err)
	}
	cpi, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
	if err != nil {
		return core.CpiRecord{}, fmt.Errorf("parse cpi %q: %w", row[1], err)
	}

	rec := core.CpiRecord{
		Year:   day.Year(),
		Month:  int(day.Month()),
		Index:  core.Float(cpi),
		Source: core.SourceCSV,
	}
	if err := rec.Validate(); err != nil {
		return core.CpiRecord{}, err
	}
	return rec, nil
}
