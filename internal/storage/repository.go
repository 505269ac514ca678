package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"inflacion/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable CPI store, one row per (year, month).
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// RejectedRecord is one batch member that failed validation and was never
// written.
type RejectedRecord struct {
	Year  int
	Month int
	Err   error
}

// BatchResult reports what an upsert batch did: validation failures are
// isolated per record, so one bad tuple does not sink its neighbours.
type BatchResult struct {
	Applied  int
	Rejected []RejectedRecord
}

// UpsertRecords writes a batch keyed by (year, month), replacing any prior
// value at each key. The writes share one transaction: a storage-level
// failure rolls the whole batch back and the error names the record that
// broke it.
func (r *SQLiteRepository) UpsertRecords(ctx context.Context, records []core.CpiRecord) (BatchResult, error) {
	var result BatchResult

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin upsert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO inflation_data (year, month, cpi_index, monthly_rate, annual_rate, data_source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (year, month) DO UPDATE SET
			cpi_index    = excluded.cpi_index,
			monthly_rate = excluded.monthly_rate,
			annual_rate  = excluded.annual_rate,
			data_source  = excluded.data_source,
			updated_at   = excluded.updated_at`)
	if err != nil {
		return result, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			result.Rejected = append(result.Rejected, RejectedRecord{Year: rec.Year, Month: rec.Month, Err: err})
			slog.WarnContext(ctx, "Rejecting invalid record",
				"year", rec.Year, "month", rec.Month, "error", err)
			continue
		}

		source := rec.Source
		if source == "" {
			source = core.SourceFRED
		}
		_, err := stmt.ExecContext(ctx,
			rec.Year, rec.Month,
			toNull(rec.Index), toNull(rec.Monthly), toNull(rec.Annual),
			source, now)
		if err != nil {
			return BatchResult{}, fmt.Errorf("upsert record %04d-%02d: %w", rec.Year, rec.Month, err)
		}
		result.Applied++
	}

	if err := tx.Commit(); err != nil {
		return BatchResult{}, fmt.Errorf("commit upsert batch: %w", err)
	}

	slog.InfoContext(ctx, "Upsert batch committed",
		"applied", result.Applied,
		"rejected", len(result.Rejected))
	return result, nil
}

const recordColumns = "year, month, cpi_index, monthly_rate, annual_rate, data_source"

// ListRecords returns records ordered oldest to newest. Limits at or above
// core.DefaultLimit mean the full series.
func (r *SQLiteRepository) ListRecords(ctx context.Context, q core.Query) ([]core.CpiRecord, error) {
	query := "SELECT " + recordColumns + " FROM inflation_data WHERE year >= ?"
	args := []any{q.StartYear}
	if q.EndYear > 0 {
		query += " AND year <= ?"
		args = append(args, q.EndYear)
	}
	query += " ORDER BY year, month"
	if q.Limit > 0 && q.Limit < core.DefaultLimit {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []core.CpiRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// GetRecord fetches one month; ok reports whether it exists.
func (r *SQLiteRepository) GetRecord(ctx context.Context, year, month int) (core.CpiRecord, bool, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM inflation_data WHERE year = ? AND month = ?", year, month)
	return oneRecord(row)
}

// Latest returns the newest stored record.
func (r *SQLiteRepository) Latest(ctx context.Context) (core.CpiRecord, bool, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM inflation_data ORDER BY year DESC, month DESC LIMIT 1")
	return oneRecord(row)
}

// Earliest returns the oldest stored record.
func (r *SQLiteRepository) Earliest(ctx context.Context) (core.CpiRecord, bool, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM inflation_data ORDER BY year, month LIMIT 1")
	return oneRecord(row)
}

// IndexForMonth resolves a CPI index for a month, falling back to the
// nearest edge of coverage: a month after the latest record uses the latest
// index, one before the earliest uses the earliest. ok is false only when
// the month sits inside coverage but has no index, or the store is empty.
func (r *SQLiteRepository) IndexForMonth(ctx context.Context, year, month int) (float64, bool, error) {
	rec, found, err := r.GetRecord(ctx, year, month)
	if err != nil {
		return 0, false, err
	}
	if found && rec.Index.Valid {
		return rec.Index.Float64, true, nil
	}

	latest, found, err := r.Latest(ctx)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}
	key := core.MonthKey(year, month)
	if key > latest.Key() && latest.Index.Valid {
		slog.WarnContext(ctx, "Requested month is after latest coverage, using latest CPI",
			"requested", fmt.Sprintf("%04d-%02d", year, month),
			"latest", latest.DateString())
		return latest.Index.Float64, true, nil
	}

	earliest, found, err := r.Earliest(ctx)
	if err != nil {
		return 0, false, err
	}
	if found && key < earliest.Key() && earliest.Index.Valid {
		slog.WarnContext(ctx, "Requested month is before earliest coverage, using earliest CPI",
			"requested", fmt.Sprintf("%04d-%02d", year, month),
			"earliest", earliest.DateString())
		return earliest.Index.Float64, true, nil
	}

	return 0, false, nil
}

// Count returns the number of stored records.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM inflation_data").Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (core.CpiRecord, error) {
	var (
		rec                   core.CpiRecord
		index, monthly, annual sql.NullFloat64
	)
	if err := s.Scan(&rec.Year, &rec.Month, &index, &monthly, &annual, &rec.Source); err != nil {
		return core.CpiRecord{}, err
	}
	rec.Index = fromNull(index)
	rec.Monthly = fromNull(monthly)
	rec.Annual = fromNull(annual)
	return rec, nil
}

func oneRecord(row *sql.Row) (core.CpiRecord, bool, error) {
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CpiRecord{}, false, nil
	}
	if err != nil {
		return core.CpiRecord{}, false, err
	}
	return rec, true, nil
}

func toNull(v core.NullFloat) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v.Float64, Valid: v.Valid}
}

func fromNull(v sql.NullFloat64) core.NullFloat {
	return core.NullFloat{Float64: v.Float64, Valid: v.Valid}
}
