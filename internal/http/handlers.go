package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inflacion/internal/core"
)

// recordDTO flattens a CpiRecord for the wire; unset rates serialize as 0,
// matching what graphing consumers expect.
type recordDTO struct {
	Date        string  `json:"date"`
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	CPIIndex    float64 `json:"cpi_index"`
	MonthlyRate float64 `json:"monthly_rate"`
	AnnualRate  float64 `json:"annual_rate"`
	Source      string  `json:"source"`
}

func toDTO(r core.CpiRecord) recordDTO {
	return recordDTO{
		Date:        r.DateString(),
		Year:        r.Year,
		Month:       r.Month,
		CPIIndex:    core.Round4(r.Index.Float64),
		MonthlyRate: core.Round2(r.Monthly.Float64),
		AnnualRate:  core.Round2(r.Annual.Float64),
		Source:      r.Source,
	}
}

// handleData serves the record listing:
// GET /inflation/data?start_year=1990&end_year=2025&limit=100
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	q := core.Query{
		StartYear: intParam(r, "start_year", 1990),
		EndYear:   intParam(r, "end_year", 0),
		Limit:     intParam(r, "limit", core.DefaultLimit),
	}

	records, err := s.reader.Records(r.Context(), q)
	if err != nil {
		s.serverError(w, r, "list records", err)
		return
	}

	data := make([]recordDTO, 0, len(records))
	for _, rec := range records {
		data = append(data, toDTO(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"count": len(data),
	})
}

// handleCurrent serves the headline numbers:
// GET /inflation/current
func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	summary, err := s.reader.Summary(r.Context())
	if errors.Is(err, core.ErrNoCPIData) {
		writeError(w, http.StatusNotFound, "no inflation data loaded")
		return
	}
	if err != nil {
		s.serverError(w, r, "summary", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"monthly_rate":       core.Round2(summary.CurrentMonthly),
		"annual_rate":        core.Round2(summary.CurrentAnnual),
		"avg_last_12_months": summary.AvgLast12Months,
		"total_inflation":    summary.TotalInflation,
		"last_updated":       summary.LastUpdated,
	})
}

// handleConvert revalues an amount between two months:
// GET /inflation/convert?amount=1000&from_date=2020-01&to_date=2025-06
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(r.URL.Query().Get("amount")), 64)
	if err != nil || amount < 0 {
		writeError(w, http.StatusBadRequest, "amount must be a non-negative number")
		return
	}
	fromYear, fromMonth, ok := monthParam(r, "from_date")
	if !ok {
		writeError(w, http.StatusBadRequest, "from_date must be YYYY-MM or YYYY-MM-DD")
		return
	}
	toYear, toMonth, ok := monthParam(r, "to_date")
	if !ok {
		writeError(w, http.StatusBadRequest, "to_date must be YYYY-MM or YYYY-MM-DD")
		return
	}

	conv, err := s.reader.Convert(r.Context(), amount, fromYear, fromMonth, toYear, toMonth)
	if errors.Is(err, core.ErrNoCPIData) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.serverError(w, r, "convert", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"original_amount":   conv.OriginalAmount,
		"converted_amount":  conv.ConvertedAmount,
		"multiplier":        conv.Multiplier,
		"percentage_change": conv.PercentageChange,
	})
}

// handleRange reports total inflation between two months:
// GET /inflation/range?start_date=2020-01&end_date=2025-06
func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	fromYear, fromMonth, ok := monthParam(r, "start_date")
	if !ok {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM or YYYY-MM-DD")
		return
	}
	toYear, toMonth, ok := monthParam(r, "end_date")
	if !ok {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM or YYYY-MM-DD")
		return
	}

	result, err := s.reader.RangeInflation(r.Context(), fromYear, fromMonth, toYear, toMonth)
	if errors.Is(err, core.ErrNoCPIData) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.serverError(w, r, "range", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_inflation": result.TotalInflation,
		"multiplier":      result.Multiplier,
		"years":           result.Years,
	})
}

// handleAnnual serves year-over-year closing rates per year:
// GET /inflation/annual?start_year=2019&end_year=2025
func (s *Server) handleAnnual(w http.ResponseWriter, r *http.Request) {
	startYear := intParam(r, "start_year", 1990)
	endYear := intParam(r, "end_year", 0)

	rates, err := s.reader.AnnualByYear(r.Context(), startYear, endYear)
	if err != nil {
		s.serverError(w, r, "annual", err)
		return
	}

	data := make([]map[string]any, 0, len(rates))
	for _, rate := range rates {
		data = append(data, map[string]any{"year": rate.Year, "rate": rate.Rate})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"count": len(data),
	})
}

// handleHealth performs basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleReady performs readiness check: the store must hold data.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	count, err := s.reader.Count(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	if count == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  "store is empty, run setup first",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"records": count,
	})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.ErrorContext(r.Context(), "Handler failed", "op", op, "url", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func intParam(r *http.Request, name string, fallback int) int {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// monthParam parses a YYYY-MM or YYYY-MM-DD query parameter; the day is
// ignored since the series is monthly.
func monthParam(r *http.Request, name string) (year, month int, ok bool) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Year(), int(t.Month()), true
		}
	}
	return 0, 0, false
}
