package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inflacion/internal/core"
)

// stubReader serves canned answers to the handlers.
type stubReader struct {
	records []core.CpiRecord
	summary core.Summary
	err     error
}

func (s *stubReader) Records(_ context.Context, q core.Query) ([]core.CpiRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []core.CpiRecord
	for _, r := range s.records {
		if r.Year < q.StartYear {
			continue
		}
		if q.EndYear > 0 && r.Year > q.EndYear {
			continue
		}
		out = append(out, r)
		if q.Limit > 0 && q.Limit < core.DefaultLimit && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *stubReader) Convert(_ context.Context, amount float64, fromYear, _, toYear, _ int) (core.Conversion, error) {
	if len(s.records) == 0 {
		return core.Conversion{}, core.ErrNoCPIData
	}
	var fromCPI, toCPI float64
	for _, r := range s.records {
		if r.Year == fromYear {
			fromCPI = r.Index.Float64
		}
		if r.Year == toYear {
			toCPI = r.Index.Float64
		}
	}
	return core.ConvertPrice(amount, fromCPI, toCPI)
}

func (s *stubReader) Summary(_ context.Context) (core.Summary, error) {
	if len(s.records) == 0 {
		return core.Summary{}, core.ErrNoCPIData
	}
	return s.summary, nil
}

func (s *stubReader) RangeInflation(ctx context.Context, fromYear, fromMonth, toYear, toMonth int) (core.RangeResult, error) {
	conv, err := s.Convert(ctx, 1, fromYear, fromMonth, toYear, toMonth)
	if err != nil {
		return core.RangeResult{}, err
	}
	return core.RangeResult{
		TotalInflation: conv.PercentageChange,
		Multiplier:     conv.Multiplier,
		Years:          float64(toYear - fromYear),
	}, nil
}

func (s *stubReader) AnnualByYear(_ context.Context, _, _ int) ([]core.AnnualRate, error) {
	var out []core.AnnualRate
	for _, r := range s.records {
		if r.Annual.Valid {
			out = append(out, core.AnnualRate{Year: r.Year, Rate: r.Annual.Float64})
		}
	}
	return out, nil
}

func (s *stubReader) Count(_ context.Context) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return int64(len(s.records)), nil
}

func testServer(reader InflationReader, origins ...string) *Server {
	return NewServer(":0", reader, origins, time.Minute)
}

func doRequest(t *testing.T, s *Server, method, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func sampleRecords() []core.CpiRecord {
	return []core.CpiRecord{
		{Year: 2020, Month: 1, Index: core.Float(100), Source: core.SourceCSV},
		{Year: 2024, Month: 1, Index: core.Float(900), Monthly: core.Float(20.6), Annual: core.Float(254.2), Source: core.SourceFRED},
		{Year: 2025, Month: 6, Index: core.Float(1500), Monthly: core.Float(1.6), Annual: core.Float(39.4), Source: core.SourceFRED},
	}
}

func TestHandleData(t *testing.T) {
	s := testServer(&stubReader{records: sampleRecords()})
	defer s.Shutdown(context.Background())

	rr := doRequest(t, s, http.MethodGet, "/inflation/data?start_year=2024")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.EqualValues(t, 2, body["count"])

	data := body["data"].([]any)
	first := data[0].(map[string]any)
	assert.Equal(t, "2024-01-01", first["date"])
	assert.EqualValues(t, 900, first["cpi_index"])
	assert.EqualValues(t, 20.6, first["monthly_rate"])
	assert.Equal(t, "fred", first["source"])
}

func TestHandleDataFlattensUnsetRates(t *testing.T) {
	s := testServer(&stubReader{records: sampleRecords()})
	defer s.Shutdown(context.Background())

	rr := doRequest(t, s, http.MethodGet, "/inflation/data?start_year=2020&end_year=2020")
	require.Equal(t, http.StatusOK, rr.Code)

	data := decodeBody(t, rr)["data"].([]any)
	require.Len(t, data, 1)
	first := data[0].(map[string]any)
	assert.EqualValues(t, 0, first["monthly_rate"], "unset rates serialize as 0")
	assert.EqualValues(t, 0, first["annual_rate"])
}

func TestHandleDataLimit(t *testing.T) {
	s := testServer(&stubReader{records: sampleRecords()})
	defer s.Shutdown(context.Background())

	rr := doRequest(t, s, http.MethodGet, "/inflation/data?start_year=2020&limit=1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, decodeBody(t, rr)["count"])
}

func TestHandleCurrent(t *testing.T) {
	s := testServer(&stubReader{
		records: sampleRecords(),
		summary: core.Summary{
			CurrentMonthly:  1.6,
			CurrentAnnual:   39.4,
			AvgLast12Months: 2.4,
			TotalInflation:  1400,
			LastUpdated:     "2025-06-01",
		},
	})
	defer s.Shutdown(context.Background())

	rr := doRequest(t, s, http.MethodGet, "/inflation/current")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.EqualValues(t, 1.6, body["monthly_rate"])
	assert.EqualValues(t, 39.4, body["annual_rate"])
	assert.Equal(t, "2025-06-01", body["last_updated"])
}

func TestHandleCurrentEmptyStore(t *testing.T) {
	s := testServer(&stubReader{})
	defer s.Shutdown(context.Background())

	rr := doRequest(t, s, http.MethodGet, "/inflation/current")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleConvert(t *testing.T) {
	s := testServer(&stubReader{records: sampleRecords()})
	defer s.Shutdown(context.Background())

	rr := doRequest(t, s, http.MethodGet, "/inflation/convert?amount=1000&from_date=2020-01&to_date=2025-06")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.EqualValues(t, 15000, body["converted_amount"])
	assert.EqualValues(t, 15, body["multiplier"])
	assert.EqualValues(t, 1400, body["percentage_change"])
}

func TestHandleConvertBadParams(t *testing.T) {
	s := testServer(&stubReader{records: sampleRecords()})
	defer s.Shutdown(context.Background())

	tests := []struct {
		name   string
		target string
	}{
		{"missing amount", "/inflation/convert?from_date=2020-01&to_date=2025-06"},
		{"negative amount", "/inflation/convert?amount=-5&from_date=2020-01&to_date=2025-06"},
		{"bad from_date", "/inflation/convert?amount=100&from_date=01/2020&to_date=2025-06"},
		{"missing to_date", "/inflation/convert?amount=100&from_date=2020-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, s, http.MethodGet, tt.target)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestHandleRange(t *testing.T) {
	s := testServer(&stubReader{records: sampleRecords()})
	defer s.Shutdown(context.Background())

	rr := doRequest(t, s, http.MethodGet, "/inflation/range?start_date=2020-01&end_date=2025-06")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.EqualValues(t, 1400, body["total_inflation"])
	assert.EqualValues(t, 15, body["multiplier"])
}

func TestHandleAnnual(t *testing.T) {
	s := testServer(&stubReader{records: sampleRecords()})
	defer s.Shutdown(context.Background())

	rr := doRequest(t, s, http.MethodGet, "/inflation/annual?start_year=2020")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.EqualValues(t, 2, body["count"])
	data := body["data"].([]any)
	first := data[0].(map[string]any)
	assert.EqualValues(t, 2024, first["year"])
	assert.EqualValues(t, 254.2, first["rate"])
}

func TestMethodNotAllowed(t *testing.T) {
	s := testServer(&stubReader{records: sampleRecords()})
	defer s.Shutdown(context.Background())

	rr := doRequest(t, s, http.MethodPost, "/inflation/data")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "GET, OPTIONS", rr.Header().Get("Allow"))
}

func TestSecurityHeaders(t *testing.T) {
	s := testServer(&stubReader{records: sampleRecords()})
	defer s.Shutdown(context.Background())

	rr := doRequest(t, s, http.MethodGet, "/inflation/data")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestCORS(t *testing.T) {
	s := testServer(&stubReader{records: sampleRecords()}, "https://app.example")
	defer s.Shutdown(context.Background())

	t.Run("allowed origin", func(t *testing.T) {
		rr := doRequest(t, s, http.MethodGet, "/inflation/data", "Origin", "https://app.example")
		assert.Equal(t, "https://app.example", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origin", func(t *testing.T) {
		rr := doRequest(t, s, http.MethodGet, "/inflation/data", "Origin", "https://evil.example")
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		rr := doRequest(t, s, http.MethodOptions, "/inflation/data", "Origin", "https://app.example")
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

func TestResponseCache(t *testing.T) {
	s := testServer(&stubReader{records: sampleRecords()})
	defer s.Shutdown(context.Background())

	first := doRequest(t, s, http.MethodGet, "/inflation/data?start_year=2020")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get("X-Cache"))

	second := doRequest(t, s, http.MethodGet, "/inflation/data?start_year=2020")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "hit", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	// A different query string is a different cache key.
	other := doRequest(t, s, http.MethodGet, "/inflation/data?start_year=2021")
	require.Equal(t, http.StatusOK, other.Code)
	assert.Empty(t, other.Header().Get("X-Cache"))
}

func TestReadiness(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		s := testServer(&stubReader{})
		defer s.Shutdown(context.Background())

		rr := doRequest(t, s, http.MethodGet, "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("loaded store", func(t *testing.T) {
		s := testServer(&stubReader{records: sampleRecords()})
		defer s.Shutdown(context.Background())

		rr := doRequest(t, s, http.MethodGet, "/readyz")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ready", decodeBody(t, rr)["status"])
	})
}

func TestHealth(t *testing.T) {
	s := testServer(&stubReader{})
	defer s.Shutdown(context.Background())

	rr := doRequest(t, s, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])
}
