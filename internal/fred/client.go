// Package fred fetches CPI observations from the FRED statistical API
// (https://fred.stlouisfed.org) and normalizes them into store records.
package fred

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"inflacion/internal/core"
)

const (
	// DefaultSeriesID is the OECD Argentina CPI series: monthly
	// observations of year-over-year growth, actively updated.
	DefaultSeriesID = "ARGCPALTT01GYM"

	// DefaultObservationStart is where the fetched window begins; earlier
	// months come from the historical CSV.
	DefaultObservationStart = "2017-01-01"

	defaultBaseURL = "https://api.stlouisfed.org"

	// missingValue is how FRED marks an observation with no data.
	missingValue = "."

	maxAttempts = 4
)

var ErrMissingAPIKey = errors.New("missing FRED_API_KEY (get a free key at https://fred.stlouisfed.org and set it in the environment)")

type Client struct {
	apiKey   string
	baseURL  string
	seriesID string
	http     *http.Client
}

// Observation is one raw point of the fetched series.
type Observation struct {
	Year  int
	Month int
	Value float64 // year-over-year growth, percent
}

// NewFromEnv builds a client from FRED_API_KEY and the optional
// FRED_SERIES_ID / FRED_BASE_URL overrides. A missing key fails here,
// before any network I/O, so the operator sees a configuration error
// rather than a cryptic API response.
func NewFromEnv() (*Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("FRED_API_KEY"))
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	seriesID := strings.TrimSpace(os.Getenv("FRED_SERIES_ID"))
	if seriesID == "" {
		seriesID = DefaultSeriesID
	}
	baseURL := strings.TrimSpace(os.Getenv("FRED_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return New(apiKey, seriesID, baseURL), nil
}

func New(apiKey, seriesID, baseURL string) *Client {
	return &Client{
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		seriesID: seriesID,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// Observations fetches the series from start to the present. Missing-value
// markers are skipped; HTTP 429 is retried with backoff before giving up.
func (c *Client) Observations(ctx context.Context, start string) ([]Observation, error) {
	q := url.Values{}
	q.Set("series_id", c.seriesID)
	q.Set("api_key", c.apiKey)
	q.Set("file_type", "json")
	q.Set("observation_start", start)
	endpoint := c.baseURL + "/fred/series/observations?" + q.Encode()

	body, err := c.getWithRetry(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp observationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode FRED response: %w", err)
	}

	obs := make([]Observation, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		if o.Value == missingValue {
			slog.DebugContext(ctx, "Skipping missing FRED observation", "date", o.Date)
			continue
		}
		day, err := time.Parse("2006-01-02", o.Date)
		if err != nil {
			slog.WarnContext(ctx, "Skipping FRED observation with bad date", "date", o.Date, "error", err)
			continue
		}
		v, err := strconv.ParseFloat(o.Value, 64)
		if err != nil {
			slog.WarnContext(ctx, "Skipping FRED observation with bad value", "date", o.Date, "value", o.Value, "error", err)
			continue
		}
		obs = append(obs, Observation{Year: day.Year(), Month: int(day.Month()), Value: v})
	}

	slog.InfoContext(ctx, "Fetched FRED observations",
		"series", c.seriesID,
		"start", start,
		"months", len(obs))
	return obs, nil
}

func (c *Client) getWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	backoff := time.Second
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build FRED request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch FRED series %s: %w", c.seriesID, err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				return nil, fmt.Errorf("read FRED response: %w", readErr)
			}
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests && attempt < maxAttempts:
			slog.WarnContext(ctx, "FRED rate limit hit, retrying",
				"attempt", attempt,
				"backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		default:
			return nil, fmt.Errorf("FRED series %s: unexpected status %d: %s",
				c.seriesID, resp.StatusCode, strings.TrimSpace(string(body)))
		}
	}
}

// Records fetches observations and reconstructs a CPI index chain from the
// year-over-year growth rates: the chain starts at 100 and each month is
// multiplied by (1 + annual/100)^(1/12). The absolute level is arbitrary;
// the caller rebases it onto the historical series when splicing.
func (c *Client) Records(ctx context.Context, start string) ([]core.CpiRecord, error) {
	obs, err := c.Observations(ctx, start)
	if err != nil {
		return nil, err
	}
	return GrowthToRecords(obs), nil
}

// GrowthToRecords converts year-over-year growth observations into an
// index-only record chain with base 100.
func GrowthToRecords(obs []Observation) []core.CpiRecord {
	records := make([]core.CpiRecord, 0, len(obs))
	index := 100.0
	for i, o := range obs {
		if i > 0 {
			multiplier := math.Pow(1+o.Value/100, 1.0/12)
			index *= multiplier
		}
		records = append(records, core.CpiRecord{
			Year:   o.Year,
			Month:  o.Month,
			Index:  core.Float(index),
			Source: core.SourceFRED,
		})
	}
	core.SortByMonth(records)
	return core.DedupeLastWins(records)
}
