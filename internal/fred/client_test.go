package fred

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const observationsJSON = `{
  "observations": [
    {"date": "2017-01-01", "value": "38.0"},
    {"date": "2017-02-01", "value": "."},
    {"date": "2017-03-01", "value": "40.5"},
    {"date": "2017-04-01", "value": "27.5"}
  ]
}`

func TestNewFromEnvMissingKey(t *testing.T) {
	t.Setenv("FRED_API_KEY", "")
	_, err := NewFromEnv()
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewFromEnvDefaults(t *testing.T) {
	t.Setenv("FRED_API_KEY", "test-key")
	t.Setenv("FRED_SERIES_ID", "")
	t.Setenv("FRED_BASE_URL", "")

	c, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultSeriesID, c.seriesID)
}

func TestObservationsSkipsMissingValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fred/series/observations", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, DefaultSeriesID, r.URL.Query().Get("series_id"))
		assert.Equal(t, "2017-01-01", r.URL.Query().Get("observation_start"))
		w.Write([]byte(observationsJSON))
	}))
	defer srv.Close()

	c := New("test-key", DefaultSeriesID, srv.URL)
	obs, err := c.Observations(context.Background(), "2017-01-01")
	require.NoError(t, err)

	require.Len(t, obs, 3, "the '.' marker must be dropped")
	assert.Equal(t, 2017, obs[0].Year)
	assert.Equal(t, 1, obs[0].Month)
	assert.InDelta(t, 38.0, obs[0].Value, 1e-9)
	assert.Equal(t, 3, obs[1].Month)
}

func TestObservationsRetriesRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(observationsJSON))
	}))
	defer srv.Close()

	c := New("test-key", DefaultSeriesID, srv.URL)
	obs, err := c.Observations(context.Background(), "2017-01-01")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, obs, 3)
}

func TestObservationsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad api key", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New("wrong", DefaultSeriesID, srv.URL)
	_, err := c.Observations(context.Background(), "2017-01-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestGrowthToRecords(t *testing.T) {
	obs := []Observation{
		{Year: 2017, Month: 1, Value: 38.0},
		{Year: 2017, Month: 2, Value: 36.0},
		{Year: 2017, Month: 3, Value: 33.0},
	}
	records := GrowthToRecords(obs)
	require.Len(t, records, 3)

	assert.InDelta(t, 100.0, records[0].Index.Float64, 1e-9, "chain starts at base 100")

	want1 := 100.0 * math.Pow(1.36, 1.0/12)
	assert.InDelta(t, want1, records[1].Index.Float64, 1e-9)

	want2 := want1 * math.Pow(1.33, 1.0/12)
	assert.InDelta(t, want2, records[2].Index.Float64, 1e-9)

	assert.False(t, records[0].Monthly.Valid, "rates are derived later from the spliced series")
}
