package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

func day(s string) time.Time {
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return ts.UTC()
}

func eodhdRequest(symbols ...string) core.LoadPricesRequest {
	return core.LoadPricesRequest{
		Symbols:  symbols,
		Start:    day("2024-01-01"),
		End:      day("2024-01-10"),
		Interval: model.IntervalOneDay,
		Vendor:   model.VendorEODHD,
		Adjusted: true,
	}
}

func TestLoadPrices_EODHD(t *testing.T) {
	bars := map[string][]map[string]any{
		"AAPL": {
			{"date": "2024-01-02", "close": 185.0, "adjusted_close": 184.5},
			{"date": "2024-01-03", "close": 186.0, "adjusted_close": 185.5},
			{"date": "2024-01-04", "close": 182.0, "adjusted_close": 181.5},
		},
		"MSFT": {
			{"date": "2024-01-02", "close": 370.0, "adjusted_close": 369.0},
			{"date": "2024-01-03", "close": 372.0, "adjusted_close": 371.0},
			// 2024-01-04 missing: the merged table must drop that row.
		},
	}

	var gotPaths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.URL.Path)
		assert.Equal(t, "secret-token", r.URL.Query().Get("api_token"))
		assert.Equal(t, "d", r.URL.Query().Get("period"))
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-01-10", r.URL.Query().Get("to"))

		symbol := r.URL.Path[len("/eod/"):]
		require.NoError(t, json.NewEncoder(w).Encode(bars[symbol]))
	}))
	defer srv.Close()

	c := New(Options{EODHDBaseURL: srv.URL, EODHDToken: "secret-token"})

	table, err := c.LoadPrices(context.Background(), eodhdRequest("AAPL", "MSFT"))
	require.NoError(t, err)

	assert.Equal(t, []string{"/eod/AAPL", "/eod/MSFT"}, gotPaths)
	assert.Equal(t, []string{"AAPL", "MSFT"}, table.Symbols)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, day("2024-01-02"), table.Times[0])
	assert.Equal(t, day("2024-01-03"), table.Times[1])
	// Adjusted close wins when requested.
	assert.Equal(t, 184.5, table.Values[0][0])
	assert.Equal(t, 369.0, table.Values[0][1])
}

func TestLoadPrices_EODHDUnadjustedClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"date": "2024-01-02", "close": 185.0, "adjusted_close": 184.5},
		})
	}))
	defer srv.Close()

	c := New(Options{EODHDBaseURL: srv.URL, EODHDToken: "tok"})

	req := eodhdRequest("AAPL")
	req.Adjusted = false
	table, err := c.LoadPrices(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 185.0, table.Values[0][0])
}

func TestLoadPrices_TwelveData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/time_series", r.URL.Path)
		assert.Equal(t, "EUR/USD", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1day", r.URL.Query().Get("interval"))
		assert.Equal(t, "api-key", r.URL.Query().Get("apikey"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"values": []map[string]string{
				{"datetime": "2024-01-03", "close": "1.0935"},
				{"datetime": "2024-01-02", "close": "1.0940"},
			},
		})
	}))
	defer srv.Close()

	c := New(Options{TwelveDataBaseURL: srv.URL, TwelveDataToken: "api-key"})

	table, err := c.LoadPrices(context.Background(), core.LoadPricesRequest{
		Symbols:  []string{"EUR/USD"},
		Start:    day("2024-01-01"),
		End:      day("2024-01-10"),
		Interval: model.IntervalOneDay,
		Vendor:   model.VendorTwelveData,
	})
	require.NoError(t, err)

	require.Equal(t, 2, table.Len())
	// Rows come back sorted ascending regardless of vendor order.
	assert.Equal(t, day("2024-01-02"), table.Times[0])
	assert.Equal(t, 1.0940, table.Values[0][0])
	assert.Equal(t, 1.0935, table.Values[1][0])
}

func TestLoadPrices_TwelveDataVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "error",
			"message": "symbol not found",
		})
	}))
	defer srv.Close()

	c := New(Options{TwelveDataBaseURL: srv.URL, TwelveDataToken: "api-key"})

	_, err := c.LoadPrices(context.Background(), core.LoadPricesRequest{
		Symbols:  []string{"NOPE"},
		Start:    day("2024-01-01"),
		End:      day("2024-01-10"),
		Interval: model.IntervalOneDay,
		Vendor:   model.VendorTwelveData,
	})
	var unavailable *core.DataUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Contains(t, unavailable.Error(), "symbol not found")
}

func TestLoadPrices_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Options{EODHDBaseURL: srv.URL, EODHDToken: "tok"})

	_, err := c.LoadPrices(context.Background(), eodhdRequest("AAPL"))
	var unavailable *core.DataUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "eodhd", unavailable.Vendor)
	assert.Contains(t, unavailable.Error(), "502")
}

func TestLoadPrices_EmptySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer srv.Close()

	c := New(Options{EODHDBaseURL: srv.URL, EODHDToken: "tok"})

	_, err := c.LoadPrices(context.Background(), eodhdRequest("DELISTED"))
	var unavailable *core.DataUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Contains(t, unavailable.Error(), "DELISTED")
}

func TestLoadPrices_NoOverlap(t *testing.T) {
	bars := map[string][]map[string]any{
		"AAPL": {{"date": "2024-01-02", "close": 185.0}},
		"MSFT": {{"date": "2024-01-03", "close": 370.0}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(bars[r.URL.Path[len("/eod/"):]])
	}))
	defer srv.Close()

	c := New(Options{EODHDBaseURL: srv.URL, EODHDToken: "tok"})

	_, err := c.LoadPrices(context.Background(), eodhdRequest("AAPL", "MSFT"))
	var unavailable *core.DataUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Contains(t, unavailable.Error(), "overlapping")
}

func TestLoadPrices_NoSymbols(t *testing.T) {
	c := New(Options{})
	_, err := c.LoadPrices(context.Background(), core.LoadPricesRequest{Vendor: model.VendorEODHD})
	var unavailable *core.DataUnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestLoadPrices_UnsupportedVendor(t *testing.T) {
	c := New(Options{})
	req := eodhdRequest("AAPL")
	req.Vendor = model.DataVendor("bloomberg")
	_, err := c.LoadPrices(context.Background(), req)
	var unavailable *core.DataUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Contains(t, unavailable.Error(), "unsupported vendor")
}

func TestEODHDPeriodMapping(t *testing.T) {
	assert.Equal(t, "d", eodhdPeriod(model.IntervalOneDay))
	assert.Equal(t, "d", eodhdPeriod(model.IntervalOneHour))
	assert.Equal(t, "w", eodhdPeriod(model.IntervalOneWeek))
	assert.Equal(t, "m", eodhdPeriod(model.IntervalOneMonth))
}

func TestTwelveDataIntervalMapping(t *testing.T) {
	assert.Equal(t, "1day", twelveDataInterval(model.IntervalOneDay))
	assert.Equal(t, "5min", twelveDataInterval(model.IntervalFiveMin))
	assert.Equal(t, "1week", twelveDataInterval(model.IntervalOneWeek))
	assert.Equal(t, "1day", twelveDataInterval(model.DataInterval("bogus")))
}
