// Package marketdata implements the DataSource boundary against the EODHD and
// Twelve Data vendor APIs.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

// Options configures the vendor client.
type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger

	EODHDBaseURL string // defaults to the public API
	EODHDToken   string

	TwelveDataBaseURL string
	TwelveDataToken   string

	// Timeout bounds each vendor call; a timeout surfaces as DataUnavailable.
	Timeout time.Duration
}

// Client loads historical prices from the configured vendors. All failures
// (transport, vendor error payloads, empty series) surface as
// *core.DataUnavailableError; the pipeline never retries them.
type Client struct {
	http    *http.Client
	logger  *slog.Logger
	timeout time.Duration

	eodhdBase   string
	eodhdToken  string
	twelveBase  string
	twelveToken string
}

// New constructs a vendor client.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		http:        hc,
		logger:      logger.With("component", "marketdata"),
		timeout:     opts.Timeout,
		eodhdBase:   opts.EODHDBaseURL,
		eodhdToken:  opts.EODHDToken,
		twelveBase:  opts.TwelveDataBaseURL,
		twelveToken: opts.TwelveDataToken,
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.eodhdBase == "" {
		c.eodhdBase = "https://eodhd.com/api"
	}
	if c.twelveBase == "" {
		c.twelveBase = "https://api.twelvedata.com"
	}
	return c
}

// LoadPrices fetches one series per symbol and merges them into a wide table
// on the timestamps present for every symbol. Gap handling beyond that
// intersection is deliberately left to the vendors.
func (c *Client) LoadPrices(ctx context.Context, req core.LoadPricesRequest) (*core.PriceTable, error) {
	if len(req.Symbols) == 0 {
		return nil, &core.DataUnavailableError{Vendor: string(req.Vendor), Err: errors.New("no symbols requested")}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	series := make(map[string]map[time.Time]float64, len(req.Symbols))
	for _, symbol := range req.Symbols {
		points, err := c.loadSymbol(ctx, req, symbol)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			return nil, &core.DataUnavailableError{
				Vendor: string(req.Vendor),
				Err:    fmt.Errorf("no data for symbol %s in range", symbol),
			}
		}
		series[symbol] = points
	}

	table := mergeSeries(req.Symbols, series)
	if table.Len() == 0 {
		return nil, &core.DataUnavailableError{
			Vendor: string(req.Vendor),
			Err:    errors.New("no overlapping timestamps across symbols"),
		}
	}
	c.logger.DebugContext(ctx, "loaded prices",
		"vendor", req.Vendor, "symbols", len(req.Symbols), "rows", table.Len())
	return table, nil
}

func (c *Client) loadSymbol(ctx context.Context, req core.LoadPricesRequest, symbol string) (map[time.Time]float64, error) {
	switch req.Vendor {
	case model.VendorTwelveData:
		return c.loadTwelveData(ctx, req, symbol)
	case model.VendorEODHD:
		return c.loadEODHD(ctx, req, symbol)
	default:
		return nil, &core.DataUnavailableError{
			Vendor: string(req.Vendor),
			Err:    fmt.Errorf("unsupported vendor %q", req.Vendor),
		}
	}
}

func (c *Client) getJSON(ctx context.Context, vendor, rawURL string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &core.DataUnavailableError{Vendor: vendor, Err: fmt.Errorf("build request: %w", err)}
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &core.DataUnavailableError{Vendor: vendor, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return &core.DataUnavailableError{
			Vendor: vendor,
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &core.DataUnavailableError{Vendor: vendor, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// mergeSeries intersects per-symbol series on timestamp and produces the wide
// table sorted by ascending time.
func mergeSeries(symbols []string, series map[string]map[time.Time]float64) *core.PriceTable {
	common := make([]time.Time, 0, len(series[symbols[0]]))
	for ts := range series[symbols[0]] {
		present := true
		for _, symbol := range symbols[1:] {
			if _, ok := series[symbol][ts]; !ok {
				present = false
				break
			}
		}
		if present {
			common = append(common, ts)
		}
	}
	sort.Slice(common, func(i, j int) bool { return common[i].Before(common[j]) })

	values := make([][]float64, len(common))
	for i, ts := range common {
		row := make([]float64, len(symbols))
		for j, symbol := range symbols {
			row[j] = series[symbol][ts]
		}
		values[i] = row
	}
	return &core.PriceTable{Times: common, Symbols: symbols, Values: values}
}

func escape(s string) string { return url.QueryEscape(s) }
