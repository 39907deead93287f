package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

const dateLayout = "2006-01-02"

// eodhdBar is one row of the EODHD end-of-day response.
type eodhdBar struct {
	Date          string  `json:"date"`
	Close         float64 `json:"close"`
	AdjustedClose float64 `json:"adjusted_close"`
}

func (c *Client) loadEODHD(ctx context.Context, req core.LoadPricesRequest, symbol string) (map[time.Time]float64, error) {
	u := fmt.Sprintf("%s/eod/%s?from=%s&to=%s&period=%s&api_token=%s&fmt=json",
		c.eodhdBase,
		escape(symbol),
		req.Start.Format(dateLayout),
		req.End.Format(dateLayout),
		eodhdPeriod(req.Interval),
		escape(c.eodhdToken),
	)

	var bars []eodhdBar
	if err := c.getJSON(ctx, string(model.VendorEODHD), u, &bars); err != nil {
		return nil, err
	}

	points := make(map[time.Time]float64, len(bars))
	for _, bar := range bars {
		ts, err := time.Parse(dateLayout, bar.Date)
		if err != nil {
			continue
		}
		price := bar.Close
		if req.Adjusted && bar.AdjustedClose > 0 {
			price = bar.AdjustedClose
		}
		if price > 0 {
			points[ts.UTC()] = price
		}
	}
	return points, nil
}

// eodhdPeriod maps the table interval onto EODHD's d/w/m periods; EODHD's EOD
// endpoint has no intraday granularity, so anything finer collapses to daily.
func eodhdPeriod(interval model.DataInterval) string {
	switch interval {
	case model.IntervalOneWeek:
		return "w"
	case model.IntervalOneMonth:
		return "m"
	default:
		return "d"
	}
}

// twelveDataResponse is the Twelve Data time_series envelope.
type twelveDataResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Values  []struct {
		Datetime string `json:"datetime"`
		Close    string `json:"close"`
	} `json:"values"`
}

func (c *Client) loadTwelveData(ctx context.Context, req core.LoadPricesRequest, symbol string) (map[time.Time]float64, error) {
	u := fmt.Sprintf("%s/time_series?symbol=%s&interval=%s&start_date=%s&end_date=%s&apikey=%s",
		c.twelveBase,
		escape(symbol),
		twelveDataInterval(req.Interval),
		req.Start.Format(dateLayout),
		req.End.Format(dateLayout),
		escape(c.twelveToken),
	)

	var resp twelveDataResponse
	if err := c.getJSON(ctx, string(model.VendorTwelveData), u, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "error" {
		return nil, &core.DataUnavailableError{
			Vendor: string(model.VendorTwelveData),
			Err:    fmt.Errorf("vendor error: %s", resp.Message),
		}
	}

	points := make(map[time.Time]float64, len(resp.Values))
	for _, v := range resp.Values {
		ts, err := parseTwelveDataTime(v.Datetime)
		if err != nil {
			continue
		}
		var price float64
		if _, err := fmt.Sscanf(v.Close, "%f", &price); err != nil || price <= 0 {
			continue
		}
		points[ts] = price
	}
	return points, nil
}

func parseTwelveDataTime(s string) (time.Time, error) {
	if ts, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func twelveDataInterval(interval model.DataInterval) string {
	switch interval {
	case model.IntervalOneMin:
		return "1min"
	case model.IntervalFiveMin:
		return "5min"
	case model.IntervalFifteenMin:
		return "15min"
	case model.IntervalThirtyMin:
		return "30min"
	case model.IntervalFortyFive:
		return "45min"
	case model.IntervalOneHour:
		return "1h"
	case model.IntervalTwoHour:
		return "2h"
	case model.IntervalFourHour:
		return "4h"
	case model.IntervalOneWeek:
		return "1week"
	case model.IntervalOneMonth:
		return "1month"
	default:
		return "1day"
	}
}
