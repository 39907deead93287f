package quant

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

// runBlackScholes prices a European option on the first symbol. The spot is
// the last observed price; volatility comes from params or, when absent, is
// estimated as the annualized standard deviation of historical log returns.
func runBlackScholes(p *model.BlackScholesParams, prices *core.PriceTable) (*core.ModelResult, error) {
	series, _ := prices.Column(prices.Symbols[0])
	spot := series[len(series)-1]
	if spot <= 0 {
		return nil, &core.ModelError{Kind: string(model.JobKindBlackScholes), Msg: "spot price must be positive"}
	}

	var sigma float64
	if p.Volatility != nil {
		sigma = *p.Volatility
	} else {
		logReturns := core.LogReturns(series)
		if len(logReturns) < 2 {
			return nil, &core.ModelError{
				Kind: string(model.JobKindBlackScholes),
				Msg:  "volatility not provided and history too short to estimate it",
			}
		}
		sigma = stat.StdDev(logReturns, nil) * math.Sqrt(tradingDaysPerYear)
		if sigma <= 0 || math.IsNaN(sigma) {
			return nil, &core.ModelError{
				Kind: string(model.JobKindBlackScholes),
				Msg:  "estimated volatility is not positive",
			}
		}
	}

	k, t, r := p.StrikePrice, p.TimeToExpiry, p.RiskFreeRate
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(spot/k) + (r+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	n := distuv.UnitNormal
	pdfD1 := n.Prob(d1)
	discount := math.Exp(-r * t)

	var price, delta, rho, theta float64
	gamma := pdfD1 / (spot * sigma * sqrtT)
	vega := spot * pdfD1 * sqrtT

	if p.OptionType == "call" {
		price = spot*n.CDF(d1) - k*discount*n.CDF(d2)
		delta = n.CDF(d1)
		rho = k * t * discount * n.CDF(d2)
		theta = -spot*pdfD1*sigma/(2*sqrtT) - r*k*discount*n.CDF(d2)
	} else {
		price = k*discount*n.CDF(-d2) - spot*n.CDF(-d1)
		delta = n.CDF(d1) - 1
		rho = -k * t * discount * n.CDF(-d2)
		theta = -spot*pdfD1*sigma/(2*sqrtT) + r*k*discount*n.CDF(-d2)
	}

	metrics := map[string]float64{
		"option_price": price,
		"delta":        delta,
		"gamma":        gamma,
		"theta":        theta,
		"vega":         vega,
		"rho":          rho,
		"d1":           d1,
		"d2":           d2,
		"spot_price":   spot,
		"volatility":   sigma,
	}

	return &core.ModelResult{Metrics: metrics}, nil
}
