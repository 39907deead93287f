package quant

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

// runBacktest replays a portfolio strategy over the price history. Rebalances
// pay transaction costs and slippage proportional to turnover.
func runBacktest(p *model.BacktestParams, prices *core.PriceTable) (*core.ModelResult, error) {
	if prices.Len() < 2 {
		return nil, &core.ModelError{Kind: string(model.JobKindBacktest), Msg: "need at least two observations"}
	}

	var rebalance bool
	switch p.Strategy {
	case "equal_weight":
		rebalance = true
	case "buy_and_hold":
		rebalance = false
	default:
		return nil, &core.ModelError{
			Kind: string(model.JobKindBacktest),
			Msg:  fmt.Sprintf("unknown strategy %q", p.Strategy),
		}
	}

	interval, err := rebalanceInterval(p.RebalanceFrequency)
	if err != nil {
		return nil, err
	}

	returns := prices.Returns()
	n := len(prices.Symbols)
	cost := p.TransactionCosts + p.Slippage

	// Start fully invested at equal weights, paying entry costs once.
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0 / float64(n)
	}
	equity := 1.0 - cost
	curve := make([]float64, 0, len(returns)+1)
	curve = append(curve, equity)
	periodReturns := make([]float64, 0, len(returns))

	for step, row := range returns {
		gross := 0.0
		for i, r := range row {
			weights[i] *= 1 + r
			gross += weights[i]
		}
		if gross <= 0 {
			return nil, &core.ModelError{Kind: string(model.JobKindBacktest), Msg: "portfolio value went non-positive"}
		}
		periodReturn := gross - 1

		// Weights drift with returns until normalized back to sum 1.
		for i := range weights {
			weights[i] /= gross
		}

		if rebalance && (step+1)%interval == 0 {
			turnover := 0.0
			target := 1.0 / float64(n)
			for i := range weights {
				turnover += math.Abs(weights[i] - target)
				weights[i] = target
			}
			drag := cost * turnover / 2
			periodReturn -= drag
		}

		equity *= 1 + periodReturn
		curve = append(curve, equity)
		periodReturns = append(periodReturns, periodReturn)
	}

	totalReturn := equity/curve[0] - 1
	years := float64(len(periodReturns)) / tradingDaysPerYear
	annualized := math.Pow(equity/curve[0], 1/years) - 1
	vol := stat.StdDev(periodReturns, nil) * math.Sqrt(tradingDaysPerYear)
	meanReturn := stat.Mean(periodReturns, nil) * tradingDaysPerYear

	sharpe := 0.0
	if vol > 0 {
		sharpe = meanReturn / vol
	}

	metrics := map[string]float64{
		"total_return":      totalReturn,
		"annualized_return": annualized,
		"volatility":        vol,
		"sharpe_ratio":      sharpe,
		"max_drawdown":      maxDrawdown(curve),
		"periods":           float64(len(periodReturns)),
	}

	table := core.Table{Name: "equity_curve", CSV: encodeEquityCurve(prices, curve)}
	return &core.ModelResult{Metrics: metrics, Tables: []core.Table{table}}, nil
}

func rebalanceInterval(freq string) (int, error) {
	switch freq {
	case "daily":
		return 1, nil
	case "weekly":
		return 5, nil
	case "monthly":
		return 21, nil
	case "quarterly":
		return 63, nil
	default:
		return 0, &core.ModelError{
			Kind: string(model.JobKindBacktest),
			Msg:  fmt.Sprintf("unknown rebalance frequency %q", freq),
		}
	}
}

func maxDrawdown(curve []float64) float64 {
	peak := curve[0]
	worst := 0.0
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		dd := v/peak - 1
		if dd < worst {
			worst = dd
		}
	}
	return worst
}

func encodeEquityCurve(prices *core.PriceTable, curve []float64) []byte {
	buf := make([]byte, 0, len(curve)*32)
	buf = append(buf, "time,equity\n"...)
	for i, v := range curve {
		ts := prices.Times[i]
		buf = append(buf, ts.Format("2006-01-02T15:04:05Z07:00")...)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		buf = append(buf, '\n')
	}
	return buf
}
