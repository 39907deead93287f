package quant

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

// monteCarloSeed pins the path generation so identical jobs produce identical
// artifacts (re-execution must overwrite with the same content).
const monteCarloSeed = 42

// runMonteCarlo simulates geometric Brownian motion paths calibrated from the
// first symbol's historical returns and reports distribution metrics of the
// terminal values.
func runMonteCarlo(p *model.MonteCarloParams, prices *core.PriceTable) (*core.ModelResult, error) {
	series, _ := prices.Column(prices.Symbols[0])
	if len(series) < 2 {
		return nil, &core.ModelError{Kind: string(model.JobKindMonteCarlo), Msg: "need at least 2 price points to calibrate returns"}
	}

	returns := simpleReturns(series)
	mu := stat.Mean(returns, nil)
	sigma := stat.StdDev(returns, nil)
	if math.IsNaN(sigma) || sigma == 0 {
		return nil, &core.ModelError{Kind: string(model.JobKindMonteCarlo), Msg: "historical returns have zero variance"}
	}

	muAnnual := mu * tradingDaysPerYear
	sigmaAnnual := sigma * math.Sqrt(tradingDaysPerYear)

	dt := 1.0 / float64(p.TimeSteps)
	drift := (muAnnual - 0.5*sigmaAnnual*sigmaAnnual) * dt
	diffusionScale := sigmaAnnual * math.Sqrt(dt)

	normal := distuv.Normal{
		Mu:    0,
		Sigma: 1,
		Src:   rand.New(rand.NewPCG(monteCarloSeed, 0)),
	}

	// paths[t][s]: value of simulation s at step t, starting at 1.0.
	paths := make([][]float64, p.TimeSteps+1)
	paths[0] = make([]float64, p.Simulations)
	for s := range paths[0] {
		paths[0][s] = 1.0
	}
	for t := 1; t <= p.TimeSteps; t++ {
		row := make([]float64, p.Simulations)
		for s := range row {
			row[s] = paths[t-1][s] * math.Exp(drift+diffusionScale*normal.Rand())
		}
		paths[t] = row
	}

	final := make([]float64, p.Simulations)
	copy(final, paths[p.TimeSteps])
	sorted := make([]float64, len(final))
	copy(sorted, final)
	sort.Float64s(sorted)

	valueAtRisk := stat.Quantile(1-p.ConfidenceLevel, stat.Empirical, sorted, nil)

	// Sharpe over terminal values relative to the risk-free terminal value.
	rfTerminal := math.Exp(p.RiskFreeRate)
	excess := make([]float64, len(final))
	for i, v := range final {
		excess[i] = v - rfTerminal
	}
	excessStd := stat.StdDev(excess, nil)
	sharpe := 0.0
	if excessStd > 0 {
		sharpe = stat.Mean(excess, nil) / excessStd
	}

	metrics := map[string]float64{
		"mean":         stat.Mean(final, nil),
		"std":          stat.StdDev(final, nil),
		"p5":           stat.Quantile(0.05, stat.Empirical, sorted, nil),
		"p50":          stat.Quantile(0.50, stat.Empirical, sorted, nil),
		"p95":          stat.Quantile(0.95, stat.Empirical, sorted, nil),
		"var":          valueAtRisk,
		"sharpe_ratio": sharpe,
		"simulations":  float64(p.Simulations),
		"time_steps":   float64(p.TimeSteps),
	}

	pathsCSV, err := encodePaths(paths)
	if err != nil {
		return nil, &core.ModelError{Kind: string(model.JobKindMonteCarlo), Msg: err.Error()}
	}

	return &core.ModelResult{
		Metrics: metrics,
		Tables:  []core.Table{{Name: "simulation_paths", CSV: pathsCSV}},
	}, nil
}

func simpleReturns(prices []float64) []float64 {
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, prices[i]/prices[i-1]-1)
	}
	return out
}

// encodePaths writes one row per time step, one column per simulation.
func encodePaths(paths [][]float64) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, len(paths[0])+1)
	header[0] = "step"
	for s := range paths[0] {
		header[s+1] = fmt.Sprintf("sim_%d", s)
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write paths header: %w", err)
	}
	for t, row := range paths {
		rec := make([]string, len(row)+1)
		rec[0] = strconv.Itoa(t)
		for s, v := range row {
			rec[s+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("write paths row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush paths csv: %w", err)
	}
	return buf.Bytes(), nil
}
