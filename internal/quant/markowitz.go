package quant

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

const (
	markowitzIterations = 2000
	markowitzRiskFree   = 0.02
)

// runMarkowitz finds minimum-variance weights with a risk-aversion-weighted
// return term, subject to full investment and per-asset weight bounds.
func runMarkowitz(p *model.MarkowitzParams, prices *core.PriceTable) (*core.ModelResult, error) {
	n := len(prices.Symbols)
	if n < 2 {
		return nil, &core.ModelError{Kind: string(model.JobKindMarkowitz), Msg: "portfolio optimization requires at least 2 symbols"}
	}
	if float64(n)*p.MaxWeight < 1 {
		return nil, &core.ModelError{
			Kind: string(model.JobKindMarkowitz),
			Msg:  fmt.Sprintf("infeasible bounds: %d assets with max_weight %.2f cannot sum to 1", n, p.MaxWeight),
		}
	}
	if float64(n)*p.MinWeight > 1 {
		return nil, &core.ModelError{
			Kind: string(model.JobKindMarkowitz),
			Msg:  fmt.Sprintf("infeasible bounds: %d assets with min_weight %.2f exceed full investment", n, p.MinWeight),
		}
	}

	returns := prices.Returns()
	if len(returns) < 2 {
		return nil, &core.ModelError{Kind: string(model.JobKindMarkowitz), Msg: "need at least 3 price points to estimate covariance"}
	}

	expected := expectedAnnualReturns(returns)
	cov := covarianceMatrix(returns, p.CovarianceMethod)

	weights := optimizeWeights(expected, cov, p)

	portReturn := floats.Dot(expected, weights)
	portVariance := quadraticForm(cov, weights)
	portVol := math.Sqrt(portVariance)
	sharpe := 0.0
	if portVol > 0 {
		sharpe = (portReturn - markowitzRiskFree) / portVol
	}

	metrics := map[string]float64{
		"portfolio_return":     portReturn,
		"portfolio_volatility": portVol,
		"portfolio_variance":   portVariance,
		"sharpe_ratio":         sharpe,
		"risk_aversion":        p.RiskAversion,
	}

	weightsCSV, err := encodeWeights(prices.Symbols, weights)
	if err != nil {
		return nil, &core.ModelError{Kind: string(model.JobKindMarkowitz), Msg: err.Error()}
	}

	return &core.ModelResult{
		Metrics: metrics,
		Tables:  []core.Table{{Name: "portfolio_weights", CSV: weightsCSV}},
	}, nil
}

func expectedAnnualReturns(returns [][]float64) []float64 {
	n := len(returns[0])
	out := make([]float64, n)
	col := make([]float64, len(returns))
	for j := 0; j < n; j++ {
		for i, row := range returns {
			col[i] = row[j]
		}
		out[j] = stat.Mean(col, nil) * tradingDaysPerYear
	}
	return out
}

// covarianceMatrix estimates the annualized covariance of returns, optionally
// applying Ledoit-Wolf style shrinkage toward the scaled identity target.
func covarianceMatrix(returns [][]float64, method string) *mat.SymDense {
	rows, cols := len(returns), len(returns[0])
	data := mat.NewDense(rows, cols, nil)
	for i, row := range returns {
		data.SetRow(i, row)
	}

	cov := mat.NewSymDense(cols, nil)
	stat.CovarianceMatrix(cov, data, nil)
	for i := 0; i < cols; i++ {
		for j := i; j < cols; j++ {
			cov.SetSym(i, j, cov.At(i, j)*tradingDaysPerYear)
		}
	}

	if method != "ledoit_wolf" {
		return cov
	}
	return shrinkCovariance(cov, data, rows)
}

// shrinkCovariance applies shrinkage toward mu*I with intensity estimated
// from the sampling variance of the covariance entries.
func shrinkCovariance(cov *mat.SymDense, data *mat.Dense, obs int) *mat.SymDense {
	n := cov.SymmetricDim()

	var avgVar float64
	for i := 0; i < n; i++ {
		avgVar += cov.At(i, i)
	}
	avgVar /= float64(n)

	// Distance between the sample matrix and the shrinkage target.
	var gamma float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			target := 0.0
			if i == j {
				target = avgVar
			}
			d := cov.At(i, j) - target
			gamma += d * d
		}
	}
	if gamma == 0 {
		return cov
	}

	// Sampling variance of the covariance entries (pi-hat).
	col := make([]float64, obs)
	means := make([]float64, n)
	for j := 0; j < n; j++ {
		mat.Col(col, j, data)
		means[j] = stat.Mean(col, nil)
	}
	var pi float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum float64
			for t := 0; t < obs; t++ {
				d := (data.At(t, i)-means[i])*(data.At(t, j)-means[j])*tradingDaysPerYear - cov.At(i, j)
				sum += d * d
			}
			pi += sum / float64(obs)
		}
	}

	delta := pi / gamma / float64(obs)
	if delta < 0 {
		delta = 0
	}
	if delta > 1 {
		delta = 1
	}

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			target := 0.0
			if i == j {
				target = avgVar
			}
			out.SetSym(i, j, (1-delta)*cov.At(i, j)+delta*target)
		}
	}
	return out
}

// optimizeWeights runs projected gradient descent on
// f(w) = w'Σw - lambda*mu'w (+ target-return penalty), projecting each step
// onto the box-constrained simplex.
func optimizeWeights(expected []float64, cov *mat.SymDense, p *model.MarkowitzParams) []float64 {
	n := len(expected)
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	w = projectToBoundedSimplex(w, p.MinWeight, p.MaxWeight)

	// Step size from a cheap Lipschitz bound on the quadratic term.
	var trace float64
	for i := 0; i < n; i++ {
		trace += cov.At(i, i)
	}
	step := 1.0 / (2*trace + 1)

	const targetPenalty = 100.0
	grad := make([]float64, n)
	for iter := 0; iter < markowitzIterations; iter++ {
		for i := 0; i < n; i++ {
			var sigmaRow float64
			for j := 0; j < n; j++ {
				sigmaRow += cov.At(i, j) * w[j]
			}
			grad[i] = 2*sigmaRow - p.RiskAversion*expected[i]
		}
		if p.TargetReturn != nil {
			gap := floats.Dot(expected, w) - *p.TargetReturn
			for i := 0; i < n; i++ {
				grad[i] += 2 * targetPenalty * gap * expected[i]
			}
		}
		for i := 0; i < n; i++ {
			w[i] -= step * grad[i]
		}
		w = projectToBoundedSimplex(w, p.MinWeight, p.MaxWeight)
	}
	return w
}

// projectToBoundedSimplex projects v onto {w : sum(w)=1, lo<=w_i<=hi} by
// bisecting the shift tau in clip(v - tau).
func projectToBoundedSimplex(v []float64, lo, hi float64) []float64 {
	clipSum := func(tau float64) float64 {
		var sum float64
		for _, x := range v {
			sum += clamp(x-tau, lo, hi)
		}
		return sum
	}

	low, high := -1.0, 1.0
	for clipSum(low) < 1 {
		low -= 1
	}
	for clipSum(high) > 1 {
		high += 1
	}
	for range 100 {
		mid := (low + high) / 2
		if clipSum(mid) > 1 {
			low = mid
		} else {
			high = mid
		}
	}

	tau := (low + high) / 2
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = clamp(x-tau, lo, hi)
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func quadraticForm(cov *mat.SymDense, w []float64) float64 {
	n := len(w)
	var out float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out += w[i] * cov.At(i, j) * w[j]
		}
	}
	return out
}

// encodeWeights emits weights sorted descending, mirroring the result table
// shape consumers expect.
func encodeWeights(symbols []string, weights []float64) ([]byte, error) {
	type pair struct {
		symbol string
		weight float64
	}
	pairs := make([]pair, len(symbols))
	for i := range symbols {
		pairs[i] = pair{symbols[i], weights[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].weight > pairs[j].weight })

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"symbol", "weight"}); err != nil {
		return nil, fmt.Errorf("write weights header: %w", err)
	}
	for _, pr := range pairs {
		if err := w.Write([]string{pr.symbol, strconv.FormatFloat(pr.weight, 'g', -1, 64)}); err != nil {
			return nil, fmt.Errorf("write weights row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush weights csv: %w", err)
	}
	return buf.Bytes(), nil
}
