package quant

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/quantjobs/internal/domain/model"
	"github.com/quantlab/quantjobs/internal/testutil"
)

func TestMarkowitz_WeightsRespectConstraints(t *testing.T) {
	runner := NewRunner(nil)
	params := &model.MarkowitzParams{
		RiskAversion:     1.0,
		MinWeight:        0.05,
		MaxWeight:        0.6,
		CovarianceMethod: "sample",
	}

	prices := testutil.NewPriceTable(120, "AAPL", "MSFT", "GOOG")
	result, err := runner.Execute(context.Background(), model.JobKindMarkowitz, params, prices)
	require.NoError(t, err)

	require.Len(t, result.Tables, 1)
	assert.Equal(t, "portfolio_weights", result.Tables[0].Name)

	lines := strings.Split(strings.TrimSpace(string(result.Tables[0].CSV)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "symbol,weight", lines[0])

	var sum float64
	for _, line := range lines[1:] {
		parts := strings.Split(line, ",")
		require.Len(t, parts, 2)
		w, err := strconv.ParseFloat(parts[1], 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, w, 0.05-1e-6)
		assert.LessOrEqual(t, w, 0.6+1e-6)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestMarkowitz_MetricsShape(t *testing.T) {
	runner := NewRunner(nil)
	params := &model.MarkowitzParams{RiskAversion: 2.0, MaxWeight: 0.8, CovarianceMethod: "ledoit_wolf"}

	result, err := runner.Execute(context.Background(), model.JobKindMarkowitz,
		params, testutil.NewPriceTable(120, "AAPL", "MSFT"))
	require.NoError(t, err)

	metrics := result.Metrics
	for _, key := range []string{
		"portfolio_return", "portfolio_volatility", "portfolio_variance", "sharpe_ratio",
	} {
		assert.Contains(t, metrics, key)
	}
	assert.GreaterOrEqual(t, metrics["portfolio_variance"], 0.0)
	assert.InDelta(t, metrics["portfolio_volatility"]*metrics["portfolio_volatility"],
		metrics["portfolio_variance"], 1e-9)
	assert.Equal(t, 2.0, metrics["risk_aversion"])
}

func TestMarkowitz_RequiresTwoSymbols(t *testing.T) {
	runner := NewRunner(nil)
	params := &model.MarkowitzParams{RiskAversion: 1.0, MaxWeight: 1.0, CovarianceMethod: "sample"}

	_, err := runner.Execute(context.Background(), model.JobKindMarkowitz,
		params, testutil.NewPriceTable(60, "AAPL"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2 symbols")
}

func TestMarkowitz_InfeasibleBounds(t *testing.T) {
	runner := NewRunner(nil)
	params := &model.MarkowitzParams{RiskAversion: 1.0, MaxWeight: 0.3, CovarianceMethod: "sample"}

	// Two assets capped at 0.3 each cannot reach full investment.
	_, err := runner.Execute(context.Background(), model.JobKindMarkowitz,
		params, testutil.NewPriceTable(60, "AAPL", "MSFT"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "infeasible bounds")
}
