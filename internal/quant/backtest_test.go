package quant

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/quantjobs/internal/domain/model"
	"github.com/quantlab/quantjobs/internal/testutil"
)

func TestBacktest_EqualWeightMetrics(t *testing.T) {
	runner := NewRunner(nil)
	params := &model.BacktestParams{
		Strategy:           "equal_weight",
		RebalanceFrequency: "monthly",
		TransactionCosts:   0.001,
		Slippage:           0.0005,
	}

	result, err := runner.Execute(context.Background(), model.JobKindBacktest,
		params, testutil.NewPriceTable(120, "AAPL", "MSFT"))
	require.NoError(t, err)

	metrics := result.Metrics
	for _, key := range []string{
		"total_return", "annualized_return", "volatility", "sharpe_ratio", "max_drawdown",
	} {
		assert.Contains(t, metrics, key)
	}
	assert.Equal(t, 119.0, metrics["periods"])
	assert.LessOrEqual(t, metrics["max_drawdown"], 0.0)
	assert.GreaterOrEqual(t, metrics["volatility"], 0.0)
}

func TestBacktest_EquityCurveTable(t *testing.T) {
	runner := NewRunner(nil)
	params := &model.BacktestParams{Strategy: "buy_and_hold", RebalanceFrequency: "monthly"}

	result, err := runner.Execute(context.Background(), model.JobKindBacktest,
		params, testutil.NewPriceTable(60, "AAPL", "MSFT"))
	require.NoError(t, err)

	require.Len(t, result.Tables, 1)
	assert.Equal(t, "equity_curve", result.Tables[0].Name)

	lines := strings.Split(strings.TrimSpace(string(result.Tables[0].CSV)), "\n")
	// Header plus one equity value per observation.
	assert.Len(t, lines, 61)
	assert.Equal(t, "time,equity", lines[0])
}

func TestBacktest_CostsReduceReturn(t *testing.T) {
	runner := NewRunner(nil)
	prices := testutil.NewPriceTable(120, "AAPL", "MSFT", "GOOG")

	free, err := runner.Execute(context.Background(), model.JobKindBacktest,
		&model.BacktestParams{Strategy: "equal_weight", RebalanceFrequency: "daily"}, prices)
	require.NoError(t, err)

	costly, err := runner.Execute(context.Background(), model.JobKindBacktest,
		&model.BacktestParams{
			Strategy:           "equal_weight",
			RebalanceFrequency: "daily",
			TransactionCosts:   0.01,
			Slippage:           0.005,
		}, prices)
	require.NoError(t, err)

	assert.LessOrEqual(t, costly.Metrics["total_return"], free.Metrics["total_return"])
}

func TestBacktest_UnknownStrategyRejected(t *testing.T) {
	runner := NewRunner(nil)
	params := &model.BacktestParams{Strategy: "momentum", RebalanceFrequency: "monthly"}

	_, err := runner.Execute(context.Background(), model.JobKindBacktest,
		params, testutil.NewPriceTable(60, "AAPL"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestBacktest_UnknownRebalanceFrequencyRejected(t *testing.T) {
	runner := NewRunner(nil)
	params := &model.BacktestParams{Strategy: "equal_weight", RebalanceFrequency: "hourly"}

	_, err := runner.Execute(context.Background(), model.JobKindBacktest,
		params, testutil.NewPriceTable(60, "AAPL"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rebalance frequency")
}
