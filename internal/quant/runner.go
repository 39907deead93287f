// Package quant implements the financial models executed by the worker tier:
// Monte Carlo GBM simulation, Markowitz portfolio optimization, Black-Scholes
// option pricing and strategy backtesting. Each model consumes the loaded
// price table and produces a metrics map plus auxiliary tables for artifact
// storage.
package quant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

// tradingDaysPerYear is the annualization factor for daily bars.
const tradingDaysPerYear = 252

// Runner dispatches model execution by job kind.
type Runner struct {
	logger *slog.Logger
}

// NewRunner constructs a model runner.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger.With("component", "model_runner")}
}

// Execute runs the model selected by kind. Parameter/state mismatches and
// numeric failures surface as *core.ModelError with the message preserved
// verbatim for user-facing diagnostics.
func (r *Runner) Execute(
	ctx context.Context,
	kind model.JobKind,
	params model.Params,
	prices *core.PriceTable,
) (*core.ModelResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &core.ModelError{Kind: string(kind), Msg: err.Error()}
	}
	if prices == nil {
		return nil, &core.ModelError{Kind: string(kind), Msg: "price table is required"}
	}
	if err := prices.Validate(); err != nil {
		return nil, &core.ModelError{Kind: string(kind), Msg: err.Error()}
	}

	var (
		result *core.ModelResult
		err    error
	)
	switch kind {
	case model.JobKindMonteCarlo:
		p, ok := params.(*model.MonteCarloParams)
		if !ok {
			return nil, paramMismatch(kind, params)
		}
		result, err = runMonteCarlo(p, prices)
	case model.JobKindMarkowitz:
		p, ok := params.(*model.MarkowitzParams)
		if !ok {
			return nil, paramMismatch(kind, params)
		}
		result, err = runMarkowitz(p, prices)
	case model.JobKindBlackScholes:
		p, ok := params.(*model.BlackScholesParams)
		if !ok {
			return nil, paramMismatch(kind, params)
		}
		result, err = runBlackScholes(p, prices)
	case model.JobKindBacktest:
		p, ok := params.(*model.BacktestParams)
		if !ok {
			return nil, paramMismatch(kind, params)
		}
		result, err = runBacktest(p, prices)
	default:
		return nil, &core.ModelError{Kind: string(kind), Msg: fmt.Sprintf("unsupported job kind %q", kind)}
	}
	if err != nil {
		return nil, err
	}

	r.logger.DebugContext(ctx, "model executed",
		"kind", kind, "metrics", len(result.Metrics), "tables", len(result.Tables))
	return result, nil
}

func paramMismatch(kind model.JobKind, params model.Params) error {
	return &core.ModelError{
		Kind: string(kind),
		Msg:  fmt.Sprintf("params do not match job kind (got %T)", params),
	}
}
