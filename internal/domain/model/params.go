package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Params is the closed set of kind-specific model parameters. Each variant
// carries its own strongly-typed struct; DecodeParams selects the variant
// from the job kind, so validation is an exhaustive match rather than
// runtime type inspection.
type Params interface {
	Kind() JobKind
	Validate() error
}

// MonteCarloParams configures a Monte Carlo GBM simulation.
type MonteCarloParams struct {
	Simulations     int     `json:"simulations"`
	TimeSteps       int     `json:"time_steps"`
	RiskFreeRate    float64 `json:"risk_free_rate"`
	ConfidenceLevel float64 `json:"confidence_level"`
}

// Kind implements Params.
func (MonteCarloParams) Kind() JobKind { return JobKindMonteCarlo }

// Validate checks parameter ranges and applies defaults for zero values.
func (p *MonteCarloParams) Validate() error {
	if p.Simulations == 0 {
		p.Simulations = 10000
	}
	if p.TimeSteps == 0 {
		p.TimeSteps = 252
	}
	if p.ConfidenceLevel == 0 {
		p.ConfidenceLevel = 0.95
	}
	switch {
	case p.Simulations < 1000 || p.Simulations > 100000:
		return &ValidationError{Field: "params.simulations", Msg: "must be between 1000 and 100000"}
	case p.TimeSteps < 30 || p.TimeSteps > 1000:
		return &ValidationError{Field: "params.time_steps", Msg: "must be between 30 and 1000"}
	case p.RiskFreeRate < 0 || p.RiskFreeRate > 0.5:
		return &ValidationError{Field: "params.risk_free_rate", Msg: "must be between 0 and 0.5"}
	case p.ConfidenceLevel < 0.8 || p.ConfidenceLevel > 0.99:
		return &ValidationError{Field: "params.confidence_level", Msg: "must be between 0.8 and 0.99"}
	}
	return nil
}

// MarkowitzParams configures a Markowitz portfolio optimization.
type MarkowitzParams struct {
	TargetReturn     *float64 `json:"target_return,omitempty"`
	RiskAversion     float64  `json:"risk_aversion"`
	MaxWeight        float64  `json:"max_weight"`
	MinWeight        float64  `json:"min_weight"`
	CovarianceMethod string   `json:"covariance_method"`
}

// Kind implements Params.
func (MarkowitzParams) Kind() JobKind { return JobKindMarkowitz }

// Validate checks parameter ranges and applies defaults for zero values.
func (p *MarkowitzParams) Validate() error {
	if p.RiskAversion == 0 {
		p.RiskAversion = 1.0
	}
	if p.MaxWeight == 0 {
		p.MaxWeight = 0.3
	}
	if p.CovarianceMethod == "" {
		p.CovarianceMethod = "ledoit_wolf"
	}
	switch {
	case p.TargetReturn != nil && (*p.TargetReturn < 0 || *p.TargetReturn > 1):
		return &ValidationError{Field: "params.target_return", Msg: "must be between 0 and 1"}
	case p.RiskAversion < 0.1 || p.RiskAversion > 10:
		return &ValidationError{Field: "params.risk_aversion", Msg: "must be between 0.1 and 10"}
	case p.MaxWeight < 0.1 || p.MaxWeight > 1:
		return &ValidationError{Field: "params.max_weight", Msg: "must be between 0.1 and 1"}
	case p.MinWeight < 0 || p.MinWeight > 0.1:
		return &ValidationError{Field: "params.min_weight", Msg: "must be between 0 and 0.1"}
	case p.CovarianceMethod != "ledoit_wolf" && p.CovarianceMethod != "sample":
		return &ValidationError{Field: "params.covariance_method", Msg: "must be ledoit_wolf or sample"}
	}
	return nil
}

// BlackScholesParams configures Black-Scholes option pricing.
type BlackScholesParams struct {
	OptionType   string   `json:"option_type"`
	StrikePrice  float64  `json:"strike_price"`
	TimeToExpiry float64  `json:"time_to_expiry"`
	RiskFreeRate float64  `json:"risk_free_rate"`
	// Volatility is annualized; when nil it is estimated from the loaded
	// price history.
	Volatility *float64 `json:"volatility,omitempty"`
}

// Kind implements Params.
func (BlackScholesParams) Kind() JobKind { return JobKindBlackScholes }

// Validate checks parameter ranges and applies defaults for zero values.
func (p *BlackScholesParams) Validate() error {
	switch {
	case p.OptionType != "call" && p.OptionType != "put":
		return &ValidationError{Field: "params.option_type", Msg: "must be call or put"}
	case p.StrikePrice <= 0:
		return &ValidationError{Field: "params.strike_price", Msg: "must be greater than 0"}
	case p.TimeToExpiry <= 0 || p.TimeToExpiry > 10:
		return &ValidationError{Field: "params.time_to_expiry", Msg: "must be in (0, 10] years"}
	case p.RiskFreeRate < 0 || p.RiskFreeRate > 0.5:
		return &ValidationError{Field: "params.risk_free_rate", Msg: "must be between 0 and 0.5"}
	case p.Volatility != nil && (*p.Volatility < 0.01 || *p.Volatility > 5):
		return &ValidationError{Field: "params.volatility", Msg: "must be between 0.01 and 5"}
	}
	return nil
}

// BacktestParams configures a strategy backtest.
type BacktestParams struct {
	Strategy           string  `json:"strategy"`
	RebalanceFrequency string  `json:"rebalance_frequency"`
	TransactionCosts   float64 `json:"transaction_costs"`
	Slippage           float64 `json:"slippage"`
}

// Kind implements Params.
func (BacktestParams) Kind() JobKind { return JobKindBacktest }

// Validate checks parameter ranges and applies defaults for zero values.
func (p *BacktestParams) Validate() error {
	if p.RebalanceFrequency == "" {
		p.RebalanceFrequency = "monthly"
	}
	switch {
	case p.Strategy == "":
		return &ValidationError{Field: "params.strategy", Msg: "is required"}
	case p.TransactionCosts < 0 || p.TransactionCosts > 0.1:
		return &ValidationError{Field: "params.transaction_costs", Msg: "must be between 0 and 0.1"}
	case p.Slippage < 0 || p.Slippage > 0.01:
		return &ValidationError{Field: "params.slippage", Msg: "must be between 0 and 0.01"}
	}
	return nil
}

// DecodeParams decodes the raw params payload into the variant matching kind.
// The switch is exhaustive over the closed kind set.
func DecodeParams(kind JobKind, raw json.RawMessage) (Params, error) {
	if len(raw) == 0 {
		return nil, &ValidationError{Field: "params", Msg: "is required"}
	}
	var p Params
	switch kind {
	case JobKindMonteCarlo:
		p = &MonteCarloParams{}
	case JobKindMarkowitz:
		p = &MarkowitzParams{}
	case JobKindBlackScholes:
		p = &BlackScholesParams{}
	case JobKindBacktest:
		p = &BacktestParams{}
	default:
		return nil, &ValidationError{Field: "kind", Msg: fmt.Sprintf("unsupported job kind %q", kind)}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, &ValidationError{Field: "params", Msg: fmt.Sprintf("malformed for kind %s: %v", kind, err)}
	}
	return p, nil
}
