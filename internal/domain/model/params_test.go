package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeParams_AppliesDefaults(t *testing.T) {
	p, err := DecodeParams(JobKindMonteCarlo, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	mc := p.(*MonteCarloParams)
	assert.Equal(t, 10000, mc.Simulations)
	assert.Equal(t, 252, mc.TimeSteps)
	assert.Equal(t, 0.95, mc.ConfidenceLevel)
}

func TestDecodeParams_RejectsUnknownFields(t *testing.T) {
	_, err := DecodeParams(JobKindMonteCarlo, json.RawMessage(`{"simulatons": 5000}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "params", verr.Field)
}

func TestDecodeParams_RequiresPayload(t *testing.T) {
	_, err := DecodeParams(JobKindBacktest, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestMonteCarloParams_Ranges(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"simulations too low", `{"simulations": 500}`, "params.simulations"},
		{"simulations too high", `{"simulations": 200000}`, "params.simulations"},
		{"time steps too low", `{"time_steps": 10}`, "params.time_steps"},
		{"negative risk free rate", `{"risk_free_rate": -0.1}`, "params.risk_free_rate"},
		{"confidence out of range", `{"confidence_level": 0.5}`, "params.confidence_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodeParams(JobKindMonteCarlo, json.RawMessage(tt.raw))
			require.NoError(t, err)

			var verr *ValidationError
			require.ErrorAs(t, p.Validate(), &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestMarkowitzParams_DefaultsAndRanges(t *testing.T) {
	p, err := DecodeParams(JobKindMarkowitz, json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	mk := p.(*MarkowitzParams)
	assert.Equal(t, 1.0, mk.RiskAversion)
	assert.Equal(t, 0.3, mk.MaxWeight)
	assert.Equal(t, "ledoit_wolf", mk.CovarianceMethod)

	p, err = DecodeParams(JobKindMarkowitz, json.RawMessage(`{"covariance_method": "shrunk"}`))
	require.NoError(t, err)
	var verr *ValidationError
	require.ErrorAs(t, p.Validate(), &verr)
	assert.Equal(t, "params.covariance_method", verr.Field)

	p, err = DecodeParams(JobKindMarkowitz, json.RawMessage(`{"target_return": 1.5}`))
	require.NoError(t, err)
	require.ErrorAs(t, p.Validate(), &verr)
	assert.Equal(t, "params.target_return", verr.Field)
}

func TestBlackScholesParams_Validation(t *testing.T) {
	p, err := DecodeParams(JobKindBlackScholes, json.RawMessage(
		`{"option_type": "call", "strike_price": 100, "time_to_expiry": 0.5}`))
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"bad option type", `{"option_type": "straddle", "strike_price": 100, "time_to_expiry": 1}`, "params.option_type"},
		{"zero strike", `{"option_type": "put", "strike_price": 0, "time_to_expiry": 1}`, "params.strike_price"},
		{"expiry too long", `{"option_type": "put", "strike_price": 100, "time_to_expiry": 20}`, "params.time_to_expiry"},
		{"volatility out of range", `{"option_type": "call", "strike_price": 100, "time_to_expiry": 1, "volatility": 9}`, "params.volatility"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodeParams(JobKindBlackScholes, json.RawMessage(tt.raw))
			require.NoError(t, err)

			var verr *ValidationError
			require.ErrorAs(t, p.Validate(), &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestBacktestParams_DefaultsAndRanges(t *testing.T) {
	p, err := DecodeParams(JobKindBacktest, json.RawMessage(`{"strategy": "equal_weight"}`))
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	bt := p.(*BacktestParams)
	assert.Equal(t, "monthly", bt.RebalanceFrequency)

	p, err = DecodeParams(JobKindBacktest, json.RawMessage(`{}`))
	require.NoError(t, err)
	var verr *ValidationError
	require.ErrorAs(t, p.Validate(), &verr)
	assert.Equal(t, "params.strategy", verr.Field)
}
