package config

import "time"

// MarketDataConfig contains market data vendor configuration.
type MarketDataConfig struct {
	// EODHDToken authenticates against the EODHD API.
	EODHDToken string `env:"MARKETDATA_EODHD_TOKEN" envDefault:""`

	// TwelveDataKey authenticates against the Twelve Data API.
	TwelveDataKey string `env:"MARKETDATA_TWELVEDATA_KEY" envDefault:""`

	// Timeout bounds one vendor HTTP request.
	Timeout time.Duration `env:"MARKETDATA_TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to market data configuration values.
func (m *MarketDataConfig) Sanitize() {
	if m.Timeout < time.Second {
		m.Timeout = time.Second
	}
	if m.Timeout > 5*time.Minute {
		m.Timeout = 5 * time.Minute
	}
}
