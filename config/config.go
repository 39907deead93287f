// Package config holds all environment-driven application configuration.
// Values are loaded with github.com/caarlos0/env and sanitized with
// guardrails after loading.
package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files:
//   - database.go: Postgres and Redis configuration
//   - services.go: service mode, dispatch and worker configuration
//   - artifacts.go: artifact bucket configuration
//   - marketdata.go: market data vendor configuration
type AppConfig struct {
	// IsDev controls development mode behavior (human-readable logs,
	// local artifact bucket). Set DEV=true for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// DispatchSecret signs dispatch envelopes; workers reject deliveries
	// that do not verify against it. Required outside dev mode.
	DispatchSecret string `env:"DISPATCH_SECRET"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// Services selects which services this process runs, comma-delimited.
	Services string `env:"SERVICES" envDefault:"api"`

	Dispatch   DispatchConfig
	Worker     WorkerConfig
	Artifacts  ArtifactsConfig
	MarketData MarketDataConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment
// variables.
func (c *AppConfig) Sanitize() {
	c.Dispatch.Sanitize()
	c.Worker.Sanitize()
	c.Artifacts.Sanitize(c.IsDev)
	c.MarketData.Sanitize()
	c.detectDevMode()
}

// detectDevMode checks APP_ENV as a fallback for the DEV flag.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services
// field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsAPIEnabled returns true if the submission/query API service is enabled.
func (c *AppConfig) IsAPIEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeAPI]
}

// IsWorkerEnabled returns true if the worker service is enabled.
func (c *AppConfig) IsWorkerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeWorker]
}
