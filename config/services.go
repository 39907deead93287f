package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeAPI runs the submission and query services.
	ServiceModeAPI ServiceMode = "api"
	// ServiceModeWorker runs the dispatch consumer and job pipeline.
	ServiceModeWorker ServiceMode = "worker"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeAPI, ServiceModeWorker}
}

// ParseServices parses a comma-delimited string of service names and returns
// the enabled services. It validates that all service names are valid and
// returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeAPI, ServiceModeWorker:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: api, worker)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// DispatchConfig contains dispatch stream configuration shared by the
// publisher and the consumer.
type DispatchConfig struct {
	// Stream is the Redis stream key dispatch messages are appended to.
	Stream string `env:"DISPATCH_STREAM" envDefault:"quantjobs:dispatch"`

	// Group is the consumer group workers read from.
	Group string `env:"DISPATCH_GROUP" envDefault:"workers"`

	// ClaimMinIdle is how long a pending delivery may sit unacked before
	// another consumer claims it.
	ClaimMinIdle time.Duration `env:"DISPATCH_CLAIM_MIN_IDLE" envDefault:"1m"`

	// ClaimInterval is how often each consumer scans for stale deliveries.
	ClaimInterval time.Duration `env:"DISPATCH_CLAIM_INTERVAL" envDefault:"30s"`
}

// Sanitize applies guardrails to dispatch configuration values.
func (d *DispatchConfig) Sanitize() {
	if d.Stream == "" {
		d.Stream = "quantjobs:dispatch"
	}
	if d.Group == "" {
		d.Group = "workers"
	}
	if d.ClaimMinIdle < 10*time.Second {
		d.ClaimMinIdle = 10 * time.Second
	}
	if d.ClaimInterval < time.Second {
		d.ClaimInterval = time.Second
	}
}

// WorkerConfig contains worker service configuration.
type WorkerConfig struct {
	// Concurrency is the number of concurrent deliveries per process.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"4"`

	// Consumer is this process's consumer name within the group. Empty
	// means derive one from the hostname and pid.
	Consumer string `env:"WORKER_CONSUMER" envDefault:""`

	// LoadTimeout bounds the market data stage of one job.
	LoadTimeout time.Duration `env:"WORKER_LOAD_TIMEOUT" envDefault:"2m"`

	// ModelTimeout bounds the model execution stage of one job.
	ModelTimeout time.Duration `env:"WORKER_MODEL_TIMEOUT" envDefault:"10m"`

	// WriteTimeout bounds the artifact write stage of one job.
	WriteTimeout time.Duration `env:"WORKER_WRITE_TIMEOUT" envDefault:"1m"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.Concurrency > 64 {
		w.Concurrency = 64
	}
}
