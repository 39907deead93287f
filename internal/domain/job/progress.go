package job

import (
	"time"

	"github.com/quantlab/quantjobs/internal/domain/model"
)

// Per-kind base execution cost for the duration heuristic, in seconds.
// Data loading adds a bounded per-symbol cost on top.
const (
	perSymbolCost    = 2 * time.Second
	maxPerSymbolCost = 60 * time.Second

	// progressCap keeps a running job from ever reporting completion
	// before the terminal transition; the heuristic is only an estimate.
	progressCap = 0.9
)

// EstimateDuration returns the heuristic execution duration for a job of the
// given kind over numSymbols symbols.
func EstimateDuration(kind model.JobKind, numSymbols int) time.Duration {
	var base time.Duration
	switch kind {
	case model.JobKindMonteCarlo:
		base = 30 * time.Second
	case model.JobKindMarkowitz:
		base = 15 * time.Second
	case model.JobKindBlackScholes:
		base = 10 * time.Second
	case model.JobKindBacktest:
		base = 45 * time.Second
	default:
		base = 30 * time.Second
	}

	symbolCost := time.Duration(numSymbols) * perSymbolCost
	if symbolCost > maxPerSymbolCost {
		symbolCost = maxPerSymbolCost
	}
	return base + symbolCost
}

// Progress derives a 0..1 progress value from the record's state and elapsed
// time. It returns nil for cancelled jobs, where progress has no meaning.
func Progress(rec *model.JobRecord, now time.Time) *float64 {
	switch rec.Status {
	case model.JobStatusQueued:
		return ptr(0.0)
	case model.JobStatusCompleted:
		return ptr(1.0)
	case model.JobStatusFailed:
		return ptr(0.0)
	case model.JobStatusCancelled:
		return nil
	case model.JobStatusRunning:
		if rec.StartedAt == nil {
			return ptr(0.5)
		}
		estimate := EstimateDuration(rec.Descriptor.Kind, len(rec.Descriptor.Symbols))
		elapsed := now.Sub(*rec.StartedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		p := elapsed.Seconds() / estimate.Seconds()
		if p > progressCap {
			p = progressCap
		}
		return ptr(p)
	default:
		return nil
	}
}

func ptr(f float64) *float64 { return &f }
