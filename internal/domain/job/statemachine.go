// Package job holds the pure lifecycle policy for job records: the state
// machine that gates every mutation and the progress estimation heuristic.
package job

import (
	"fmt"

	"github.com/quantlab/quantjobs/internal/domain/model"
)

// InvalidTransitionError is returned when a requested state change violates
// the lifecycle rules.
type InvalidTransitionError struct {
	From model.JobStatus
	To   model.JobStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

// Change describes one requested state mutation. ResultRefs must be set when
// entering completed; Error must be non-empty when entering failed.
type Change struct {
	To         model.JobStatus
	ResultRefs *model.ResultRefs
	Error      string
}

// Decision is the state machine's verdict on a Change. When Noop is true the
// record is already in the requested state with an equivalent payload and the
// write must be skipped; this is what makes redelivered finalizations safe.
type Decision struct {
	Noop          bool
	SetStartedAt  bool
	SetFinishedAt bool
}

// Evaluate applies the lifecycle rules to a requested change against the
// record's current state. It never mutates the record.
//
// Accepted sequences are prefixes of queued -> running -> {completed|failed}
// or queued -> cancelled; everything else is an *InvalidTransitionError,
// except idempotent re-entry into running and same-payload re-writes of a
// terminal completed/failed state, which collapse to no-ops.
func Evaluate(rec *model.JobRecord, ch Change) (Decision, error) {
	if !ch.To.Valid() {
		return Decision{}, &InvalidTransitionError{From: rec.Status, To: ch.To}
	}

	switch ch.To {
	case model.JobStatusRunning:
		return evaluateRunning(rec)
	case model.JobStatusCancelled:
		if rec.Status != model.JobStatusQueued {
			return Decision{}, &InvalidTransitionError{From: rec.Status, To: ch.To}
		}
		return Decision{}, nil
	case model.JobStatusCompleted:
		return evaluateTerminal(rec, ch, func() bool {
			return rec.ResultRefs.Equivalent(ch.ResultRefs)
		})
	case model.JobStatusFailed:
		return evaluateTerminal(rec, ch, func() bool {
			return rec.Error != nil && *rec.Error == ch.Error
		})
	case model.JobStatusQueued:
		// queued is the initial state only; nothing transitions back into it.
		return Decision{}, &InvalidTransitionError{From: rec.Status, To: ch.To}
	default:
		return Decision{}, &InvalidTransitionError{From: rec.Status, To: ch.To}
	}
}

func evaluateRunning(rec *model.JobRecord) (Decision, error) {
	switch rec.Status {
	case model.JobStatusQueued:
		return Decision{SetStartedAt: rec.StartedAt == nil}, nil
	case model.JobStatusRunning:
		return Decision{Noop: true}, nil
	default:
		return Decision{}, &InvalidTransitionError{From: rec.Status, To: model.JobStatusRunning}
	}
}

// evaluateTerminal handles entry into completed or failed. Only running
// records may finalize; a record already in the target state accepts an
// equivalent payload as a no-op to absorb broker redeliveries.
func evaluateTerminal(rec *model.JobRecord, ch Change, equivalent func() bool) (Decision, error) {
	if ch.To == model.JobStatusCompleted && ch.ResultRefs == nil {
		return Decision{}, &InvalidTransitionError{From: rec.Status, To: ch.To}
	}
	if ch.To == model.JobStatusFailed && ch.Error == "" {
		return Decision{}, &InvalidTransitionError{From: rec.Status, To: ch.To}
	}

	switch rec.Status {
	case model.JobStatusRunning:
		return Decision{SetFinishedAt: rec.FinishedAt == nil}, nil
	case ch.To:
		if equivalent() {
			return Decision{Noop: true}, nil
		}
		return Decision{}, &InvalidTransitionError{From: rec.Status, To: ch.To}
	default:
		return Decision{}, &InvalidTransitionError{From: rec.Status, To: ch.To}
	}
}
