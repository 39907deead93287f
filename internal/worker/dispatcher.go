package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/dispatch"
	domainjob "github.com/quantlab/quantjobs/internal/domain/job"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

// DispatcherOptions groups dependencies for Dispatcher.
type DispatcherOptions struct {
	Store     core.JobStore
	Pipeline  *Pipeline
	Finalizer *Finalizer
	Secret    []byte // Required: shared envelope signing key
	Logger    *slog.Logger
}

// Dispatcher handles one dispatch delivery at a time: verify the envelope,
// claim the job, run the pipeline, finalize. Every outcome maps to an
// explicit Ack or Nack so redelivery behavior stays auditable.
type Dispatcher struct {
	store     core.JobStore
	pipeline  *Pipeline
	finalizer *Finalizer
	secret    []byte
	logger    *slog.Logger
}

// NewDispatcher constructs a new Dispatcher.
func NewDispatcher(opts DispatcherOptions) (*Dispatcher, error) {
	if opts.Store == nil {
		return nil, errors.New("JobStore is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("Pipeline is required")
	}
	if opts.Finalizer == nil {
		return nil, errors.New("Finalizer is required")
	}
	if len(opts.Secret) == 0 {
		return nil, errors.New("envelope secret is required")
	}
	if opts.Logger != nil {
		opts.Logger = opts.Logger.With("component", "dispatcher")
	}

	return &Dispatcher{
		store:     opts.Store,
		pipeline:  opts.Pipeline,
		finalizer: opts.Finalizer,
		secret:    opts.Secret,
		logger:    opts.Logger,
	}, nil
}

// MustNewDispatcher constructs a new Dispatcher and panics on error.
func MustNewDispatcher(opts DispatcherOptions) *Dispatcher {
	d, err := NewDispatcher(opts)
	if err != nil {
		panic(err)
	}
	return d
}

// OnDelivery implements core.DeliveryHandler.
//
// Ack means resolved: the job reached a terminal state, was already terminal,
// or the message is poison and retrying cannot help. Nack means the broker
// should redeliver: infrastructure faults where a later attempt can succeed.
// Because running->running and equivalent terminal re-writes are no-ops in
// the store, re-executing an acked-late delivery is harmless.
func (d *Dispatcher) OnDelivery(ctx context.Context, raw []byte) core.Disposition {
	payload, err := dispatch.Open(raw, d.secret)
	if err != nil {
		if d.logger != nil {
			d.logger.Error("envelope rejected", "error", fmt.Errorf("%w: %w", core.ErrUnauthorized, err))
		}
		return core.Nack
	}

	var msg model.DispatchMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return d.poison("undecodable dispatch payload", err)
	}
	if _, err := msg.Descriptor(); err != nil {
		return d.poison("invalid dispatch descriptor", err)
	}

	rec, err := d.store.Get(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return d.poison("dispatch for unknown job", err)
		}
		return d.retry("load job record", msg, err)
	}
	if rec.OwnerID != msg.OwnerID {
		return d.poison("dispatch owner mismatch", nil)
	}
	if rec.Status.Terminal() {
		if d.logger != nil {
			d.logger.Info("delivery for terminal job ignored",
				"job_id", rec.ID, "status", rec.Status)
		}
		return core.Ack
	}

	rec, err = d.store.Transition(ctx, rec.ID, domainjob.Change{To: model.JobStatusRunning})
	if err != nil {
		var invalid *domainjob.InvalidTransitionError
		if errors.As(err, &invalid) {
			// Raced with a cancel or a concurrent finalization.
			if d.logger != nil {
				d.logger.Info("job no longer runnable", "job_id", msg.JobID, "error", err)
			}
			return core.Ack
		}
		return d.retry("mark running", msg, err)
	}

	out, runErr := d.pipeline.Run(ctx, rec)
	if runErr != nil {
		if ctx.Err() != nil {
			// Shutdown or deadline mid-run; let the broker redeliver.
			return d.retry("pipeline interrupted", msg, runErr)
		}
		if _, err := d.finalizer.FinalizeFailure(ctx, rec.ID, failureReason(runErr)); err != nil {
			return d.retry("finalize failure", msg, err)
		}
		return core.Ack
	}

	if _, err := d.finalizer.FinalizeSuccess(ctx, rec, out); err != nil {
		return d.retry("finalize success", msg, err)
	}
	return core.Ack
}

func (d *Dispatcher) poison(msg string, err error) core.Disposition {
	if d.logger != nil {
		d.logger.Error(msg, "error", err)
	}
	return core.Ack
}

func (d *Dispatcher) retry(op string, msg model.DispatchMessage, err error) core.Disposition {
	if d.logger != nil {
		d.logger.Warn("delivery left for redelivery",
			"op", op, "job_id", msg.JobID, "error", err)
	}
	return core.Nack
}

// failureReason maps a pipeline error to the user-facing message recorded on
// the failed job. Domain failures keep their own message; anything else gets
// a generic prefix so internal details stay out of the record.
func failureReason(err error) string {
	var unavailable *core.DataUnavailableError
	if errors.As(err, &unavailable) {
		return unavailable.Error()
	}
	var modelErr *core.ModelError
	if errors.As(err, &modelErr) {
		return modelErr.Error()
	}
	var artifactErr *core.ArtifactWriteError
	if errors.As(err, &artifactErr) {
		return artifactErr.Error()
	}
	return fmt.Sprintf("job execution failed: %v", err)
}
