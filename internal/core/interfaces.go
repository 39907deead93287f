// Package core defines the collaborator boundaries of the job pipeline: the
// record store, the dispatch channel, and the worker-side DataSource, Model
// and ObjectStore capabilities. Implementations live under internal/data and
// internal/adapters; the service and worker layers depend only on these
// interfaces.
package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	domainjob "github.com/quantlab/quantjobs/internal/domain/job"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

// JobStore provides typed access to persisted job records. Every lifecycle
// mutation goes through Transition, which applies the state machine inside a
// per-record read-modify-write transaction.
type JobStore interface {
	// Create persists a new record. The record must be in queued state.
	Create(ctx context.Context, rec *model.JobRecord) error

	// Get returns the record by id, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*model.JobRecord, error)

	// List returns one page of an owner's records plus the total count.
	List(ctx context.Context, opts model.ListOptions) ([]*model.JobRecord, int, error)

	// Transition applies a state change under the lifecycle rules and
	// returns the updated record. A no-op (idempotent re-entry or
	// redundant terminal re-write) returns the current record unchanged.
	// Rejected changes return a *job.InvalidTransitionError.
	Transition(ctx context.Context, id uuid.UUID, ch domainjob.Change) (*model.JobRecord, error)
}

// DispatchPublisher publishes one dispatch message per submitted job onto the
// at-least-once delivery fabric.
type DispatchPublisher interface {
	Publish(ctx context.Context, msg model.DispatchMessage) error
}

// Disposition is the dispatcher's verdict on one delivery.
type Disposition int

const (
	// Ack marks the delivery as resolved; the broker must not redeliver.
	// Terminal outcomes and poison messages are both acked.
	Ack Disposition = iota
	// Nack leaves the delivery unresolved for broker-level redelivery.
	Nack
)

func (d Disposition) String() string {
	if d == Ack {
		return "ack"
	}
	return "nack"
}

// DeliveryHandler is the push contract between the dispatch channel and the
// worker tier: the channel invokes the handler once per delivery (including
// redeliveries) and acts on the returned disposition.
type DeliveryHandler interface {
	OnDelivery(ctx context.Context, raw []byte) Disposition
}

// LoadPricesRequest identifies one market-data retrieval.
type LoadPricesRequest struct {
	Symbols  []string
	Start    time.Time
	End      time.Time
	Interval model.DataInterval
	Vendor   model.DataVendor
	Adjusted bool
}

// DataSource retrieves historical prices as a wide table. Failures (vendor
// errors, transport errors, timeouts) surface as *DataUnavailableError.
type DataSource interface {
	LoadPrices(ctx context.Context, req LoadPricesRequest) (*PriceTable, error)
}

// Table is one auxiliary tabular output of a model run, already encoded for
// artifact storage.
type Table struct {
	Name string // artifact base name, e.g. "simulation_paths"
	CSV  []byte
}

// ModelResult is the outcome of one model execution.
type ModelResult struct {
	Metrics map[string]float64
	Tables  []Table
}

// ModelRunner executes the financial model selected by kind. Invalid input
// surfaces as *ModelError with the model's message preserved for user-facing
// diagnostics.
type ModelRunner interface {
	Execute(ctx context.Context, kind model.JobKind, params model.Params, prices *PriceTable) (*ModelResult, error)
}

// ObjectStore persists job artifacts and produces time-bounded read links.
// Artifacts are addressed as jobs/{jobID}/{name}; names are deterministic so
// re-execution overwrites rather than duplicates.
type ObjectStore interface {
	Write(ctx context.Context, jobID uuid.UUID, name, contentType string, data []byte) (locator string, err error)
	SignedURL(ctx context.Context, locator string, ttl time.Duration) (string, error)
}
