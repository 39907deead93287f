package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

// JobRecordBuilder provides a fluent interface for building JobRecord
// objects for testing.
type JobRecordBuilder struct {
	rec *model.JobRecord
}

// NewJobRecord creates a new JobRecordBuilder with sensible defaults: a
// queued Monte Carlo job over two symbols and one year of daily bars.
func NewJobRecord() *JobRecordBuilder {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return &JobRecordBuilder{
		rec: &model.JobRecord{
			ID:      uuid.New(),
			OwnerID: uuid.New(),
			Descriptor: model.Descriptor{
				Kind:     model.JobKindMonteCarlo,
				Symbols:  []string{"AAPL", "MSFT"},
				Start:    start,
				End:      start.AddDate(1, 0, 0),
				Interval: model.IntervalOneDay,
				Vendor:   model.VendorEODHD,
				Adjusted: true,
				Params:   &model.MonteCarloParams{Simulations: 1000, TimeSteps: 30, ConfidenceLevel: 0.95},
			},
			Status:    model.JobStatusQueued,
			CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

// WithID sets the record id.
func (b *JobRecordBuilder) WithID(id uuid.UUID) *JobRecordBuilder {
	b.rec.ID = id
	return b
}

// WithOwner sets the owner id.
func (b *JobRecordBuilder) WithOwner(id uuid.UUID) *JobRecordBuilder {
	b.rec.OwnerID = id
	return b
}

// WithKind sets the job kind and a matching default parameter set.
func (b *JobRecordBuilder) WithKind(kind model.JobKind) *JobRecordBuilder {
	b.rec.Descriptor.Kind = kind
	switch kind {
	case model.JobKindMonteCarlo:
		b.rec.Descriptor.Params = &model.MonteCarloParams{Simulations: 1000, TimeSteps: 30, ConfidenceLevel: 0.95}
	case model.JobKindMarkowitz:
		b.rec.Descriptor.Params = &model.MarkowitzParams{RiskAversion: 1.0, MaxWeight: 0.6, CovarianceMethod: "sample"}
	case model.JobKindBlackScholes:
		b.rec.Descriptor.Params = &model.BlackScholesParams{OptionType: "call", StrikePrice: 100, TimeToExpiry: 1, RiskFreeRate: 0.05}
	case model.JobKindBacktest:
		b.rec.Descriptor.Params = &model.BacktestParams{Strategy: "equal_weight", RebalanceFrequency: "monthly"}
	}
	return b
}

// WithSymbols sets the symbol list.
func (b *JobRecordBuilder) WithSymbols(symbols ...string) *JobRecordBuilder {
	b.rec.Descriptor.Symbols = symbols
	return b
}

// WithStatus sets the lifecycle status.
func (b *JobRecordBuilder) WithStatus(status model.JobStatus) *JobRecordBuilder {
	b.rec.Status = status
	return b
}

// WithParams sets the model parameters.
func (b *JobRecordBuilder) WithParams(params model.Params) *JobRecordBuilder {
	b.rec.Descriptor.Params = params
	return b
}

// WithStartedAt sets the execution start timestamp.
func (b *JobRecordBuilder) WithStartedAt(t time.Time) *JobRecordBuilder {
	b.rec.StartedAt = &t
	return b
}

// WithResultRefs sets the result references.
func (b *JobRecordBuilder) WithResultRefs(refs *model.ResultRefs) *JobRecordBuilder {
	b.rec.ResultRefs = refs
	return b
}

// WithError sets the failure message.
func (b *JobRecordBuilder) WithError(msg string) *JobRecordBuilder {
	b.rec.Error = &msg
	return b
}

// Build returns the constructed record.
func (b *JobRecordBuilder) Build() *model.JobRecord {
	return b.rec
}

// NewPriceTable builds a small deterministic price table for model tests.
// Each symbol follows a distinct geometric drift so covariances are
// non-degenerate.
func NewPriceTable(days int, symbols ...string) *core.PriceTable {
	if len(symbols) == 0 {
		symbols = []string{"AAPL", "MSFT"}
	}
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	table := &core.PriceTable{
		Symbols: symbols,
		Times:   make([]time.Time, days),
		Values:  make([][]float64, days),
	}
	for i := 0; i < days; i++ {
		table.Times[i] = start.AddDate(0, 0, i)
		row := make([]float64, len(symbols))
		for j := range symbols {
			base := 100.0 * float64(j+1)
			drift := 1.0 + 0.001*float64(j+1)
			wiggle := 1.0 + 0.01*float64((i*(j+2))%7-3)
			price := base * wiggle
			for k := 0; k < i; k++ {
				price *= drift
			}
			row[j] = price
		}
		table.Values[i] = row
	}
	return table
}
