// Package worker hosts the delivery-side half of the job lifecycle: the
// dispatcher that consumes dispatch messages, the pipeline that loads prices
// and executes models, and the finalizer that persists outcomes. Everything
// here must tolerate redelivery; the state machine's no-op rules are what the
// dispatcher leans on to stay idempotent.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

const (
	defaultLoadTimeout  = 2 * time.Minute
	defaultModelTimeout = 10 * time.Minute
	defaultWriteTimeout = time.Minute
)

// PipelineTimeouts bounds each stage of a job execution.
type PipelineTimeouts struct {
	Load  time.Duration
	Model time.Duration
	Write time.Duration
}

func (t *PipelineTimeouts) sanitize() {
	if t.Load <= 0 {
		t.Load = defaultLoadTimeout
	}
	if t.Model <= 0 {
		t.Model = defaultModelTimeout
	}
	if t.Write <= 0 {
		t.Write = defaultWriteTimeout
	}
}

// PipelineOptions groups dependencies for Pipeline.
type PipelineOptions struct {
	Source   core.DataSource
	Runner   core.ModelRunner
	Objects  core.ObjectStore
	Timeouts PipelineTimeouts
	Logger   *slog.Logger
}

// Pipeline runs one job end to end: load prices, execute the model, write
// artifacts. It does not touch job state; the dispatcher owns transitions.
type Pipeline struct {
	source   core.DataSource
	runner   core.ModelRunner
	objects  core.ObjectStore
	timeouts PipelineTimeouts
	logger   *slog.Logger
}

// PipelineOutput carries the results the finalizer persists.
type PipelineOutput struct {
	Metrics   map[string]float64
	Artifacts map[string]string // artifact name -> store locator
}

// NewPipeline constructs a new Pipeline.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.Source == nil {
		return nil, errors.New("DataSource is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("ModelRunner is required")
	}
	if opts.Objects == nil {
		return nil, errors.New("ObjectStore is required")
	}
	opts.Timeouts.sanitize()
	if opts.Logger != nil {
		opts.Logger = opts.Logger.With("component", "pipeline")
	}

	return &Pipeline{
		source:   opts.Source,
		runner:   opts.Runner,
		objects:  opts.Objects,
		timeouts: opts.Timeouts,
		logger:   opts.Logger,
	}, nil
}

// MustNewPipeline constructs a new Pipeline and panics on error.
func MustNewPipeline(opts PipelineOptions) *Pipeline {
	p, err := NewPipeline(opts)
	if err != nil {
		panic(err)
	}
	return p
}

// Run executes the job described by rec. Artifact names are deterministic,
// so a redelivered job overwrites its own previous partial output instead of
// accumulating duplicates.
func (p *Pipeline) Run(ctx context.Context, rec *model.JobRecord) (*PipelineOutput, error) {
	prices, err := p.loadPrices(ctx, rec)
	if err != nil {
		return nil, err
	}

	result, err := p.execute(ctx, rec, prices)
	if err != nil {
		return nil, err
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeouts.Write)
	defer cancel()

	artifacts := make(map[string]string, len(result.Tables)+2)

	pricesCSV, err := prices.CSV()
	if err != nil {
		return nil, fmt.Errorf("encode prices: %w", err)
	}
	loc, err := p.objects.Write(writeCtx, rec.ID, "prices.csv", "text/csv", pricesCSV)
	if err != nil {
		return nil, &core.ArtifactWriteError{Name: "prices.csv", Err: err}
	}
	artifacts["prices.csv"] = loc

	metricsJSON, err := json.Marshal(result.Metrics)
	if err != nil {
		return nil, fmt.Errorf("encode metrics: %w", err)
	}
	loc, err = p.objects.Write(writeCtx, rec.ID, "metrics.json", "application/json", metricsJSON)
	if err != nil {
		return nil, &core.ArtifactWriteError{Name: "metrics.json", Err: err}
	}
	artifacts["metrics.json"] = loc

	for _, table := range result.Tables {
		name := table.Name + ".csv"
		loc, err := p.objects.Write(writeCtx, rec.ID, name, "text/csv", table.CSV)
		if err != nil {
			return nil, &core.ArtifactWriteError{Name: name, Err: err}
		}
		artifacts[name] = loc
	}

	if p.logger != nil {
		p.logger.Info("pipeline finished",
			"job_id", rec.ID,
			"kind", rec.Descriptor.Kind,
			"artifacts", len(artifacts))
	}

	return &PipelineOutput{Metrics: result.Metrics, Artifacts: artifacts}, nil
}

func (p *Pipeline) loadPrices(ctx context.Context, rec *model.JobRecord) (*core.PriceTable, error) {
	loadCtx, cancel := context.WithTimeout(ctx, p.timeouts.Load)
	defer cancel()

	prices, err := p.source.LoadPrices(loadCtx, core.LoadPricesRequest{
		Symbols:  rec.Descriptor.Symbols,
		Start:    rec.Descriptor.Start,
		End:      rec.Descriptor.End,
		Interval: rec.Descriptor.Interval,
		Vendor:   rec.Descriptor.Vendor,
		Adjusted: rec.Descriptor.Adjusted,
	})
	if err != nil {
		return nil, err
	}
	return prices, nil
}

func (p *Pipeline) execute(ctx context.Context, rec *model.JobRecord, prices *core.PriceTable) (*core.ModelResult, error) {
	modelCtx, cancel := context.WithTimeout(ctx, p.timeouts.Model)
	defer cancel()

	return p.runner.Execute(modelCtx, rec.Descriptor.Kind, rec.Descriptor.Params, prices)
}
