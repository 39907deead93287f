package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quantlab/quantjobs/internal/core"
	domainjob "github.com/quantlab/quantjobs/internal/domain/job"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

// QueryServiceOptions groups dependencies for QueryService.
type QueryServiceOptions struct {
	Store  core.JobStore // Required: job record store
	Logger *slog.Logger  // Optional: structured logger
	Clock  timeProvider  // Optional: clock override for tests
}

// QueryService serves owner-scoped reads and the queued-only cancel
// operation.
type QueryService struct {
	store  core.JobStore
	logger *slog.Logger
	clock  timeProvider
}

// NewQueryService constructs a new QueryService.
func NewQueryService(opts QueryServiceOptions) (*QueryService, error) {
	if opts.Store == nil {
		return nil, errors.New("JobStore is required")
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger != nil {
		opts.Logger = opts.Logger.With("component", "query_service")
	}

	return &QueryService{
		store:  opts.Store,
		logger: opts.Logger,
		clock:  opts.Clock,
	}, nil
}

// MustNewQueryService constructs a new QueryService and panics on error.
func MustNewQueryService(opts QueryServiceOptions) *QueryService {
	svc, err := NewQueryService(opts)
	if err != nil {
		panic(err)
	}
	return svc
}

// GetJob returns the caller's view of one job, including derived progress.
// A record owned by someone else returns core.ErrAccessDenied; the caller
// cannot distinguish it from their own jobs being absent only by probing,
// which is why the not-found and denied errors stay separate sentinels.
func (s *QueryService) GetJob(ctx context.Context, ownerID, jobID uuid.UUID) (*model.JobView, error) {
	rec, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != ownerID {
		return nil, core.ErrAccessDenied
	}
	return s.view(rec), nil
}

// ListJobs returns one page of the owner's jobs plus the total match count.
func (s *QueryService) ListJobs(ctx context.Context, opts model.ListOptions) (*model.JobList, error) {
	opts.Normalize()
	if opts.OwnerID == uuid.Nil {
		return nil, &model.ValidationError{Field: "owner_id", Msg: "owner id is required"}
	}

	recs, total, err := s.store.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	views := make([]*model.JobView, len(recs))
	for i, rec := range recs {
		views[i] = s.view(rec)
	}
	return &model.JobList{
		Jobs:    views,
		Total:   total,
		HasNext: opts.Page*opts.Size < total,
	}, nil
}

// Cancel moves a queued job to cancelled. Jobs that have already started or
// finished reject the cancel with *job.InvalidTransitionError.
func (s *QueryService) Cancel(ctx context.Context, ownerID, jobID uuid.UUID) (*model.JobView, error) {
	rec, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != ownerID {
		return nil, core.ErrAccessDenied
	}

	updated, err := s.store.Transition(ctx, jobID, domainjob.Change{To: model.JobStatusCancelled})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("job cancelled", "job_id", jobID)
	}
	return s.view(updated), nil
}

func (s *QueryService) view(rec *model.JobRecord) *model.JobView {
	return &model.JobView{
		JobRecord: *rec,
		Progress:  domainjob.Progress(rec, s.clock.Now()),
		EstimatedDuration: int(domainjob.EstimateDuration(
			rec.Descriptor.Kind, len(rec.Descriptor.Symbols)).Seconds()),
	}
}
