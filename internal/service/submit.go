package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quantlab/quantjobs/internal/core"
	domainjob "github.com/quantlab/quantjobs/internal/domain/job"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

// timeProvider abstracts clock access so submission tests can pin time.
type timeProvider interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// SubmissionServiceOptions groups dependencies for SubmissionService.
//
// Store and Publisher are required. Logger and Clock are optional.
type SubmissionServiceOptions struct {
	Store     core.JobStore          // Required: job record store
	Publisher core.DispatchPublisher // Required: dispatch channel
	Logger    *slog.Logger           // Optional: structured logger
	Clock     timeProvider           // Optional: clock override for tests
}

// SubmissionService accepts submission requests, persists queued records and
// publishes exactly one dispatch message per accepted job.
type SubmissionService struct {
	store     core.JobStore
	publisher core.DispatchPublisher
	logger    *slog.Logger
	clock     timeProvider
}

// NewSubmissionService constructs a new SubmissionService.
func NewSubmissionService(opts SubmissionServiceOptions) (*SubmissionService, error) {
	if opts.Store == nil {
		return nil, errors.New("JobStore is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("DispatchPublisher is required")
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger != nil {
		opts.Logger = opts.Logger.With("component", "submission_service")
	}

	return &SubmissionService{
		store:     opts.Store,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		clock:     opts.Clock,
	}, nil
}

// MustNewSubmissionService constructs a new SubmissionService and panics on
// error.
func MustNewSubmissionService(opts SubmissionServiceOptions) *SubmissionService {
	svc, err := NewSubmissionService(opts)
	if err != nil {
		panic(err)
	}
	return svc
}

// SubmitResult couples the persisted record with its runtime estimate.
type SubmitResult struct {
	Record            *model.JobRecord
	EstimatedDuration time.Duration
}

// Submit validates the request, persists a queued record and publishes its
// dispatch message. Validation failures return *model.ValidationError and
// persist nothing. A publish failure returns *core.DispatchError; the queued
// record is left in place so a sweeper or resubmission can recover it.
func (s *SubmissionService) Submit(
	ctx context.Context,
	ownerID uuid.UUID,
	req *model.SubmitRequest,
) (*SubmitResult, error) {
	if ownerID == uuid.Nil {
		return nil, &model.ValidationError{Field: "owner_id", Msg: "owner id is required"}
	}

	now := s.clock.Now()
	desc, err := req.Descriptor(now)
	if err != nil {
		return nil, err
	}

	rec := &model.JobRecord{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Descriptor: desc,
		Status:     model.JobStatusQueued,
		CreatedAt:  now,
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create job record: %w", err)
	}

	msg, err := model.NewDispatchMessage(rec)
	if err != nil {
		return nil, &core.DispatchError{JobID: rec.ID, Err: err}
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		if s.logger != nil {
			s.logger.Error("dispatch publish failed, record remains queued",
				"job_id", rec.ID, "error", err)
		}
		return nil, &core.DispatchError{JobID: rec.ID, Err: err}
	}

	if s.logger != nil {
		s.logger.Info("job submitted",
			"job_id", rec.ID,
			"kind", rec.Descriptor.Kind,
			"symbols", len(rec.Descriptor.Symbols))
	}

	return &SubmitResult{
		Record:            rec,
		EstimatedDuration: domainjob.EstimateDuration(desc.Kind, len(desc.Symbols)),
	}, nil
}
