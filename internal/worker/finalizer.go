package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/quantlab/quantjobs/internal/core"
	domainjob "github.com/quantlab/quantjobs/internal/domain/job"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

const defaultSignedURLTTL = 15 * time.Minute

// FinalizerOptions groups dependencies for Finalizer.
type FinalizerOptions struct {
	Store        core.JobStore
	Objects      core.ObjectStore
	SignedURLTTL time.Duration // Optional: defaults to 15 minutes
	Logger       *slog.Logger
}

// Finalizer records terminal outcomes. Success writes a summary artifact and
// transitions to completed with the artifact references; failure records the
// error message and, best effort, an error artifact.
type Finalizer struct {
	store   core.JobStore
	objects core.ObjectStore
	ttl     time.Duration
	logger  *slog.Logger
}

// NewFinalizer constructs a new Finalizer.
func NewFinalizer(opts FinalizerOptions) (*Finalizer, error) {
	if opts.Store == nil {
		return nil, errors.New("JobStore is required")
	}
	if opts.Objects == nil {
		return nil, errors.New("ObjectStore is required")
	}
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = defaultSignedURLTTL
	}
	if opts.Logger != nil {
		opts.Logger = opts.Logger.With("component", "finalizer")
	}

	return &Finalizer{
		store:   opts.Store,
		objects: opts.Objects,
		ttl:     opts.SignedURLTTL,
		logger:  opts.Logger,
	}, nil
}

// MustNewFinalizer constructs a new Finalizer and panics on error.
func MustNewFinalizer(opts FinalizerOptions) *Finalizer {
	f, err := NewFinalizer(opts)
	if err != nil {
		panic(err)
	}
	return f
}

// FinalizeSuccess writes the run summary, then transitions the record to
// completed. The summary is written before the transition so a crash between
// the two leaves a re-executable running job, never a completed job with a
// missing summary. Signed URLs are derived after the transition commits and
// never gate it.
func (f *Finalizer) FinalizeSuccess(
	ctx context.Context,
	rec *model.JobRecord,
	out *PipelineOutput,
) (*model.JobRecord, error) {
	jobID := rec.ID
	summary := map[string]any{
		"job_id":      jobID,
		"kind":        rec.Descriptor.Kind,
		"symbols":     rec.Descriptor.Symbols,
		"start":       rec.Descriptor.Start.Format(time.RFC3339),
		"end":         rec.Descriptor.End.Format(time.RFC3339),
		"metrics":     out.Metrics,
		"artifacts":   artifactNames(out.Artifacts),
		"finished_at": time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	loc, err := f.objects.Write(ctx, jobID, "summary.json", "application/json", data)
	if err != nil {
		return nil, &core.ArtifactWriteError{Name: "summary.json", Err: err}
	}

	refs := &model.ResultRefs{
		Metrics:   out.Metrics,
		Artifacts: make(map[string]string, len(out.Artifacts)+1),
	}
	for name, locator := range out.Artifacts {
		refs.Artifacts[name] = locator
	}
	refs.Artifacts["summary.json"] = loc
	refs.URLs = f.signArtifacts(ctx, jobID, refs.Artifacts)

	rec, err = f.store.Transition(ctx, jobID, domainjob.Change{
		To:         model.JobStatusCompleted,
		ResultRefs: refs,
	})
	if err != nil {
		return nil, fmt.Errorf("finalize success: %w", err)
	}

	if f.logger != nil {
		f.logger.Info("job completed", "job_id", jobID, "artifacts", len(refs.Artifacts))
	}
	return rec, nil
}

// FinalizeFailure records the failure reason on the job. The error artifact
// is best effort: a store that cannot accept it must not block the terminal
// transition.
func (f *Finalizer) FinalizeFailure(
	ctx context.Context,
	jobID uuid.UUID,
	reason string,
) (*model.JobRecord, error) {
	data, err := json.Marshal(map[string]string{"error": reason})
	if err == nil {
		if _, werr := f.objects.Write(ctx, jobID, "error.json", "application/json", data); werr != nil {
			if f.logger != nil {
				f.logger.Warn("error artifact write failed", "job_id", jobID, "error", werr)
			}
		}
	}

	rec, err := f.store.Transition(ctx, jobID, domainjob.Change{
		To:    model.JobStatusFailed,
		Error: reason,
	})
	if err != nil {
		return nil, fmt.Errorf("finalize failure: %w", err)
	}

	if f.logger != nil {
		f.logger.Info("job failed", "job_id", jobID, "reason", reason)
	}
	return rec, nil
}

// signArtifacts builds short-lived read URLs for the artifact set. Signing
// failures are logged and skipped; locators in Artifacts remain the durable
// references.
func (f *Finalizer) signArtifacts(ctx context.Context, jobID uuid.UUID, artifacts map[string]string) []string {
	names := artifactNames(artifacts)
	urls := make([]string, 0, len(names))
	for _, name := range names {
		u, err := f.objects.SignedURL(ctx, artifacts[name], f.ttl)
		if err != nil {
			if f.logger != nil {
				f.logger.Warn("signed url failed", "job_id", jobID, "artifact", name, "error", err)
			}
			continue
		}
		urls = append(urls, u)
	}
	return urls
}

func artifactNames(artifacts map[string]string) []string {
	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
