package core

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors surfaced synchronously to callers.
var (
	// ErrNotFound is returned when no job exists for the requested id.
	ErrNotFound = errors.New("job not found")
	// ErrAccessDenied is returned when a caller queries a job owned by a
	// different principal.
	ErrAccessDenied = errors.New("access denied")
	// ErrUnauthorized is returned when a delivery's trust credential is
	// absent or invalid.
	ErrUnauthorized = errors.New("unauthorized delivery")
)

// DispatchError reports a job whose record was persisted but whose dispatch
// message could not be published. The record deliberately stays queued: the
// job is recoverable by an out-of-band requeue, whereas rolling back would
// orphan billing and audit state.
type DispatchError struct {
	JobID uuid.UUID
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("job %s persisted but dispatch failed: %v", e.JobID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// DataUnavailableError reports a market-data retrieval failure. Pipeline
// failures of this class are terminal to the job and never retried at the
// message layer.
type DataUnavailableError struct {
	Vendor string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("market data unavailable from %s: %v", e.Vendor, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// ModelError reports invalid input or a numeric failure inside a model run.
// Msg is preserved verbatim in the failed record for diagnostics.
type ModelError struct {
	Kind string
	Msg  string
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: %s", e.Kind, e.Msg)
}

// ArtifactWriteError reports a failed artifact persistence during the
// pipeline's store phase.
type ArtifactWriteError struct {
	Name string
	Err  error
}

func (e *ArtifactWriteError) Error() string {
	return fmt.Sprintf("write artifact %s: %v", e.Name, e.Err)
}

func (e *ArtifactWriteError) Unwrap() error { return e.Err }
