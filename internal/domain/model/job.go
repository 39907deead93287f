// Package model defines the core data types for the quantjobs platform.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobKind identifies which financial model a job runs.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobKind string

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	// JobKindMonteCarlo runs a Monte Carlo GBM simulation.
	JobKindMonteCarlo JobKind = "montecarlo"
	// JobKindMarkowitz runs a Markowitz portfolio optimization.
	JobKindMarkowitz JobKind = "markowitz"
	// JobKindBlackScholes prices an option with the Black-Scholes model.
	JobKindBlackScholes JobKind = "blackscholes"
	// JobKindBacktest runs a strategy backtest.
	JobKindBacktest JobKind = "backtest"

	// JobStatusQueued indicates a job is waiting to be picked up by a worker.
	JobStatusQueued JobStatus = "queued"
	// JobStatusRunning indicates a worker is executing the job.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job finished with an error.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled before execution.
	JobStatusCancelled JobStatus = "cancelled"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobKind to allow env parsing.
func (k *JobKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jk := JobKind(v)
	if jk.Valid() {
		*k = jk
		return nil
	}
	return fmt.Errorf("invalid JobKind: %q", v)
}

// Valid returns true if the JobKind is one of the supported model kinds.
func (k JobKind) Valid() bool {
	return k == JobKindMonteCarlo || k == JobKindMarkowitz ||
		k == JobKindBlackScholes || k == JobKindBacktest
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusRunning || s == JobStatusCompleted ||
		s == JobStatusFailed || s == JobStatusCancelled
}

// Terminal returns true if no further transitions are permitted out of s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// DataInterval is the bar interval requested from the market-data vendor.
type DataInterval string

// Supported data intervals.
const (
	IntervalOneMin     DataInterval = "1min"
	IntervalFiveMin    DataInterval = "5min"
	IntervalFifteenMin DataInterval = "15min"
	IntervalThirtyMin  DataInterval = "30min"
	IntervalFortyFive  DataInterval = "45min"
	IntervalOneHour    DataInterval = "1h"
	IntervalTwoHour    DataInterval = "2h"
	IntervalFourHour   DataInterval = "4h"
	IntervalOneDay     DataInterval = "1d"
	IntervalOneWeek    DataInterval = "1week"
	IntervalOneMonth   DataInterval = "1month"
)

// Valid returns true if the interval is supported.
func (i DataInterval) Valid() bool {
	switch i {
	case IntervalOneMin, IntervalFiveMin, IntervalFifteenMin, IntervalThirtyMin,
		IntervalFortyFive, IntervalOneHour, IntervalTwoHour, IntervalFourHour,
		IntervalOneDay, IntervalOneWeek, IntervalOneMonth:
		return true
	default:
		return false
	}
}

// DataVendor identifies the market-data provider.
type DataVendor string

const (
	// VendorEODHD is the EOD Historical Data vendor.
	VendorEODHD DataVendor = "eodhd"
	// VendorTwelveData is the Twelve Data vendor.
	VendorTwelveData DataVendor = "twelvedata"
)

// Valid returns true if the vendor is supported.
func (v DataVendor) Valid() bool {
	return v == VendorEODHD || v == VendorTwelveData
}

// Descriptor captures everything a worker needs to execute a job.
// It is persisted with the record and carried verbatim in the dispatch message.
type Descriptor struct {
	Kind     JobKind      `json:"kind"`
	Symbols  []string     `json:"symbols"`
	Start    time.Time    `json:"start"`
	End      time.Time    `json:"end"`
	Interval DataInterval `json:"interval"`
	Vendor   DataVendor   `json:"vendor"`
	Adjusted bool         `json:"adjusted"`
	Params   Params       `json:"-"`
}

// ResultRefs holds the outputs of a completed job: the model metrics, the
// object-store locator for each artifact name, and short-lived signed URLs.
type ResultRefs struct {
	Metrics   map[string]float64 `json:"metrics"`
	Artifacts map[string]string  `json:"artifacts"`
	URLs      []string           `json:"urls,omitempty"`
}

// Equivalent reports whether two result sets describe the same outcome.
// Signed URLs are excluded: they are re-derived and time-bounded.
func (r *ResultRefs) Equivalent(other *ResultRefs) bool {
	if r == nil || other == nil {
		return r == other
	}
	if len(r.Metrics) != len(other.Metrics) || len(r.Artifacts) != len(other.Artifacts) {
		return false
	}
	for k, v := range r.Metrics {
		if ov, ok := other.Metrics[k]; !ok || ov != v {
			return false
		}
	}
	for k, v := range r.Artifacts {
		if ov, ok := other.Artifacts[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// JobRecord is the persisted representation of one job. Lifecycle fields are
// mutated only through the state machine's transition operation.
type JobRecord struct {
	ID         uuid.UUID   `json:"id"`
	OwnerID    uuid.UUID   `json:"owner_id"`
	Descriptor Descriptor  `json:"descriptor"`
	Status     JobStatus   `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	ResultRefs *ResultRefs `json:"result_refs,omitempty"`
	Error      *string     `json:"error,omitempty"`
}

// JobView mirrors JobRecord for status queries, adding the derived progress
// value. Progress is nil for cancelled jobs.
type JobView struct {
	JobRecord
	Progress          *float64 `json:"progress,omitempty"`
	EstimatedDuration int      `json:"estimated_duration_seconds"`
}

// JobList is one page of an owner's jobs.
type JobList struct {
	Jobs    []*JobView `json:"jobs"`
	Total   int        `json:"total"`
	HasNext bool       `json:"has_next"`
}

// ListOptions controls pagination and filtering for job listings.
type ListOptions struct {
	OwnerID uuid.UUID
	Page    int       // 1-based page number
	Size    int       // page size, clamped to 1..100
	Kind    JobKind   // optional filter, empty = all
	Status  JobStatus // optional filter, empty = all
}

// Normalize clamps pagination fields to safe defaults.
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Size <= 0 {
		o.Size = 50
	}
	if o.Size > 100 {
		o.Size = 100
	}
}

// DispatchMessage is the payload published to the dispatch channel when a job
// is submitted. Delivery is at-least-once; workers must treat it idempotently.
type DispatchMessage struct {
	JobID    uuid.UUID       `json:"job_id"`
	OwnerID  uuid.UUID       `json:"owner_id"`
	Kind     JobKind         `json:"kind"`
	Symbols  []string        `json:"symbols"`
	Start    string          `json:"start"`
	End      string          `json:"end"`
	Interval DataInterval    `json:"interval"`
	Vendor   DataVendor      `json:"vendor"`
	Adjusted bool            `json:"adjusted"`
	Params   json.RawMessage `json:"params"`
}

const dateLayout = "2006-01-02"

// NewDispatchMessage builds the dispatch payload for a persisted record.
func NewDispatchMessage(rec *JobRecord) (DispatchMessage, error) {
	raw, err := json.Marshal(rec.Descriptor.Params)
	if err != nil {
		return DispatchMessage{}, fmt.Errorf("encode params: %w", err)
	}
	return DispatchMessage{
		JobID:    rec.ID,
		OwnerID:  rec.OwnerID,
		Kind:     rec.Descriptor.Kind,
		Symbols:  rec.Descriptor.Symbols,
		Start:    rec.Descriptor.Start.Format(dateLayout),
		End:      rec.Descriptor.End.Format(dateLayout),
		Interval: rec.Descriptor.Interval,
		Vendor:   rec.Descriptor.Vendor,
		Adjusted: rec.Descriptor.Adjusted,
		Params:   raw,
	}, nil
}

// Descriptor reconstructs a typed descriptor from the wire payload.
func (m *DispatchMessage) Descriptor() (Descriptor, error) {
	start, err := time.Parse(dateLayout, m.Start)
	if err != nil {
		return Descriptor{}, fmt.Errorf("parse start date: %w", err)
	}
	end, err := time.Parse(dateLayout, m.End)
	if err != nil {
		return Descriptor{}, fmt.Errorf("parse end date: %w", err)
	}
	params, err := DecodeParams(m.Kind, m.Params)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{
		Kind:     m.Kind,
		Symbols:  m.Symbols,
		Start:    start,
		End:      end,
		Interval: m.Interval,
		Vendor:   m.Vendor,
		Adjusted: m.Adjusted,
		Params:   params,
	}, nil
}
