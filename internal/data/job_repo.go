// Package data implements persistent storage for job records over Postgres.
package data

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantlab/quantjobs/internal/domain/model"
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for job records. It is the only
// component that touches the jobs table; all lifecycle mutations go through
// Transition so the state machine gates every write.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo with the given database connection.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = RealTimeProvider{}
	}
	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  id,
  owner_id,
  kind,
  symbols,
  start_ts,
  end_ts,
  data_interval,
  vendor,
  adjusted,
  params,
  status,
  created_at,
  started_at,
  finished_at,
  result_refs,
  error
`

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx rows alike.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.JobRecord, error) {
	var (
		rec        model.JobRecord
		symbolsRaw []byte
		paramsRaw  []byte
		startedAt  sql.NullTime
		finishedAt sql.NullTime
		resultRaw  []byte
		errText    sql.NullString
	)

	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.Descriptor.Kind,
		&symbolsRaw,
		&rec.Descriptor.Start,
		&rec.Descriptor.End,
		&rec.Descriptor.Interval,
		&rec.Descriptor.Vendor,
		&rec.Descriptor.Adjusted,
		&paramsRaw,
		&rec.Status,
		&rec.CreatedAt,
		&startedAt,
		&finishedAt,
		&resultRaw,
		&errText,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(symbolsRaw, &rec.Descriptor.Symbols); err != nil {
		return nil, fmt.Errorf("decode symbols: %w", err)
	}
	params, err := model.DecodeParams(rec.Descriptor.Kind, paramsRaw)
	if err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	rec.Descriptor.Params = params

	if startedAt.Valid {
		t := startedAt.Time.UTC()
		rec.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		rec.FinishedAt = &t
	}
	if len(resultRaw) > 0 {
		var refs model.ResultRefs
		if err := json.Unmarshal(resultRaw, &refs); err != nil {
			return nil, fmt.Errorf("decode result refs: %w", err)
		}
		rec.ResultRefs = &refs
	}
	if errText.Valid {
		msg := errText.String
		rec.Error = &msg
	}

	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.Descriptor.Start = rec.Descriptor.Start.UTC()
	rec.Descriptor.End = rec.Descriptor.End.UTC()

	return &rec, nil
}

// encodeJobFields serializes the JSONB columns of a record.
func encodeJobFields(rec *model.JobRecord) (symbols, params []byte, err error) {
	symbols, err = json.Marshal(rec.Descriptor.Symbols)
	if err != nil {
		return nil, nil, fmt.Errorf("encode symbols: %w", err)
	}
	params, err = json.Marshal(rec.Descriptor.Params)
	if err != nil {
		return nil, nil, fmt.Errorf("encode params: %w", err)
	}
	return symbols, params, nil
}

func encodeResultRefs(refs *model.ResultRefs) ([]byte, error) {
	if refs == nil {
		return nil, nil
	}
	raw, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("encode result refs: %w", err)
	}
	return raw, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

