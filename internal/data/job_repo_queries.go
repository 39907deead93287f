package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

// Create persists a new record. The record must already be validated and in
// queued state; created_at is taken from the record so the caller controls
// the submission timestamp.
func (r *JobRepo) Create(ctx context.Context, rec *model.JobRecord) error {
	if rec == nil {
		return errors.New("job record is required")
	}
	if rec.Status != model.JobStatusQueued {
		return fmt.Errorf("new job must be queued, got %s", rec.Status)
	}

	symbols, params, err := encodeJobFields(rec)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO jobs (
			id, owner_id, kind, symbols, start_ts, end_ts,
			data_interval, vendor, adjusted, params, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID,
		rec.OwnerID,
		rec.Descriptor.Kind,
		symbols,
		rec.Descriptor.Start,
		rec.Descriptor.End,
		rec.Descriptor.Interval,
		rec.Descriptor.Vendor,
		rec.Descriptor.Adjusted,
		params,
		rec.Status,
		rec.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, rec.ID)
		}
		return fmt.Errorf("insert job: %w", err)
	}

	if r.logger != nil {
		r.logger.DebugContext(ctx, "job record created", "id", rec.ID, "kind", rec.Descriptor.Kind)
	}
	return nil
}

// Get returns the record by id, or core.ErrNotFound.
func (r *JobRepo) Get(ctx context.Context, id uuid.UUID) (*model.JobRecord, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)

	rec, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return rec, nil
}

// List returns one page of an owner's records ordered by newest first, plus
// the total count matching the filters.
func (r *JobRepo) List(ctx context.Context, opts model.ListOptions) ([]*model.JobRecord, int, error) {
	opts.Normalize()

	where := []string{"owner_id = $1"}
	args := []any{opts.OwnerID}
	if opts.Kind != "" {
		args = append(args, opts.Kind)
		where = append(where, "kind = $"+strconv.Itoa(len(args)))
	}
	if opts.Status != "" {
		args = append(args, opts.Status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE `+cond, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	offset := (opts.Page - 1) * opts.Size
	args = append(args, opts.Size, offset)
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE ` + cond +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) +
		` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*model.JobRecord
	for rows.Next() {
		rec, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("scan job: %w", scanErr)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, total, nil
}
