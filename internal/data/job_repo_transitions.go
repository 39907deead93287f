package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/data/pgxutil"
	domainjob "github.com/quantlab/quantjobs/internal/domain/job"
	"github.com/quantlab/quantjobs/internal/domain/model"
)

// Transition applies a lifecycle change under the state machine inside one
// read-modify-write transaction. The row lock serializes concurrent
// deliveries for the same job id, so the sequence of accepted transitions is
// totally ordered per record even when redeliveries race.
func (r *JobRepo) Transition(
	ctx context.Context,
	id uuid.UUID,
	ch domainjob.Change,
) (*model.JobRecord, error) {
	var rec *model.JobRecord

	txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			row := tx.QueryRow(ctx,
				`SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id)

			current, err := scanJob(row)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return core.ErrNotFound
				}
				return fmt.Errorf("lock job %s: %w", id, err)
			}

			decision, err := domainjob.Evaluate(current, ch)
			if err != nil {
				return err
			}
			if decision.Noop {
				rec = current
				return nil
			}

			rec, err = r.applyChange(ctx, tx, current, ch, decision)
			return err
		},
	})
	if txErr != nil {
		return nil, txErr
	}

	if r.logger != nil {
		r.logger.DebugContext(ctx, "job transition applied", "id", id, "status", rec.Status)
	}
	return rec, nil
}

func (r *JobRepo) applyChange(
	ctx context.Context,
	tx pgx.Tx,
	current *model.JobRecord,
	ch domainjob.Change,
	decision domainjob.Decision,
) (*model.JobRecord, error) {
	now := r.timeProvider.Now()

	updated := *current
	updated.Status = ch.To
	if decision.SetStartedAt {
		updated.StartedAt = &now
	}
	if decision.SetFinishedAt {
		updated.FinishedAt = &now
	}
	if ch.To == model.JobStatusCompleted {
		updated.ResultRefs = ch.ResultRefs
	}
	if ch.To == model.JobStatusFailed {
		msg := ch.Error
		updated.Error = &msg
	}

	resultRaw, err := encodeResultRefs(updated.ResultRefs)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE jobs
		SET status = $2,
		    started_at = $3,
		    finished_at = $4,
		    result_refs = $5,
		    error = $6
		WHERE id = $1`,
		updated.ID,
		updated.Status,
		nullableTime(updated.StartedAt),
		nullableTime(updated.FinishedAt),
		resultRaw,
		nullableString(updated.Error),
	)
	if err != nil {
		return nil, fmt.Errorf("update job %s: %w", updated.ID, err)
	}
	if tag.RowsAffected() != 1 {
		return nil, fmt.Errorf("update job %s: unexpected rows affected %d", updated.ID, tag.RowsAffected())
	}
	return &updated, nil
}
