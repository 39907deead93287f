package data

import (
	"context"
	"database/sql"
	"fmt"
)

// jobsSchema is the single table owned by this service. Broader migration
// tooling is out of scope; the schema is idempotent and applied on startup
// when enabled via config.
const jobsSchema = `
CREATE TABLE IF NOT EXISTS jobs (
  id UUID PRIMARY KEY,
  owner_id UUID NOT NULL,
  kind TEXT NOT NULL,
  symbols JSONB NOT NULL,
  start_ts TIMESTAMPTZ NOT NULL,
  end_ts TIMESTAMPTZ NOT NULL,
  data_interval TEXT NOT NULL,
  vendor TEXT NOT NULL,
  adjusted BOOLEAN NOT NULL DEFAULT TRUE,
  params JSONB NOT NULL,
  status TEXT NOT NULL DEFAULT 'queued',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  started_at TIMESTAMPTZ,
  finished_at TIMESTAMPTZ,
  result_refs JSONB,
  error TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_owner_created ON jobs (owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at);
CREATE INDEX IF NOT EXISTS idx_jobs_kind_status ON jobs (kind, status);
`

// RunMigrations applies the jobs schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, jobsSchema); err != nil {
		return fmt.Errorf("apply jobs schema: %w", err)
	}
	return nil
}
