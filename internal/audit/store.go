package audit

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// StoreSink persists decision payloads to Postgres for post-run analysis.
type StoreSink struct {
	db    *sqlx.DB
	runID string
}

const createDecisionsTable = `
CREATE TABLE IF NOT EXISTS protection_decisions (
	id                BIGSERIAL PRIMARY KEY,
	run_id            TEXT        NOT NULL,
	asset             TEXT        NOT NULL,
	action            TEXT        NOT NULL,
	approved          BOOLEAN     NOT NULL,
	reason            TEXT        NOT NULL,
	blocking_systems  TEXT        NOT NULL DEFAULT '',
	override_applied  BOOLEAN     NOT NULL DEFAULT FALSE,
	override_reason   TEXT        NOT NULL DEFAULT '',
	protection_checks INT         NOT NULL DEFAULT 0,
	decision_time_ms  DOUBLE PRECISION NOT NULL DEFAULT 0,
	evaluated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_protection_decisions_run_asset
	ON protection_decisions (run_id, asset);`

const insertDecision = `
INSERT INTO protection_decisions (
	run_id, asset, action, approved, reason, blocking_systems,
	override_applied, override_reason, protection_checks,
	decision_time_ms, evaluated_at
) VALUES (
	:run_id, :asset, :action, :approved, :reason, :blocking_systems,
	:override_applied, :override_reason, :protection_checks,
	:decision_time_ms, :evaluated_at
)`

// NewStoreSink connects to Postgres, ensures the decisions table, and tags
// every row with the run id.
func NewStoreSink(dsn, runID string) (*StoreSink, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit store connect: %w", err)
	}
	if _, err := db.Exec(createDecisionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit store migrate: %w", err)
	}
	return &StoreSink{db: db, runID: runID}, nil
}

// Publish inserts one decision row.
func (s *StoreSink) Publish(ctx context.Context, payload map[string]interface{}) error {
	row := map[string]interface{}{
		"run_id":            s.runID,
		"asset":             payload["asset"],
		"action":            payload["action"],
		"approved":          payload["approved"],
		"reason":            payload["reason"],
		"blocking_systems":  payload["blocking_systems"],
		"override_applied":  payload["override_applied"],
		"override_reason":   payload["override_reason"],
		"protection_checks": payload["protection_checks"],
		"decision_time_ms":  payload["decision_time_ms"],
		"evaluated_at":      payload["evaluated_at"],
	}
	if _, err := s.db.NamedExecContext(ctx, insertDecision, row); err != nil {
		return fmt.Errorf("audit store insert: %w", err)
	}
	return nil
}

func (s *StoreSink) Close() error {
	return s.db.Close()
}
