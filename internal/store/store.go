// Package store persists healing events and run results. PostgreSQL is the
// durable sink; LogSink stands in when no database is configured.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/v0xg/autoqa/internal/log"
	"github.com/v0xg/autoqa/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS healing_events (
	id             UUID PRIMARY KEY,
	test_case_id   TEXT NOT NULL,
	step_index     INTEGER NOT NULL,
	failed_locator TEXT NOT NULL,
	healed_locator TEXT NOT NULL,
	strategy       TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	auto_applied   BOOLEAN NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS execution_results (
	run_id      UUID NOT NULL,
	test_id     TEXT NOT NULL,
	status      TEXT NOT NULL,
	duration_ms BIGINT NOT NULL,
	error       TEXT,
	video       TEXT,
	PRIMARY KEY (run_id, test_id)
);`

const insertHealingEvent = `INSERT INTO healing_events
	(id, test_case_id, step_index, failed_locator, healed_locator, strategy, confidence, auto_applied, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const insertResult = `INSERT INTO execution_results
	(run_id, test_id, status, duration_ms, error, video)
	VALUES ($1, $2, $3, $4, $5, $6)`

// PostgresStore writes to the healing_events and execution_results tables
type PostgresStore struct {
	db  *sql.DB
	log *zap.Logger
}

// Open connects to PostgreSQL and verifies the connection
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db), nil
}

// New wraps an open database handle
func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, log: log.Component("store")}
}

// Migrate creates the tables if they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// RecordHealing inserts one healing event
func (s *PostgresStore) RecordHealing(ctx context.Context, ev model.HealingEvent) error {
	_, err := s.db.ExecContext(ctx, insertHealingEvent,
		ev.ID, ev.TestCaseID, ev.StepIndex, ev.FailedLocator, ev.HealedLocator,
		string(ev.Strategy), ev.Confidence, ev.AutoApplied, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record healing event: %w", err)
	}
	return nil
}

// RecordResults stores every result of a run in one transaction
func (s *PostgresStore) RecordResults(ctx context.Context, runID string, results *model.ExecutionResults) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error("Failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	for _, group := range [][]model.ExecutionResult{results.Passed, results.Healed, results.Failed} {
		for _, r := range group {
			if _, err = tx.ExecContext(ctx, insertResult,
				runID, r.TestID, string(r.Status), r.Duration.Milliseconds(),
				nullString(r.Error), nullString(r.Video)); err != nil {
				return fmt.Errorf("failed to record result for %s: %w", r.TestID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// LogSink records healing events in the log only
type LogSink struct {
	Logger *zap.Logger
}

func (l LogSink) RecordHealing(ctx context.Context, ev model.HealingEvent) error {
	logger := l.Logger
	if logger == nil {
		logger = log.Component("store")
	}
	logger.Info("Healing event",
		zap.String("id", ev.ID),
		zap.String("test_case_id", ev.TestCaseID),
		zap.Int("step_index", ev.StepIndex),
		zap.String("failed_locator", ev.FailedLocator),
		zap.String("healed_locator", ev.HealedLocator),
		zap.String("strategy", string(ev.Strategy)),
		zap.Float64("confidence", ev.Confidence),
		zap.Bool("auto_applied", ev.AutoApplied))
	return nil
}
