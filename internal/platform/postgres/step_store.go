package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskexport/internal/domain"
	"github.com/phrazzld/taskexport/internal/platform/logger"
	"github.com/phrazzld/taskexport/internal/store"
	"github.com/phrazzld/taskexport/internal/task"
)

const stepEntity = "task_step"

// StepStore implements store.StepStore using PostgreSQL.
type StepStore struct {
	db *sql.DB
}

var (
	_ store.StepStore   = (*StepStore)(nil)
	_ task.StepRecorder = (*StepStore)(nil)
)

// NewStepStore creates a new StepStore
func NewStepStore(db *sql.DB) *StepStore {
	return &StepStore{db: db}
}

// RecordStep inserts the step and updates the task summary in one transaction.
func (s *StepStore) RecordStep(ctx context.Context, playgroundID string, result domain.StepResult) error {
	log := logger.FromContext(ctx)

	if result.StepID() == uuid.Nil {
		return store.NewStoreError(stepEntity, "record", "step id is required", store.ErrInvalidEntity)
	}

	err := store.RunInTransaction(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertStep(ctx, tx, playgroundID, result); err != nil {
			return err
		}
		return upsertSummary(ctx, tx, playgroundID, result)
	})
	if err != nil {
		log.Error("failed to record step result",
			"step_id", result.StepID(),
			"task_id", result.TaskID(),
			"error", err)
		if IsUniqueViolation(err) {
			return store.NewStoreError(stepEntity, "record", "step already recorded", store.ErrStepExists)
		}
		return store.NewStoreError(stepEntity, "record", "failed to record step", MapError(err))
	}

	return nil
}

func insertStep(ctx context.Context, db store.DBTX, playgroundID string, r domain.StepResult) error {
	query := `
		INSERT INTO task_steps (
			step_id, playground_id, task_id, state, message,
			output_location, error_detail, retryable, row_count, finished_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := db.ExecContext(ctx, query,
		r.StepID(),
		playgroundID,
		r.TaskID(),
		string(r.State()),
		r.Message(),
		nullString(r.OutputLocation()),
		nullString(r.ErrorDetail()),
		r.Retryable(),
		r.RowCount(),
		r.FinishedAt(),
	)
	return err
}

func upsertSummary(ctx context.Context, db store.DBTX, playgroundID string, r domain.StepResult) error {
	query := `
		INSERT INTO task_summaries (playground_id, task_id, latest_step_id, state, attempts, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (playground_id, task_id) DO UPDATE
		SET latest_step_id = EXCLUDED.latest_step_id,
			state = EXCLUDED.state,
			attempts = task_summaries.attempts + 1,
			updated_at = EXCLUDED.updated_at
	`

	_, err := db.ExecContext(ctx, query,
		playgroundID,
		r.TaskID(),
		r.StepID(),
		string(r.State()),
		r.FinishedAt(),
	)
	return err
}

// ListByTask returns the steps of the workspace's task, newest first.
func (s *StepStore) ListByTask(ctx context.Context, playgroundID, taskID string) ([]domain.StepResult, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT step_id, task_id, state, message, output_location, error_detail,
			retryable, row_count, finished_at
		FROM task_steps
		WHERE playground_id = $1 AND task_id = $2
		ORDER BY finished_at DESC, step_id
	`

	rows, err := s.db.QueryContext(ctx, query, playgroundID, taskID)
	if err != nil {
		log.Error("failed to list step results",
			"playground_id", playgroundID,
			"task_id", taskID,
			"error", err)
		return nil, store.NewStoreError(stepEntity, "list", "query failed", MapError(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Warn("failed to close rows", "error", err)
		}
	}()

	results := []domain.StepResult{}
	for rows.Next() {
		r, err := scanStep(rows)
		if err != nil {
			return nil, store.NewStoreError(stepEntity, "list", "scan failed", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError(stepEntity, "list", "iteration failed", MapError(err))
	}

	return results, nil
}

// Summary returns the latest state of the workspace's task.
func (s *StepStore) Summary(ctx context.Context, playgroundID, taskID string) (store.TaskSummary, error) {
	query := `
		SELECT task_id, playground_id, latest_step_id, state, attempts, updated_at
		FROM task_summaries
		WHERE playground_id = $1 AND task_id = $2
	`

	var (
		sum   store.TaskSummary
		state string
	)
	err := s.db.QueryRowContext(ctx, query, playgroundID, taskID).Scan(
		&sum.TaskID,
		&sum.PlaygroundID,
		&sum.LatestStepID,
		&state,
		&sum.Attempts,
		&sum.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return store.TaskSummary{}, store.ErrStepNotFound
	}
	if err != nil {
		return store.TaskSummary{}, store.NewStoreError(stepEntity, "summary", "query failed", MapError(err))
	}

	sum.State, err = domain.ParseStatus(state)
	if err != nil {
		return store.TaskSummary{}, store.NewStoreError(stepEntity, "summary", "unknown state", err)
	}
	sum.UpdatedAt = sum.UpdatedAt.UTC()

	return sum, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStep(row scanner) (domain.StepResult, error) {
	var (
		stepID         uuid.UUID
		taskID         string
		state          string
		message        string
		outputLocation sql.NullString
		errorDetail    sql.NullString
		retryable      bool
		rowCount       int64
		finishedAt     time.Time
	)

	if err := row.Scan(
		&stepID,
		&taskID,
		&state,
		&message,
		&outputLocation,
		&errorDetail,
		&retryable,
		&rowCount,
		&finishedAt,
	); err != nil {
		return domain.StepResult{}, err
	}

	status, err := domain.ParseStatus(state)
	if err != nil {
		return domain.StepResult{}, fmt.Errorf("step %s: %w", stepID, err)
	}

	return domain.RestoreStepResult(
		stepID,
		taskID,
		status,
		message,
		outputLocation.String,
		errorDetail.String,
		retryable,
		rowCount,
		finishedAt.UTC(),
	), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
