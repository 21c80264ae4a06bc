package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/taskexport/internal/domain"
)

// TaskSummary is the latest known state of a task across all its attempts.
// Tasks are identified by workspace and task id together; the same task id
// in two workspaces names two tasks.
type TaskSummary struct {
	PlaygroundID string
	TaskID       string
	LatestStepID uuid.UUID
	State        domain.Status
	Attempts     int
	UpdatedAt    time.Time
}

// StepStore defines the interface for persisting step results.
type StepStore interface {
	// RecordStep appends result to the task's step history and updates the
	// task's summary. Returns ErrStepExists if the step id was already recorded.
	RecordStep(ctx context.Context, playgroundID string, result domain.StepResult) error

	// ListByTask returns every recorded step of the workspace's task, newest
	// first. An unknown task yields an empty slice.
	ListByTask(ctx context.Context, playgroundID, taskID string) ([]domain.StepResult, error)

	// Summary returns the latest state of the workspace's task.
	// Returns ErrStepNotFound if no step was ever recorded for it.
	Summary(ctx context.Context, playgroundID, taskID string) (TaskSummary, error)
}
