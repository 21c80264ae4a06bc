package domain

import "strings"

// Task is a unit of work submitted by a caller: a query to run on behalf of
// a workspace. A Task is never mutated after submission.
type Task struct {
	// PlaygroundID identifies the workspace that owns the task.
	PlaygroundID string `json:"playground_id" yaml:"playground_id"`
	// ID identifies the task instance.
	ID string `json:"id" yaml:"id"`
	// Query is the SQL text executed against the relational source.
	Query string `json:"query" yaml:"query"`
}

// NewTask creates a Task and validates it.
func NewTask(playgroundID, id, query string) (Task, error) {
	t := Task{
		PlaygroundID: playgroundID,
		ID:           id,
		Query:        query,
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Validate checks that every field required for execution is present.
func (t Task) Validate() error {
	if strings.TrimSpace(t.PlaygroundID) == "" {
		return ErrEmptyPlaygroundID
	}
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyTaskID
	}
	if strings.TrimSpace(t.Query) == "" {
		return ErrEmptyQuery
	}
	return nil
}
