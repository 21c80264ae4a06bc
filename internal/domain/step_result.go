package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ArtifactScheme is the URI scheme used for published artifact locations.
const ArtifactScheme = "storage"

// ArtifactURI composes the fully qualified location of a published artifact.
func ArtifactURI(bucket, key string) string {
	return fmt.Sprintf("%s://%s/%s", ArtifactScheme, bucket, key)
}

// StepResult is the outcome of one execution attempt. It is created exactly
// once per attempt and cannot be modified afterwards; all fields are read
// through accessor methods.
type StepResult struct {
	stepID         uuid.UUID
	taskID         string
	state          Status
	message        string
	outputLocation string
	errorDetail    string
	retryable      bool
	rowCount       int64
	finishedAt     time.Time
}

// NewSuccessResult builds the result of an attempt that ran the full pipeline
// and published its artifact at location.
func NewSuccessResult(stepID uuid.UUID, taskID, location string, rowCount int64, message string) StepResult {
	return StepResult{
		stepID:         stepID,
		taskID:         taskID,
		state:          StatusSuccess,
		message:        message,
		outputLocation: location,
		rowCount:       rowCount,
		finishedAt:     time.Now().UTC(),
	}
}

// NewFailedResult builds the result of an attempt that stopped before its
// artifact was published. retryable carries the caller-facing classification
// of cause.
func NewFailedResult(stepID uuid.UUID, taskID, message string, cause error, retryable bool) StepResult {
	r := StepResult{
		stepID:     stepID,
		taskID:     taskID,
		state:      StatusFailed,
		message:    message,
		retryable:  retryable,
		finishedAt: time.Now().UTC(),
	}
	if cause != nil {
		r.errorDetail = cause.Error()
	}
	return r
}

// RestoreStepResult rebuilds a StepResult from persisted fields.
func RestoreStepResult(
	stepID uuid.UUID,
	taskID string,
	state Status,
	message, outputLocation, errorDetail string,
	retryable bool,
	rowCount int64,
	finishedAt time.Time,
) StepResult {
	return StepResult{
		stepID:         stepID,
		taskID:         taskID,
		state:          state,
		message:        message,
		outputLocation: outputLocation,
		errorDetail:    errorDetail,
		retryable:      retryable,
		rowCount:       rowCount,
		finishedAt:     finishedAt,
	}
}

// StepID returns the identifier generated for this attempt.
func (r StepResult) StepID() uuid.UUID { return r.stepID }

// TaskID returns the identifier of the task the attempt ran.
func (r StepResult) TaskID() string { return r.taskID }

// State returns the final status of the attempt.
func (r StepResult) State() Status { return r.state }

// Message returns a human-readable summary.
func (r StepResult) Message() string { return r.message }

// OutputLocation returns the artifact URI, or "" when nothing was published.
func (r StepResult) OutputLocation() string { return r.outputLocation }

// ErrorDetail returns the triggering error text of a failed attempt.
func (r StepResult) ErrorDetail() string { return r.errorDetail }

// Retryable reports whether a failed attempt is worth re-submitting unchanged.
func (r StepResult) Retryable() bool { return r.retryable }

// RowCount returns the number of data rows exported.
func (r StepResult) RowCount() int64 { return r.rowCount }

// FinishedAt returns when the attempt completed.
func (r StepResult) FinishedAt() time.Time { return r.finishedAt }

// HasArtifact reports whether the attempt published a usable artifact.
func (r StepResult) HasArtifact() bool {
	return r.outputLocation != "" && r.state.Succeeded()
}

type stepResultJSON struct {
	StepID         uuid.UUID `json:"step_id"`
	TaskID         string    `json:"task_id"`
	State          Status    `json:"state"`
	Message        string    `json:"message"`
	OutputLocation string    `json:"output_location,omitempty"`
	Error          string    `json:"error,omitempty"`
	Retryable      bool      `json:"retryable,omitempty"`
	RowCount       int64     `json:"row_count"`
	FinishedAt     time.Time `json:"finished_at"`
}

// MarshalJSON implements json.Marshaler.
func (r StepResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepResultJSON{
		StepID:         r.stepID,
		TaskID:         r.taskID,
		State:          r.state,
		Message:        r.message,
		OutputLocation: r.outputLocation,
		Error:          r.errorDetail,
		Retryable:      r.retryable,
		RowCount:       r.rowCount,
		FinishedAt:     r.finishedAt,
	})
}
