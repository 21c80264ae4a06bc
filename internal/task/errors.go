package task

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNilProvider  = errors.New("connection provider cannot be nil")
	ErrNilPublisher = errors.New("publisher cannot be nil")
	ErrPanic        = errors.New("attempt panicked")
)

// Step names one stage of an attempt's pipeline.
type Step string

// Pipeline stages, in execution order.
const (
	StepAcquire Step = "acquire connection"
	StepExecute Step = "execute query"
	StepExport  Step = "export rows"
	StepPublish Step = "publish artifact"
	StepCleanup Step = "cleanup"
)

// StepError records which pipeline stage produced Err.
type StepError struct {
	Step Step
	Err  error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the stage that produced err, or "" if err did not come
// from a pipeline stage.
func FailedStep(err error) Step {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}

// cause strips the StepError wrapper so the result carries the original message.
func cause(err error) error {
	var se *StepError
	if errors.As(err, &se) && se.Err != nil {
		return se.Err
	}
	return err
}
