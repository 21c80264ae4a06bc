package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidStatus is returned when a status name is not part of the Status enumeration.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrEmptyPlaygroundID is returned when a task has no owning workspace.
	ErrEmptyPlaygroundID = errors.New("task playground ID cannot be empty")

	// ErrEmptyTaskID is returned when a task has no identifier.
	ErrEmptyTaskID = errors.New("task ID cannot be empty")

	// ErrEmptyQuery is returned when a task carries no query text.
	ErrEmptyQuery = errors.New("task query cannot be empty")
)
