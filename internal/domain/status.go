package domain

import (
	"fmt"
	"strings"
)

// Status describes the lifecycle state of a task or of a single execution step.
// Values are compared by name; declaration order carries no meaning.
type Status string

// Possible status values, in declaration order.
const (
	StatusPending        Status = "PENDING"
	StatusRunning        Status = "RUNNING"
	StatusSuccess        Status = "SUCCESS"
	StatusFailed         Status = "FAILED"
	StatusCancelled      Status = "CANCELLED"
	StatusIdle           Status = "IDLE"
	StatusPartialSuccess Status = "PARTIAL_SUCCESS"
	StatusUnknown        Status = "UNKNOWN"
	StatusSkipped        Status = "SKIPPED"
	StatusUpstreamFailed Status = "UPSTREAM_FAILED"
)

// Statuses returns every Status in declaration order.
func Statuses() []Status {
	return []Status{
		StatusPending,
		StatusRunning,
		StatusSuccess,
		StatusFailed,
		StatusCancelled,
		StatusIdle,
		StatusPartialSuccess,
		StatusUnknown,
		StatusSkipped,
		StatusUpstreamFailed,
	}
}

// ParseStatus converts a status name into a Status. Matching ignores case and
// surrounding whitespace.
func ParseStatus(name string) (Status, error) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(name)))
	if !candidate.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, name)
	}
	return candidate, nil
}

// Valid reports whether s is a member of the enumeration.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSuccess, StatusFailed, StatusCancelled,
		StatusIdle, StatusPartialSuccess, StatusUnknown, StatusSkipped, StatusUpstreamFailed:
		return true
	default:
		return false
	}
}

// String returns the status name.
func (s Status) String() string {
	return string(s)
}

// Succeeded reports whether s denotes that a usable artifact was produced.
// PARTIAL_SUCCESS counts; UPSTREAM_FAILED and every other state do not.
func (s Status) Succeeded() bool {
	return s == StatusSuccess || s == StatusPartialSuccess
}

// Terminal reports whether s is a final state that will not change again.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusPartialSuccess,
		StatusSkipped, StatusUpstreamFailed:
		return true
	default:
		return false
	}
}
