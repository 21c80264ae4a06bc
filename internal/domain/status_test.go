package domain

import (
	"errors"
	"testing"
)

func TestStatuses_DeclarationOrder(t *testing.T) {
	t.Parallel()

	want := []string{
		"PENDING", "RUNNING", "SUCCESS", "FAILED", "CANCELLED",
		"IDLE", "PARTIAL_SUCCESS", "UNKNOWN", "SKIPPED", "UPSTREAM_FAILED",
	}

	got := Statuses()
	if len(got) != len(want) {
		t.Fatalf("Expected %d statuses, got %d", len(want), len(got))
	}
	for i, s := range got {
		if s.String() != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], s)
		}
		if !s.Valid() {
			t.Errorf("Expected %s to be valid", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	s, err := ParseStatus(" partial_success ")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if s != StatusPartialSuccess {
		t.Errorf("Expected %s, got %s", StatusPartialSuccess, s)
	}

	_, err = ParseStatus("DONE")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Expected ErrInvalidStatus, got %v", err)
	}
}

func TestStatus_Succeeded(t *testing.T) {
	t.Parallel()

	for _, s := range Statuses() {
		want := s == StatusSuccess || s == StatusPartialSuccess
		if s.Succeeded() != want {
			t.Errorf("%s: expected Succeeded()=%v", s, want)
		}
	}

	// Upstream failures and plain failures are distinct states.
	if StatusUpstreamFailed == StatusFailed {
		t.Error("UPSTREAM_FAILED must not equal FAILED")
	}
	if StatusUpstreamFailed.Succeeded() {
		t.Error("UPSTREAM_FAILED must not count as success")
	}
}

func TestStatus_Terminal(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusPending, StatusRunning, StatusIdle, StatusUnknown} {
		if s.Terminal() {
			t.Errorf("Expected %s to be non-terminal", s)
		}
	}
	for _, s := range []Status{StatusSuccess, StatusFailed, StatusPartialSuccess, StatusUpstreamFailed} {
		if !s.Terminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
	}
}
