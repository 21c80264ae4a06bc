package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/taskexport/internal/retry"
	"github.com/phrazzld/taskexport/internal/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		expectedError error
		expectedMsg   string
	}{
		{
			name: "nil_error",
			err:  nil,
		},
		{
			name:          "sql_no_rows",
			err:           sql.ErrNoRows,
			expectedError: store.ErrNotFound,
		},
		{
			name:          "unique_violation",
			err:           &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "task_steps_pkey"},
			expectedError: store.ErrDuplicate,
		},
		{
			name:          "check_violation",
			err:           &pgconn.PgError{Code: checkViolationCode, ConstraintName: "task_steps_state_check"},
			expectedError: store.ErrInvalidEntity,
			expectedMsg:   "task_steps_state_check",
		},
		{
			name:          "not_null_violation",
			err:           &pgconn.PgError{Code: notNullViolationCode, ColumnName: "task_id"},
			expectedError: store.ErrInvalidEntity,
			expectedMsg:   "task_id",
		},
		{
			name:        "other_error_passes_through",
			err:         errors.New("boom"),
			expectedMsg: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			if tt.expectedError != nil {
				assert.ErrorIs(t, got, tt.expectedError)
			}
			if tt.expectedMsg != "" {
				assert.Contains(t, got.Error(), tt.expectedMsg)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: uniqueViolationCode})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: checkViolationCode}))
	assert.False(t, IsUniqueViolation(errors.New("duplicate")))
}

// TestMapQueryError checks that mapped source errors classify the way the
// retry policy expects.
func TestMapQueryError(t *testing.T) {
	classifier := retry.NewDefaultClassifier()

	tests := []struct {
		name          string
		err           error
		wantLabel     string
		wantRetryable bool
	}{
		{
			name:      "syntax error",
			err:       &pgconn.PgError{Code: "42601", Message: `syntax error at or near "SELEC"`},
			wantLabel: "syntax error",
		},
		{
			name:      "undefined table",
			err:       &pgconn.PgError{Code: "42P01", Message: `relation "nope" does not exist`},
			wantLabel: "object does not exist",
		},
		{
			name:      "insufficient privilege",
			err:       &pgconn.PgError{Code: "42501", Message: "must be owner of table"},
			wantLabel: "permission denied",
		},
		{
			name:      "authentication",
			err:       &pgconn.PgError{Code: "28P01", Message: "password check failed"},
			wantLabel: "authentication failed",
		},
		{
			name:          "connection exception",
			err:           &pgconn.PgError{Code: "08006", Message: "connection failure"},
			wantLabel:     "connection unavailable",
			wantRetryable: true,
		},
		{
			name:          "too many connections",
			err:           &pgconn.PgError{Code: "53300", Message: "sorry, too many clients already"},
			wantLabel:     "too many connections",
			wantRetryable: true,
		},
		{
			name:          "admin shutdown",
			err:           &pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"},
			wantLabel:     "service unavailable",
			wantRetryable: true,
		},
		{
			name:          "deadlock",
			err:           &pgconn.PgError{Code: "40P01", Message: "deadlock detected"},
			wantLabel:     "deadlock or serialization failure",
			wantRetryable: true,
		},
		{
			name:          "context deadline",
			err:           context.DeadlineExceeded,
			wantLabel:     "timeout",
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapQueryError(tt.err)

			assert.ErrorIs(t, mapped, tt.err)
			assert.Contains(t, mapped.Error(), tt.wantLabel)
			assert.Equal(t, tt.wantRetryable, classifier.Classify(mapped.Error()).Retryable())
		})
	}
}

func TestMapQueryError_Unrecognised(t *testing.T) {
	assert.NoError(t, MapQueryError(nil))

	err := errors.New("plain failure")
	assert.Equal(t, err, MapQueryError(err))
}
