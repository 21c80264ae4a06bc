package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskexport/internal/domain"
	"github.com/phrazzld/taskexport/internal/store"
)

func newMockStore(t *testing.T) (*StepStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewStepStore(db), mock
}

func TestStepStore_RecordStep(t *testing.T) {
	stepID := uuid.New()
	result := domain.NewSuccessResult(stepID, "t1", "storage://b/k.csv", 42, "exported 42 rows")

	t.Run("inserts step and updates summary", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO task_steps").
			WithArgs(stepID, "ws1", "t1", "SUCCESS", "exported 42 rows",
				sql.NullString{String: "storage://b/k.csv", Valid: true},
				sql.NullString{}, false, int64(42), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO task_summaries").
			WithArgs("ws1", "t1", stepID, "SUCCESS", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := s.RecordStep(context.Background(), "ws1", result)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate step id", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO task_steps").
			WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})
		mock.ExpectRollback()

		err := s.RecordStep(context.Background(), "ws1", result)
		assert.ErrorIs(t, err, store.ErrStepExists)
		assert.True(t, store.IsDuplicateError(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("summary failure rolls back", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO task_steps").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO task_summaries").WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		err := s.RecordStep(context.Background(), "ws1", result)
		require.Error(t, err)

		var storeErr *store.StoreError
		require.ErrorAs(t, err, &storeErr)
		assert.Equal(t, "record", storeErr.Operation)
		assert.Contains(t, err.Error(), "connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("summary is keyed by workspace and task", func(t *testing.T) {
		s, mock := newMockStore(t)
		other := domain.NewSuccessResult(uuid.New(), "t1", "storage://b/k2.csv", 1, "exported 1 rows")

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO task_steps").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO task_summaries (.+) ON CONFLICT \(playground_id, task_id\)`).
			WithArgs("ws2", "t1", other.StepID(), "SUCCESS", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, s.RecordStep(context.Background(), "ws2", other))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil step id rejected", func(t *testing.T) {
		s, mock := newMockStore(t)

		err := s.RecordStep(context.Background(), "ws1",
			domain.NewFailedResult(uuid.Nil, "t1", "boom", errors.New("boom"), false))
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStepStore_ListByTask(t *testing.T) {
	columns := []string{
		"step_id", "task_id", "state", "message", "output_location", "error_detail",
		"retryable", "row_count", "finished_at",
	}
	newer := uuid.New()
	older := uuid.New()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("returns steps newest first", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectQuery("SELECT (.+) FROM task_steps").
			WithArgs("ws1", "t1").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow(newer.String(), "t1", "SUCCESS", "ok", "storage://b/k.csv", nil, false, int64(3), now).
				AddRow(older.String(), "t1", "FAILED", "execute query: timeout", nil, "timeout", true, int64(0), now.Add(-time.Minute)))

		results, err := s.ListByTask(context.Background(), "ws1", "t1")
		require.NoError(t, err)
		require.Len(t, results, 2)

		assert.Equal(t, newer, results[0].StepID())
		assert.Equal(t, domain.StatusSuccess, results[0].State())
		assert.Equal(t, "storage://b/k.csv", results[0].OutputLocation())
		assert.Equal(t, int64(3), results[0].RowCount())

		assert.Equal(t, older, results[1].StepID())
		assert.Equal(t, domain.StatusFailed, results[1].State())
		assert.Equal(t, "timeout", results[1].ErrorDetail())
		assert.True(t, results[1].Retryable())
		assert.Empty(t, results[1].OutputLocation())

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown task yields empty slice", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectQuery("SELECT (.+) FROM task_steps").
			WithArgs("ws1", "missing").
			WillReturnRows(sqlmock.NewRows(columns))

		results, err := s.ListByTask(context.Background(), "ws1", "missing")
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("query error", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectQuery("SELECT (.+) FROM task_steps").WillReturnError(errors.New("db down"))

		_, err := s.ListByTask(context.Background(), "ws1", "t1")
		assert.ErrorContains(t, err, "db down")
	})
}

func TestStepStore_Summary(t *testing.T) {
	columns := []string{"task_id", "playground_id", "latest_step_id", "state", "attempts", "updated_at"}

	t.Run("found", func(t *testing.T) {
		s, mock := newMockStore(t)
		stepID := uuid.New()
		updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		mock.ExpectQuery("SELECT (.+) FROM task_summaries").
			WithArgs("ws1", "t1").
			WillReturnRows(sqlmock.NewRows(columns).AddRow("t1", "ws1", stepID.String(), "FAILED", 3, updated))

		sum, err := s.Summary(context.Background(), "ws1", "t1")
		require.NoError(t, err)
		assert.Equal(t, store.TaskSummary{
			PlaygroundID: "ws1",
			TaskID:       "t1",
			LatestStepID: stepID,
			State:        domain.StatusFailed,
			Attempts:     3,
			UpdatedAt:    updated,
		}, sum)
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectQuery("SELECT (.+) FROM task_summaries").
			WithArgs("ws1", "t1").
			WillReturnRows(sqlmock.NewRows(columns))

		_, err := s.Summary(context.Background(), "ws1", "t1")
		assert.ErrorIs(t, err, store.ErrStepNotFound)
	})
}
