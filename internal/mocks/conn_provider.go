package mocks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/phrazzld/taskexport/internal/task"
)

// MockConnectionProvider implements task.ConnectionProvider for testing
type MockConnectionProvider struct {
	// AcquireFn allows test cases to mock the Acquire behavior
	AcquireFn func(ctx context.Context) (task.Conn, error)

	// Conn is returned by Acquire when AcquireFn is nil
	Conn *MockConn

	// Err is returned by Acquire when AcquireFn is nil and Err is set
	Err error

	// AcquireCount tracks how many times Acquire was called
	AcquireCount atomic.Int64
}

// Acquire implements the task.ConnectionProvider interface
func (m *MockConnectionProvider) Acquire(ctx context.Context) (task.Conn, error) {
	m.AcquireCount.Add(1)

	if m.AcquireFn != nil {
		return m.AcquireFn(ctx)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Conn == nil {
		m.Conn = &MockConn{}
	}
	return m.Conn, nil
}

// MockConn implements task.Conn for testing
type MockConn struct {
	// QueryCursorFn allows test cases to mock the QueryCursor behavior
	QueryCursorFn func(ctx context.Context, query string, fetchSize int) (task.Rows, error)

	// Rows is returned by QueryCursor when QueryCursorFn is nil
	Rows *MockRows

	// Err is returned by QueryCursor when QueryCursorFn is nil and Err is set
	Err error

	// ReleaseCount tracks how many times Release was called
	ReleaseCount atomic.Int64

	// Queries tracks the queries and fetch sizes passed to QueryCursor
	Queries struct {
		mu         sync.Mutex
		Texts      []string
		FetchSizes []int
	}
}

// QueryCursor implements the task.Conn interface
func (m *MockConn) QueryCursor(ctx context.Context, query string, fetchSize int) (task.Rows, error) {
	m.Queries.mu.Lock()
	m.Queries.Texts = append(m.Queries.Texts, query)
	m.Queries.FetchSizes = append(m.Queries.FetchSizes, fetchSize)
	m.Queries.mu.Unlock()

	if m.QueryCursorFn != nil {
		return m.QueryCursorFn(ctx, query, fetchSize)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Rows == nil {
		m.Rows = NewMockRows(nil)
	}
	return m.Rows, nil
}

// Release implements the task.Conn interface
func (m *MockConn) Release() {
	m.ReleaseCount.Add(1)
}

// QueryCount returns the number of QueryCursor calls
func (m *MockConn) QueryCount() int {
	m.Queries.mu.Lock()
	defer m.Queries.mu.Unlock()
	return len(m.Queries.Texts)
}

// MockRows implements task.Rows over an in-memory row set
type MockRows struct {
	columns []string
	rows    [][]any
	pos     int

	// FailAfter makes Next stop with FailErr once FailAfter rows have been
	// returned. Negative disables it.
	FailAfter int
	FailErr   error

	// CloseErr is returned by Close
	CloseErr error

	err        error
	closeCount atomic.Int64
}

// NewMockRows creates MockRows yielding rows under columns
func NewMockRows(columns []string, rows ...[]any) *MockRows {
	return &MockRows{columns: columns, rows: rows, FailAfter: -1}
}

// Columns implements the task.Rows interface
func (m *MockRows) Columns() []string {
	return m.columns
}

// Next implements the task.Rows interface
func (m *MockRows) Next() bool {
	if m.err != nil {
		return false
	}
	if m.FailAfter >= 0 && m.pos >= m.FailAfter {
		m.err = m.FailErr
		return false
	}
	if m.pos >= len(m.rows) {
		return false
	}
	m.pos++
	return true
}

// Values implements the task.Rows interface
func (m *MockRows) Values() ([]any, error) {
	return m.rows[m.pos-1], nil
}

// Err implements the task.Rows interface
func (m *MockRows) Err() error {
	return m.err
}

// Close implements the task.Rows interface
func (m *MockRows) Close() error {
	m.closeCount.Add(1)
	return m.CloseErr
}

// CloseCount returns how many times Close was called
func (m *MockRows) CloseCount() int64 {
	return m.closeCount.Load()
}
