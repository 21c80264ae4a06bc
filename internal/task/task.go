package task

import (
	"context"

	"github.com/phrazzld/taskexport/internal/domain"
	"github.com/phrazzld/taskexport/internal/export"
)

// ConnectionProvider hands out connections to the relational source.
// Acquire blocks, up to the provider's configured wait, while the pool is
// saturated. Implementations must be safe for concurrent use.
type ConnectionProvider interface {
	// Acquire borrows a connection. The caller must Release it.
	Acquire(ctx context.Context) (Conn, error)
}

// Conn is a borrowed connection.
type Conn interface {
	// QueryCursor runs query in a read-only, forward-only cursor. fetchSize
	// bounds how many rows the driver buffers at a time.
	QueryCursor(ctx context.Context, query string, fetchSize int) (Rows, error)

	// Release returns the connection to its pool. It is safe to call more
	// than once.
	Release()
}

// Rows is a forward-only stream of result rows.
type Rows interface {
	export.RowSource

	// Close ends the cursor and frees driver resources.
	Close() error
}

// Publisher uploads local files to durable object storage.
type Publisher interface {
	// Upload stores the file at localPath under objectKey and returns the key
	// the service actually used, which may be normalized.
	Upload(ctx context.Context, localPath, objectKey string) (string, error)

	// BucketName identifies the destination bucket.
	BucketName() string
}

// StepRecorder persists step results. Recording is best-effort.
type StepRecorder interface {
	RecordStep(ctx context.Context, playgroundID string, result domain.StepResult) error
}

// Submitter is the asynchronous task-submission surface offered to callers.
type Submitter interface {
	Submit(ctx context.Context, t domain.Task) *Future
}
