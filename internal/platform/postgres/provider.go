package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phrazzld/taskexport/internal/config"
	"github.com/phrazzld/taskexport/internal/task"
)

// cursorName names the server-side cursor opened for each export query.
// Each connection runs one export at a time, so a fixed name is safe.
const cursorName = "export_cursor"

// Provider hands out pooled pgx connections to the task executor.
type Provider struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
	logger         *slog.Logger
}

var _ task.ConnectionProvider = (*Provider)(nil)

// NewProvider opens a connection pool for cfg. The pool connects lazily; use
// Ping to verify connectivity up front.
func NewProvider(ctx context.Context, cfg config.SourceConfig, logger *slog.Logger) (*Provider, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		pool:           pool,
		acquireTimeout: cfg.AcquireTimeout,
		logger:         logger,
	}, nil
}

// Ping verifies that a connection can be established.
func (p *Provider) Ping(ctx context.Context) error {
	return MapQueryError(p.pool.Ping(ctx))
}

// Close closes every connection in the pool.
func (p *Provider) Close() {
	p.pool.Close()
}

// Acquire implements task.ConnectionProvider. It waits at most the configured
// acquire timeout for a free connection.
func (p *Provider) Acquire(ctx context.Context) (task.Conn, error) {
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			stat := p.pool.Stat()
			p.logger.Warn("timed out waiting for source connection",
				"timeout", p.acquireTimeout,
				"acquired_conns", stat.AcquiredConns(),
				"max_conns", stat.MaxConns())
			return nil, fmt.Errorf("timeout acquiring connection after %s: %w", p.acquireTimeout, err)
		}
		return nil, MapQueryError(err)
	}

	return &pooledConn{conn: conn}, nil
}

// pooledConn adapts a pooled connection to task.Conn.
type pooledConn struct {
	conn     *pgxpool.Conn
	released bool
}

// QueryCursor opens a read-only transaction and declares a forward-only
// cursor over query. The first batch is fetched immediately so the column
// names are known before any row is consumed.
func (c *pooledConn) QueryCursor(ctx context.Context, query string, fetchSize int) (task.Rows, error) {
	if fetchSize <= 0 {
		fetchSize = 1
	}

	tx, err := c.conn.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, MapQueryError(err)
	}

	declare := "DECLARE " + cursorName + " NO SCROLL CURSOR FOR " + query
	if _, err := tx.Exec(ctx, declare); err != nil {
		_ = tx.Rollback(ctx)
		return nil, MapQueryError(err)
	}

	r := &cursorRows{
		ctx:   ctx,
		tx:    tx,
		fetch: fmt.Sprintf("FETCH FORWARD %d FROM %s", fetchSize, cursorName),
	}
	if err := r.nextBatch(); err != nil {
		_ = tx.Rollback(ctx)
		return nil, MapQueryError(err)
	}
	return r, nil
}

// Release returns the connection to the pool.
func (c *pooledConn) Release() {
	if c.released {
		return
	}
	c.released = true
	c.conn.Release()
}

// cursorRows streams a declared cursor in batches of FETCH FORWARD.
type cursorRows struct {
	ctx      context.Context
	tx       pgx.Tx
	fetch    string
	batch    pgx.Rows
	columns  []string
	inBatch  int
	finished bool
	err      error
}

func (r *cursorRows) nextBatch() error {
	rows, err := r.tx.Query(r.ctx, r.fetch)
	if err != nil {
		return err
	}
	if r.columns == nil {
		fields := rows.FieldDescriptions()
		r.columns = make([]string, len(fields))
		for i, f := range fields {
			r.columns[i] = f.Name
		}
	}
	r.batch = rows
	r.inBatch = 0
	return nil
}

// Columns implements export.RowSource.
func (r *cursorRows) Columns() []string {
	return r.columns
}

// Next implements export.RowSource.
func (r *cursorRows) Next() bool {
	for !r.finished && r.err == nil {
		if r.batch.Next() {
			r.inBatch++
			return true
		}

		r.batch.Close()
		if err := r.batch.Err(); err != nil {
			r.err = MapQueryError(err)
			return false
		}
		// A batch with no rows means the cursor is exhausted.
		if r.inBatch == 0 {
			r.finished = true
			return false
		}
		if err := r.nextBatch(); err != nil {
			r.err = MapQueryError(err)
			return false
		}
	}
	return false
}

// Values implements export.RowSource.
func (r *cursorRows) Values() ([]any, error) {
	return r.batch.Values()
}

// Err implements export.RowSource.
func (r *cursorRows) Err() error {
	return r.err
}

// Close ends the read-only transaction, which also closes the cursor.
func (r *cursorRows) Close() error {
	if r.batch != nil {
		r.batch.Close()
	}
	err := r.tx.Rollback(r.ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
