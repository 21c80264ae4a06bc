package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"  // registers the "pgx" driver
	_ "github.com/marcboeker/go-duckdb" // registers the "duckdb" driver

	"github.com/phrazzld/taskexport/internal/config"
	"github.com/phrazzld/taskexport/internal/task"
)

// Supported values of config.SourceConfig.Driver.
const (
	DriverDuckDB = "duckdb"
	DriverPgxSQL = "pgx-sql"
)

// InMemoryDSN selects a private in-memory DuckDB database.
const InMemoryDSN = ":memory:"

// ErrUnsupportedDriver is returned for drivers this package cannot open.
var ErrUnsupportedDriver = errors.New("unsupported source driver")

// Provider hands out database/sql connections to the task executor.
type Provider struct {
	db             *sql.DB
	driver         string
	readOnlyTx     bool
	acquireTimeout time.Duration
	logger         *slog.Logger
}

var _ task.ConnectionProvider = (*Provider)(nil)

// Open opens a connection pool for cfg.
func Open(cfg config.SourceConfig, logger *slog.Logger) (*Provider, error) {
	var (
		driverName string
		dsn        = cfg.URL
		readOnlyTx bool
	)
	switch cfg.Driver {
	case DriverDuckDB:
		// go-duckdb rejects read-only transactions; open the database with
		// access_mode=READ_ONLY in the DSN instead.
		driverName = "duckdb"
		if dsn == InMemoryDSN {
			dsn = ""
		}
	case DriverPgxSQL:
		driverName = "pgx"
		readOnlyTx = true
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s source: %w", cfg.Driver, err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		db:             db,
		driver:         cfg.Driver,
		readOnlyTx:     readOnlyTx,
		acquireTimeout: cfg.AcquireTimeout,
		logger:         logger,
	}, nil
}

// DB exposes the underlying pool.
func (p *Provider) DB() *sql.DB {
	return p.db
}

// Ping verifies that a connection can be established.
func (p *Provider) Ping(ctx context.Context) error {
	return mapError(p.db.PingContext(ctx))
}

// Close closes the pool.
func (p *Provider) Close() error {
	return p.db.Close()
}

// Acquire implements task.ConnectionProvider.
func (p *Provider) Acquire(ctx context.Context) (task.Conn, error) {
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			stats := p.db.Stats()
			p.logger.Warn("timed out waiting for source connection",
				"driver", p.driver,
				"timeout", p.acquireTimeout,
				"in_use", stats.InUse,
				"max_open", stats.MaxOpenConnections)
			return nil, fmt.Errorf("timeout acquiring connection after %s: %w", p.acquireTimeout, err)
		}
		return nil, mapError(err)
	}

	return &sqlConn{conn: conn, readOnlyTx: p.readOnlyTx, logger: p.logger}, nil
}

type sqlConn struct {
	conn       *sql.Conn
	readOnlyTx bool
	logger     *slog.Logger
	released   bool
}

// QueryCursor runs query inside a transaction. database/sql drivers stream
// rows as they are read, so fetchSize is not passed on.
func (c *sqlConn) QueryCursor(ctx context.Context, query string, _ int) (task.Rows, error) {
	tx, err := c.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: c.readOnlyTx})
	if err != nil {
		return nil, mapError(err)
	}

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return nil, mapError(err)
	}

	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		_ = tx.Rollback()
		return nil, mapError(err)
	}

	return &sqlRows{
		rows:    rows,
		tx:      tx,
		columns: columns,
		dest:    make([]any, len(columns)),
		ptrs:    make([]any, len(columns)),
	}, nil
}

// Release returns the connection to the pool.
func (c *sqlConn) Release() {
	if c.released {
		return
	}
	c.released = true
	if err := c.conn.Close(); err != nil {
		c.logger.Warn("failed to release source connection", "error", err)
	}
}

type sqlRows struct {
	rows    *sql.Rows
	tx      *sql.Tx
	columns []string
	dest    []any
	ptrs    []any
}

func (r *sqlRows) Columns() []string {
	return r.columns
}

func (r *sqlRows) Next() bool {
	return r.rows.Next()
}

// Values scans the current row and converts driver-specific types.
func (r *sqlRows) Values() ([]any, error) {
	for i := range r.dest {
		r.dest[i] = nil
		r.ptrs[i] = &r.dest[i]
	}
	if err := r.rows.Scan(r.ptrs...); err != nil {
		return nil, mapError(err)
	}

	values := make([]any, len(r.dest))
	for i, v := range r.dest {
		values[i] = convert(v)
	}
	return values, nil
}

func (r *sqlRows) Err() error {
	return mapError(r.rows.Err())
}

func (r *sqlRows) Close() error {
	closeErr := r.rows.Close()
	rbErr := r.tx.Rollback()
	if rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		return errors.Join(closeErr, rbErr)
	}
	return closeErr
}
