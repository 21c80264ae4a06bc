// Package postgres provides the PostgreSQL adapters: a pgx connection pool
// that serves read-only, server-side cursors to the task executor, the step
// history store, and the embedded goose migrations for that store.
package postgres
