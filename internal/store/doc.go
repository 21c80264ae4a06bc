// Package store defines the persistence abstractions shared by the step
// history stores: the DBTX interface, transaction helpers and store errors.
// Concrete implementations live in internal/platform/postgres.
package store
