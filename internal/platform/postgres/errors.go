package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/phrazzld/taskexport/internal/store"
)

// PostgreSQL error codes
const (
	// uniqueViolationCode is the PostgreSQL error code for unique constraint violations
	uniqueViolationCode = "23505"

	// checkViolationCode is the PostgreSQL error code for check constraint violations
	checkViolationCode = "23514"

	// notNullViolationCode is the PostgreSQL error code for not null violations
	notNullViolationCode = "23502"

	insufficientPrivilegeCode = "42501"
	syntaxErrorCode           = "42601"
	undefinedTableCode        = "42P01"
	undefinedColumnCode       = "42703"
	undefinedFunctionCode     = "42883"
	invalidSchemaNameCode     = "3F000"
	tooManyConnectionsCode    = "53300"
	queryCanceledCode         = "57014"
	serializationFailureCode  = "40001"
	deadlockDetectedCode      = "40P01"
)

// MapError maps a database error from the step store to an appropriate store error.
// It wraps the original error to preserve context.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
		case checkViolationCode:
			return fmt.Errorf(
				"%w: check constraint violation (%s): %v",
				store.ErrInvalidEntity,
				pgErr.ConstraintName,
				err,
			)
		case notNullViolationCode:
			return fmt.Errorf(
				"%w: not null violation (%s): %v",
				store.ErrInvalidEntity,
				pgErr.ColumnName,
				err,
			)
		}
	}

	return err
}

// IsUniqueViolation checks if the given error is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// MapQueryError labels an error raised while acquiring a connection or
// running an export query with a phrase describing its SQLSTATE class, so the
// failure reads the same regardless of how the server worded its message.
// Errors that are not recognised are returned unchanged.
func MapQueryError(err error) error {
	if err == nil {
		return nil
	}
	if label := queryErrorLabel(err); label != "" {
		return fmt.Errorf("%s: %w", label, err)
	}
	return err
}

func queryErrorLabel(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case insufficientPrivilegeCode:
			return "permission denied"
		case syntaxErrorCode:
			return "syntax error"
		case undefinedTableCode, undefinedColumnCode, undefinedFunctionCode, invalidSchemaNameCode:
			return "object does not exist"
		case tooManyConnectionsCode:
			return "too many connections"
		case queryCanceledCode:
			return "statement timeout"
		case serializationFailureCode, deadlockDetectedCode:
			return "deadlock or serialization failure, try again"
		}

		switch sqlStateClass(pgErr.Code) {
		case "08":
			return "connection unavailable"
		case "28":
			return "authentication failed"
		case "42":
			return "syntax error or access rule violation"
		case "53":
			return "resource exhausted"
		case "57":
			return "service unavailable"
		}
		return ""
	}

	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return "connection unavailable"
	}
	return ""
}

func sqlStateClass(code string) string {
	if len(code) < 2 {
		return ""
	}
	return code[:2]
}
