package sqlsource

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/marcboeker/go-duckdb"

	"github.com/phrazzld/taskexport/internal/export"
	"github.com/phrazzld/taskexport/internal/platform/postgres"
)

// convert maps driver-specific values onto types export.FormatValue renders.
func convert(v any) any {
	switch x := v.(type) {
	case duckdb.Decimal:
		if x.Value == nil {
			return nil
		}
		return export.Decimal{Unscaled: x.Value, Scale: int32(x.Scale)}
	case *duckdb.Decimal:
		if x == nil || x.Value == nil {
			return nil
		}
		return export.Decimal{Unscaled: x.Value, Scale: int32(x.Scale)}
	case duckdb.Interval:
		return formatInterval(x)
	default:
		return v
	}
}

// formatInterval renders a DuckDB interval in ISO 8601 duration form.
func formatInterval(iv duckdb.Interval) string {
	years, months := iv.Months/12, iv.Months%12
	s := "P"
	if years != 0 {
		s += fmt.Sprintf("%dY", years)
	}
	if months != 0 {
		s += fmt.Sprintf("%dM", months)
	}
	if iv.Days != 0 {
		s += fmt.Sprintf("%dD", iv.Days)
	}
	if iv.Micros != 0 {
		secs := iv.Micros / 1_000_000
		micros := iv.Micros % 1_000_000
		if micros < 0 {
			micros = -micros
		}
		if micros == 0 {
			s += fmt.Sprintf("T%dS", secs)
		} else {
			s += fmt.Sprintf("T%d.%06dS", secs, micros)
		}
	}
	if s == "P" {
		return "P0D"
	}
	return s
}

// mapError labels driver errors by category so the retry classifier sees a
// consistent vocabulary across drivers.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return postgres.MapQueryError(err)
	}

	var duckErr *duckdb.Error
	if errors.As(err, &duckErr) {
		if label := duckdbLabel(duckErr.Type); label != "" {
			return fmt.Errorf("%s: %w", label, err)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timeout: %w", err)
	}
	return err
}

func duckdbLabel(t duckdb.ErrorType) string {
	switch t {
	case duckdb.ErrorTypeParser, duckdb.ErrorTypeSyntax:
		return "syntax error"
	case duckdb.ErrorTypeCatalog, duckdb.ErrorTypeBinder:
		return "object does not exist"
	case duckdb.ErrorTypePermission:
		return "permission denied"
	case duckdb.ErrorTypeConnection, duckdb.ErrorTypeNetwork:
		return "connection unavailable"
	case duckdb.ErrorTypeOutOfMemory:
		return "out of memory"
	case duckdb.ErrorTypeInterrupt:
		return "timeout"
	}
	return ""
}
