// Package sqlsource serves export cursors from any database/sql driver. It
// registers the DuckDB driver and the pgx stdlib driver, and converts
// driver-specific values the exporter does not know into ones it does.
package sqlsource
