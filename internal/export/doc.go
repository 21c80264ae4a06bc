// Package export streams tabular query results into the canonical
// comma-separated artifact format: one header row of column names followed by
// one row per record, RFC 4180 style quoting, and type-aware value rendering
// that never depends on locale or scientific notation.
package export
