package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrExport marks failures raised while producing an export. Callers treat
// any partially written sink as invalid when they see it.
var ErrExport = errors.New("export failed")

// RowSource yields rows one at a time. Column names are known before the
// first call to Next.
type RowSource interface {
	// Columns returns the result column names in result order.
	Columns() []string
	// Next advances to the next row, returning false when the rows are
	// exhausted or an error occurred.
	Next() bool
	// Values returns the current row's values, one per column.
	Values() ([]any, error)
	// Err returns the error, if any, that stopped iteration.
	Err() error
}

// Exporter writes a RowSource as delimited text.
type Exporter struct {
	// Delimiter separates fields. Defaults to ','.
	Delimiter rune
	// BufferSize is the size of the write buffer in bytes.
	BufferSize int
}

// New returns an Exporter producing comma-separated output.
func New() *Exporter {
	return &Exporter{Delimiter: ',', BufferSize: 64 * 1024}
}

// Export writes the header row and every data row of src to w, returning the
// number of data rows written. Rows are consumed and written incrementally;
// at most one row is held in memory at a time. Any failure is wrapped in
// ErrExport.
func (e *Exporter) Export(w io.Writer, src RowSource) (int64, error) {
	delim := e.Delimiter
	if delim == 0 {
		delim = ','
	}
	size := e.BufferSize
	if size <= 0 {
		size = 64 * 1024
	}

	bw := bufio.NewWriterSize(w, size)
	columns := src.Columns()

	if err := writeRecord(bw, columns, delim); err != nil {
		return 0, fmt.Errorf("%w: write header: %v", ErrExport, err)
	}

	fields := make([]string, len(columns))
	var rows int64

	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return rows, fmt.Errorf("%w: read row %d: %v", ErrExport, rows+1, err)
		}
		if len(values) != len(columns) {
			return rows, fmt.Errorf("%w: row %d has %d values for %d columns",
				ErrExport, rows+1, len(values), len(columns))
		}

		for i, v := range values {
			fields[i] = FormatValue(v)
		}
		if err := writeRecord(bw, fields, delim); err != nil {
			return rows, fmt.Errorf("%w: write row %d: %v", ErrExport, rows+1, err)
		}
		rows++
	}

	if err := src.Err(); err != nil {
		return rows, fmt.Errorf("%w: read rows: %v", ErrExport, err)
	}

	if err := bw.Flush(); err != nil {
		return rows, fmt.Errorf("%w: flush: %v", ErrExport, err)
	}

	return rows, nil
}

func writeRecord(w *bufio.Writer, fields []string, delim rune) error {
	for i, f := range fields {
		if i > 0 {
			if _, err := w.WriteRune(delim); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(Escape(f, delim)); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

// Escape quotes field when it contains the delimiter, a double quote, or a
// line break, doubling any embedded double quotes. Other fields are returned
// unchanged.
func Escape(field string, delim rune) string {
	if !strings.ContainsRune(field, delim) && !strings.ContainsAny(field, "\"\n\r") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
