package export

// sliceSource is an in-memory RowSource for tests.
type sliceSource struct {
	columns []string
	rows    [][]any
	pos     int
	// failAt makes Next fail once pos reaches it; -1 disables.
	failAt  int
	failErr error
	err     error
	// nextCalls counts calls to Next.
	nextCalls int
}

func newSliceSource(columns []string, rows ...[]any) *sliceSource {
	return &sliceSource{columns: columns, rows: rows, failAt: -1}
}

func (s *sliceSource) Columns() []string { return s.columns }

func (s *sliceSource) Next() bool {
	s.nextCalls++
	if s.failAt >= 0 && s.pos >= s.failAt {
		s.err = s.failErr
		return false
	}
	if s.pos >= len(s.rows) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceSource) Values() ([]any, error) {
	return s.rows[s.pos-1], nil
}

func (s *sliceSource) Err() error { return s.err }
