package engine

import "github.com/filereduce/filereduce/internal/model"

// RowSource yields rows one at a time until it reports false.
type RowSource interface {
	Next() (model.Row, bool)
}

// ErrSource is a RowSource that can stop early because of a failure.
// Err returns that failure once Next has reported false.
type ErrSource interface {
	RowSource
	Err() error
}

// SliceSource replays an in-memory list of rows.
type SliceSource struct {
	rows []model.Row
	pos  int
}

// NewSliceSource creates a source over rows.
func NewSliceSource(rows []model.Row) *SliceSource {
	return &SliceSource{rows: rows}
}

// Next returns the next row.
func (s *SliceSource) Next() (model.Row, bool) {
	if s.pos >= len(s.rows) {
		return model.Row{}, false
	}
	row := s.rows[s.pos]
	s.pos++
	return row, true
}

// Reset rewinds the source to its first row.
func (s *SliceSource) Reset() {
	s.pos = 0
}
