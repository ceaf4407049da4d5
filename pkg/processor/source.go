package processor

import (
	"io"
	"strconv"
	"strings"

	"github.com/filereduce/filereduce/internal/model"
	"github.com/filereduce/filereduce/pkg/edifact"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

// DocumentRowSource yields the flattened rows of every document in an
// interchange stream, in document order.
type DocumentRowSource struct {
	scanner *edifact.Scanner
	builder *Builder
	pending []model.Row
	err     error
	done    bool

	documents int64
}

// NewDocumentRowSource creates a source reading segments from r.
func NewDocumentRowSource(r io.Reader) *DocumentRowSource {
	return &DocumentRowSource{
		scanner: edifact.NewScanner(r),
		builder: NewBuilder(),
	}
}

// Next returns the next row. It returns false at the end of input or after a
// failure; see Err.
func (s *DocumentRowSource) Next() (model.Row, bool) {
	for len(s.pending) == 0 {
		if s.done || !s.fill() {
			return model.Row{}, false
		}
	}
	row := s.pending[0]
	s.pending = s.pending[1:]
	return row, true
}

// fill feeds segments to the builder until a document completes.
func (s *DocumentRowSource) fill() bool {
	for s.scanner.Scan() {
		seg, err := edifact.Parse(s.scanner.Text())
		if err != nil {
			s.fail(addLine(err, s.scanner.Line()))
			return false
		}
		if doc := s.builder.Apply(seg); doc != nil {
			s.documents++
			s.pending = Flatten(doc)
			return true
		}
	}
	if err := s.scanner.Err(); err != nil {
		s.fail(ferrors.Wrap(err, ferrors.CodeReadFailed, "read input"))
		return false
	}
	s.done = true
	return false
}

func (s *DocumentRowSource) fail(err error) {
	s.err = err
	s.done = true
}

// Err returns the failure that ended the stream, if any.
func (s *DocumentRowSource) Err() error { return s.err }

// Documents returns the number of documents completed so far.
func (s *DocumentRowSource) Documents() int64 { return s.documents }

// SegmentRowSource yields one row per interesting segment rather than per
// document. BGM and NAD rows are emitted as they are read; a LIN row
// collects the QTY, MOA and PRI segments that follow it and is emitted when
// the next LIN, UNS or UNT arrives or the input ends.
type SegmentRowSource struct {
	scanner *edifact.Scanner
	current *model.Row
	pending []model.Row
	err     error
	done    bool
}

// NewSegmentRowSource creates a segment-level source over r.
func NewSegmentRowSource(r io.Reader) *SegmentRowSource {
	return &SegmentRowSource{scanner: edifact.NewScanner(r)}
}

// Next returns the next segment row.
func (s *SegmentRowSource) Next() (model.Row, bool) {
	for len(s.pending) == 0 {
		if s.done {
			return model.Row{}, false
		}
		s.step()
	}
	row := s.pending[0]
	s.pending = s.pending[1:]
	return row, true
}

// Err returns the failure that ended the stream, if any.
func (s *SegmentRowSource) Err() error { return s.err }

func (s *SegmentRowSource) step() {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			s.err = ferrors.Wrap(err, ferrors.CodeReadFailed, "read input")
		}
		s.flushLine()
		s.done = true
		return
	}

	raw := edifact.Tokenize(s.scanner.Text())
	seg, err := edifact.Interpret(raw)
	if err != nil {
		s.err = addLine(err, s.scanner.Line())
		s.done = true
		return
	}

	switch t := seg.(type) {
	case edifact.UNH:
		row := rawRow(model.RowUNH, raw)
		row.Set("message_ref", model.Text(raw.Optional(1, 0)))
		row.Set("message_type", model.Text(raw.Optional(2, 0)))
		s.pending = append(s.pending, row)

	case edifact.BGM:
		row := rawRow(model.RowBGM, raw)
		row.Set("code", model.Text(t.Code))
		row.Set("number", model.Text(t.Number))
		row.Set("doc_type", model.Text(DocType(t.Code)))
		s.pending = append(s.pending, row)

	case edifact.NAD:
		row := rawRow(model.RowNAD, raw)
		row.Set("qualifier", model.Text(t.Qualifier))
		row.Set("party", model.Text(t.Party))
		s.pending = append(s.pending, row)

	case edifact.LIN:
		s.flushLine()
		row := model.NewRow(model.RowLIN)
		if n, err := strconv.ParseFloat(t.LineNo, 64); err == nil {
			row.Set("line", model.Number(n))
		}
		if t.SKU != "" {
			row.Set("item", model.Text(t.SKU))
		}
		s.current = &row

	case edifact.QTY:
		s.enrich("qty", t.Quantity)
	case edifact.MOA:
		s.enrich("amount", t.Amount)

	case edifact.Unknown:
		switch t.Tag {
		case "PRI":
			s.enrich("price", raw.Optional(1, 1))
		case "UNS":
			s.flushLine()
			s.pending = append(s.pending, rawRow(model.RowUNS, raw))
		}

	case edifact.UNT:
		s.flushLine()
		row := rawRow(model.RowUNT, raw)
		if n, err := strconv.ParseFloat(raw.Optional(1, 0), 64); err == nil {
			row.Set("segment_count", model.Number(n))
		}
		row.Set("message_ref", model.Text(raw.Optional(2, 0)))
		s.pending = append(s.pending, row)
	}
}

// enrich sets a numeric field on the open LIN row. Unparsable values and
// segments outside a line are ignored.
func (s *SegmentRowSource) enrich(field, value string) {
	if s.current == nil {
		return
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		s.current.Set(field, model.Number(f))
	}
}

func (s *SegmentRowSource) flushLine() {
	if s.current != nil {
		s.pending = append(s.pending, *s.current)
		s.current = nil
	}
}

func rawRow(kind model.RowKind, raw edifact.RawSegment) model.Row {
	row := model.NewRow(kind)
	row.Set("raw", model.Text(strings.Join(raw.Elements(), "|")))
	return row
}
