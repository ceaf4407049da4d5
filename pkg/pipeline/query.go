package pipeline

import (
	"context"
	"encoding/json"
	"io"

	"go.opentelemetry.io/otel/attribute"

	"github.com/filereduce/filereduce/internal/model"
	"github.com/filereduce/filereduce/pkg/convert"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
	"github.com/filereduce/filereduce/pkg/processor"
	"github.com/filereduce/filereduce/pkg/query"
	"github.com/filereduce/filereduce/pkg/query/engine"
	"github.com/filereduce/filereduce/pkg/telemetry"
)

// QueryOptions configures Query.
type QueryOptions struct {
	// Segments scans segment-level rows instead of flattened documents.
	Segments bool
}

// Query runs statement over the rows of input. EDIFACT inputs yield the
// flattened rows of every document, or segment rows with Segments set;
// JSON and XML records yield one UNH row each.
func (r *Runner) Query(ctx context.Context, input, statement string, opts QueryOptions) (res *engine.Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, "filereduce.query",
		attribute.String("input", input),
		attribute.String("query", statement),
		attribute.Bool("segments", opts.Segments),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	q, err := query.ParseQuery(statement)
	if err != nil {
		return nil, err
	}

	in, err := r.cfg.Storage.Open(ctx, input)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	format := processor.DetectFormat(input)
	if r.format != nil {
		format = *r.format
	}

	source, err := rowSource(in, format, opts)
	if err != nil {
		return nil, err
	}

	res, err = engine.New(q, source).Run()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("scanned", res.Scanned),
		attribute.Int64("matched", res.Matched),
	)
	return res, nil
}

func rowSource(r io.Reader, format processor.Format, opts QueryOptions) (engine.RowSource, error) {
	switch format {
	case processor.FormatEDIFACT:
		if opts.Segments {
			return processor.NewSegmentRowSource(r), nil
		}
		return processor.NewDocumentRowSource(r), nil
	case processor.FormatJSON:
		return recordRows(func(fn convert.RecordFunc) error { return convert.EachJSONLine(r, fn) })
	case processor.FormatXML:
		return recordRows(func(fn convert.RecordFunc) error { return convert.EachXMLRecord(r, fn) })
	}
	return nil, ferrors.New(ferrors.CodeInvalidFormat, "unknown format").WithContext("format", format.String())
}

// recordRows loads every record of a JSON or XML input as a row.
func recordRows(each func(convert.RecordFunc) error) (engine.RowSource, error) {
	var rows []model.Row
	err := each(func(record json.RawMessage) error {
		row, err := processor.RecordRow(record)
		if err != nil {
			return ferrors.Wrap(err, ferrors.CodeInvalidFormat, "decode record")
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return engine.NewSliceSource(rows), nil
}
