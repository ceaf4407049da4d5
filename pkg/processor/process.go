package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/filereduce/filereduce/internal/model"
	"github.com/filereduce/filereduce/pkg/convert"
	"github.com/filereduce/filereduce/pkg/edifact"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
	"github.com/filereduce/filereduce/pkg/query"
	"github.com/filereduce/filereduce/pkg/query/engine"
	"github.com/filereduce/filereduce/pkg/sinks"
)

// Format is an input file format.
type Format uint8

const (
	FormatEDIFACT Format = iota
	FormatJSON
	FormatXML
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatXML:
		return "xml"
	default:
		return "edifact"
	}
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "edifact", "edi", "":
		return FormatEDIFACT, nil
	case "json", "jsonl":
		return FormatJSON, nil
	case "xml":
		return FormatXML, nil
	}
	return 0, ferrors.New(ferrors.CodeInvalidFormat, "unknown format").WithContext("format", s)
}

// DetectFormat guesses the format from a file name, ignoring compression
// suffixes. Anything unrecognized is EDIFACT.
func DetectFormat(path string) Format {
	name := strings.ToLower(path)
	for _, suffix := range []string{".gz", ".zst"} {
		name = strings.TrimSuffix(name, suffix)
	}
	switch filepath.Ext(name) {
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	case ".xml":
		return FormatXML
	}
	return FormatEDIFACT
}

// Stats counts what one Process call saw.
type Stats struct {
	Segments  int64 `json:"segments"`
	Unknown   int64 `json:"unknown_segments"`
	Documents int64 `json:"documents"`
	Lines     int64 `json:"lines"`
	Records   int64 `json:"records"`
	Kept      int64 `json:"kept"`
	Dropped   int64 `json:"dropped"`
}

// checkEvery is how many segments or records pass between context checks.
const checkEvery = 4096

// Process reads r in the given format and sends every item the filter keeps
// to sink, then flushes the sink. A nil filter keeps everything.
//
// A structurally short segment stops the run with an E203 error. Sink
// failures stop it too.
func Process(ctx context.Context, r io.Reader, sink sinks.Sink, format Format, filter query.Expr) (Stats, error) {
	var (
		stats Stats
		err   error
	)
	switch format {
	case FormatEDIFACT:
		err = processEDIFACT(ctx, r, sink, filter, &stats)
	case FormatJSON:
		err = processRecords(ctx, sink, filter, &stats, func(fn convert.RecordFunc) error {
			return convert.EachJSONLine(r, fn)
		})
	case FormatXML:
		err = processRecords(ctx, sink, filter, &stats, func(fn convert.RecordFunc) error {
			return convert.EachXMLRecord(r, fn)
		})
	default:
		err = ferrors.New(ferrors.CodeInvalidFormat, "unknown format").WithContext("format", format.String())
	}
	if err != nil {
		return stats, err
	}

	if err := sink.Flush(ctx); err != nil {
		return stats, ferrors.SinkFailed("flush", err)
	}
	return stats, nil
}

func processEDIFACT(ctx context.Context, r io.Reader, sink sinks.Sink, filter query.Expr, stats *Stats) error {
	scanner := edifact.NewScanner(r)
	builder := NewBuilder()

	for scanner.Scan() {
		stats.Segments++
		if stats.Segments%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return ferrors.Canceled("process")
			}
		}

		seg, err := edifact.Parse(scanner.Text())
		if err != nil {
			return addLine(err, scanner.Line())
		}
		if _, ok := seg.(edifact.Unknown); ok {
			stats.Unknown++
		}

		doc := builder.Apply(seg)
		if doc == nil {
			continue
		}
		stats.Documents++
		stats.Lines += int64(len(doc.Lines))

		if !Keep(filter, doc) {
			stats.Dropped++
			continue
		}
		if err := sink.Send(ctx, sinks.DocumentItem(doc)); err != nil {
			return ferrors.SinkFailed("send", err).WithContext("document", doc.DocumentNumber)
		}
		stats.Kept++
	}
	if err := scanner.Err(); err != nil {
		return ferrors.Wrap(err, ferrors.CodeReadFailed, "read input")
	}
	return nil
}

func processRecords(ctx context.Context, sink sinks.Sink, filter query.Expr, stats *Stats, each func(convert.RecordFunc) error) error {
	return each(func(record json.RawMessage) error {
		stats.Records++
		if stats.Records%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return ferrors.Canceled("process")
			}
		}

		if filter != nil {
			row, err := RecordRow(record)
			if err != nil {
				return ferrors.Wrap(err, ferrors.CodeInvalidFormat, "decode record")
			}
			if !engine.Eval(filter, row) {
				stats.Dropped++
				return nil
			}
		}
		if err := sink.Send(ctx, sinks.RawItem(record)); err != nil {
			return ferrors.SinkFailed("send", err)
		}
		stats.Kept++
		return nil
	})
}

// RecordRow exposes the scalar members of a JSON object as a UNH row:
// numbers as Number and strings as Text. Other members are left out.
func RecordRow(record json.RawMessage) (model.Row, error) {
	row := model.NewRow(model.RowUNH)

	var fields map[string]interface{}
	if err := json.Unmarshal(record, &fields); err != nil {
		return row, err
	}
	for k, v := range fields {
		switch t := v.(type) {
		case float64:
			row.Set(k, model.Number(t))
		case string:
			row.Set(k, model.Text(t))
		}
	}
	return row, nil
}

func addLine(err error, line int) error {
	var fe *ferrors.FileReduceError
	if errors.As(err, &fe) {
		fe.WithContext("line", line)
	}
	return err
}
