// Package export writes query results to JSONL, XLSX or Parquet.
package export

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/filereduce/filereduce/internal/model"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

// Format is a result file format.
type Format uint8

const (
	FormatJSONL Format = iota
	FormatXLSX
	FormatParquet
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatXLSX:
		return "xlsx"
	case FormatParquet:
		return "parquet"
	default:
		return "jsonl"
	}
}

// FormatFor picks a format from the extension of path.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json", "":
		return FormatJSONL, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".parquet":
		return FormatParquet, nil
	}
	return 0, ferrors.New(ferrors.CodeExportFailed, "unsupported result format").WithContext("path", path)
}

// Write writes rows to a local file whose extension selects the format.
func Write(path string, rows []model.Row) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return ferrors.Wrap(err, ferrors.CodeWriteFailed, "create result file").WithContext("path", path)
	}
	if err := Encode(f, format, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return ferrors.Wrap(err, ferrors.CodeWriteFailed, "close result file").WithContext("path", path)
	}
	return nil
}

// Encode writes rows to w in format. w is not closed.
func Encode(w io.Writer, format Format, rows []model.Row) error {
	var err error
	switch format {
	case FormatXLSX:
		err = encodeXLSX(w, rows)
	case FormatParquet:
		err = encodeParquet(w, rows)
	default:
		err = encodeJSONL(w, rows)
	}
	if err != nil {
		return ferrors.Wrap(err, ferrors.CodeExportFailed, "export results").WithContext("format", format.String())
	}
	return nil
}

func encodeJSONL(w io.Writer, rows []model.Row) error {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	for _, row := range rows {
		if err := enc.Encode(row.Map()); err != nil {
			return err
		}
	}
	return buf.Flush()
}

// kindColumn holds the row kind in tabular outputs.
const kindColumn = "kind"

// Columns returns the sorted union of field names across rows. The kind
// column is not included.
func Columns(rows []model.Row) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for name := range row.Fields {
			if name != kindColumn {
				seen[name] = struct{}{}
			}
		}
	}
	cols := make([]string, 0, len(seen))
	for name := range seen {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}

// numericColumn reports whether every row that has name holds a Number there.
func numericColumn(rows []model.Row, name string) bool {
	for _, row := range rows {
		if v, ok := row.Get(name); ok && !v.IsNumber() {
			return false
		}
	}
	return true
}
