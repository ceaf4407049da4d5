// Package convert normalizes JSON lines and XML record files into one JSON
// object per line.
package convert

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"

	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

const maxLineSize = 16 * 1024 * 1024

// RecordFunc receives one normalized record.
type RecordFunc func(record json.RawMessage) error

// EachJSONLine parses every non-blank line of r as JSON, drops null object
// members at every depth and passes the re-encoded value to fn.
func EachJSONLine(r io.Reader, fn RecordFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		normalized, err := NormalizeJSON([]byte(line))
		if err != nil {
			return ferrors.Wrap(err, ferrors.CodeInvalidFormat, "invalid JSON").
				WithContext("line", lineNum)
		}
		if err := fn(normalized); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return ferrors.Wrap(err, ferrors.CodeReadFailed, "read input")
	}
	return nil
}

// NormalizeJSON decodes one JSON value and re-encodes it without nulls
// inside objects. Numbers keep their original text.
func NormalizeJSON(data []byte) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, ferrors.New(ferrors.CodeInvalidFormat, "trailing data after JSON value")
	}
	return json.Marshal(dropNulls(v))
}

func dropNulls(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			out[k] = dropNulls(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = dropNulls(val)
		}
		return out
	}
	return v
}

// JSONLines copies r to w as normalized JSON lines.
func JSONLines(r io.Reader, w io.Writer) (int64, error) {
	return copyRecords(w, func(fn RecordFunc) error { return EachJSONLine(r, fn) })
}

func copyRecords(w io.Writer, each func(RecordFunc) error) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	err := each(func(record json.RawMessage) error {
		if _, err := bw.Write(record); err != nil {
			return ferrors.Wrap(err, ferrors.CodeWriteFailed, "write record")
		}
		if err := bw.WriteByte('\n'); err != nil {
			return ferrors.Wrap(err, ferrors.CodeWriteFailed, "write record")
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	if err := bw.Flush(); err != nil {
		return n, ferrors.Wrap(err, ferrors.CodeWriteFailed, "flush output")
	}
	return n, nil
}
