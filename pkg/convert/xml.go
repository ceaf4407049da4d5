package convert

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"io"

	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

// recordElements open a record wherever they appear.
var recordElements = map[string]bool{
	"record": true,
	"item":   true,
	"row":    true,
}

// EachXMLRecord streams r and passes every record element to fn as a JSON
// object mapping each direct child element name to its text.
func EachXMLRecord(r io.Reader, fn RecordFunc) error {
	dec := xml.NewDecoder(r)

	var (
		record map[string]string
		field  string
		text   []byte
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return ferrors.Wrap(err, ferrors.CodeInvalidFormat, "invalid XML")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if recordElements[name] {
				record = make(map[string]string)
				field = ""
				continue
			}
			field = name
			text = text[:0]

		case xml.CharData:
			if field != "" {
				text = append(text, t...)
			}

		case xml.EndElement:
			name := t.Name.Local
			if recordElements[name] {
				if record == nil {
					continue
				}
				data, err := json.Marshal(record)
				if err != nil {
					return ferrors.Wrap(err, ferrors.CodeInvalidFormat, "encode record")
				}
				record = nil
				if err := fn(data); err != nil {
					return err
				}
				continue
			}
			if name == field {
				if record != nil {
					record[field] = string(bytes.TrimSpace(text))
				}
				field = ""
			}
		}
	}
}

// XMLRecords copies the records of r to w as JSON lines.
func XMLRecords(r io.Reader, w io.Writer) (int64, error) {
	return copyRecords(w, func(fn RecordFunc) error { return EachXMLRecord(r, fn) })
}
