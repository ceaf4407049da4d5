// Package processor assembles documents from interchange segments and
// decides, per document, whether a query keeps it.
package processor

import (
	"strconv"

	"github.com/filereduce/filereduce/internal/model"
	"github.com/filereduce/filereduce/pkg/edifact"
)

// Date qualifiers recognized on DTM.
const (
	QualifierDocumentDate = "137"
	QualifierDeliveryDate = "2"
)

// Party qualifiers recognized on NAD.
const (
	QualifierBuyer  = "BY"
	QualifierSeller = "SU"
)

// QualifierLineCount is the CNT qualifier for the number of lines.
const QualifierLineCount = "2"

// docTypes maps BGM document name codes to message names. Other codes are
// kept verbatim.
var docTypes = map[string]string{
	"220": "ORDERS",
	"230": "ORDCHG",
	"231": "ORDRSP",
	"351": "DESADV",
	"380": "INVOIC",
}

// DocType returns the message name for a BGM code.
func DocType(code string) string {
	if name, ok := docTypes[code]; ok {
		return name
	}
	return code
}

// Builder is the document state machine. It holds at most one open document
// and one open line. Interchange identifiers survive UNZ and are only
// replaced by the next UNB.
type Builder struct {
	interchangeID string
	sender        string
	receiver      string

	doc  *model.Document
	line *model.Line
}

// NewBuilder creates a builder with no open document.
func NewBuilder() *Builder {
	return &Builder{}
}

// Apply consumes one segment. When seg closes a document, the finished
// document is returned; otherwise the result is nil.
func (b *Builder) Apply(seg edifact.Segment) *model.Document {
	switch s := seg.(type) {
	case edifact.UNB:
		b.sender = s.Sender
		b.receiver = s.Receiver
		b.interchangeID = s.InterchangeID

	case edifact.UNH:
		b.doc = model.NewDocument(b.interchangeID, b.sender, b.receiver)
		b.line = nil

	case edifact.BGM:
		if b.doc != nil {
			b.doc.DocumentNumber = s.Number
			b.doc.DocType = DocType(s.Code)
		}

	case edifact.DTM:
		if b.doc == nil {
			break
		}
		switch s.Qualifier {
		case QualifierDocumentDate:
			b.doc.DocumentDate = stringPtr(s.Value)
		case QualifierDeliveryDate:
			b.doc.RequestedDeliveryDate = stringPtr(s.Value)
		}

	case edifact.NAD:
		if b.doc == nil {
			break
		}
		switch s.Qualifier {
		case QualifierBuyer:
			b.doc.Buyer = stringPtr(s.Party)
		case QualifierSeller:
			b.doc.Seller = stringPtr(s.Party)
		}

	case edifact.LIN:
		b.flushLine()
		lineNo, err := strconv.ParseUint(s.LineNo, 10, 64)
		if err != nil {
			lineNo = 0
		}
		b.line = &model.Line{LineNo: lineNo, SKU: s.SKU}

	case edifact.QTY:
		if b.line == nil {
			break
		}
		b.line.Qty = floatPtr(s.Quantity)
		b.line.UOM = nil
		if s.Unit != "" {
			b.line.UOM = stringPtr(s.Unit)
		}

	case edifact.MOA:
		if b.line != nil {
			b.line.Amount = floatPtr(s.Amount)
		}

	case edifact.CNT:
		if b.doc != nil && s.Qualifier == QualifierLineCount {
			if n, err := strconv.ParseUint(s.Value, 10, 64); err == nil {
				b.doc.LineCountCheck = &n
			} else {
				b.doc.LineCountCheck = nil
			}
		}

	case edifact.CUX:
		if b.doc != nil {
			b.doc.Currency = s.Currency
		}

	case edifact.UNT:
		b.flushLine()
		doc := b.doc
		b.doc = nil
		return doc

	case edifact.UNZ:
	}
	return nil
}

// Open reports whether a document is being assembled.
func (b *Builder) Open() bool {
	return b.doc != nil
}

// flushLine appends the open line to the open document. Without an open
// document the line is discarded.
func (b *Builder) flushLine() {
	if b.line == nil {
		return
	}
	if b.doc != nil {
		b.doc.Lines = append(b.doc.Lines, *b.line)
	}
	b.line = nil
}

func stringPtr(s string) *string {
	return &s
}

// floatPtr parses s; an unparsable value leaves the field unset.
func floatPtr(s string) *float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
