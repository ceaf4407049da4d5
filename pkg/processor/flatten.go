package processor

import (
	"github.com/filereduce/filereduce/internal/model"
	"github.com/filereduce/filereduce/pkg/query"
	"github.com/filereduce/filereduce/pkg/query/engine"
)

// HeaderRow returns the UNH row describing a document's header. Optional
// attributes are present only when set.
func HeaderRow(doc *model.Document) model.Row {
	row := model.NewRow(model.RowUNH)
	row.Set("number", model.Text(doc.DocumentNumber))
	row.Set("doc_type", model.Text(doc.DocType))
	row.Set("interchange_id", model.Text(doc.InterchangeID))
	row.Set("sender", model.Text(doc.Sender))
	row.Set("receiver", model.Text(doc.Receiver))
	row.Set("currency", model.Text(doc.Currency))
	setText(&row, "date", doc.DocumentDate)
	setText(&row, "delivery_date", doc.RequestedDeliveryDate)
	setText(&row, "buyer", doc.Buyer)
	setText(&row, "seller", doc.Seller)
	if doc.LineCountCheck != nil {
		row.Set("line_count", model.Number(float64(*doc.LineCountCheck)))
	}
	return row
}

// LineRow merges the header row with one line's fields into a LIN row.
func LineRow(header model.Row, line model.Line) model.Row {
	row := header.Clone()
	row.Kind = model.RowLIN
	row.Set("line_no", model.Number(float64(line.LineNo)))
	row.Set("sku", model.Text(line.SKU))
	if line.Qty != nil {
		row.Set("qty", model.Number(*line.Qty))
	}
	if line.Amount != nil {
		row.Set("amount", model.Number(*line.Amount))
	}
	setText(&row, "uom", line.UOM)
	return row
}

// Flatten returns the rows a document is queried through: the header row
// alone when the document has no lines, otherwise one LIN row per line.
func Flatten(doc *model.Document) []model.Row {
	header := HeaderRow(doc)
	if len(doc.Lines) == 0 {
		return []model.Row{header}
	}
	rows := make([]model.Row, len(doc.Lines))
	for i, line := range doc.Lines {
		rows[i] = LineRow(header, line)
	}
	return rows
}

// Keep reports whether filter accepts doc: true without a filter, otherwise
// true as soon as one flattened row matches.
func Keep(filter query.Expr, doc *model.Document) bool {
	if filter == nil {
		return true
	}
	header := HeaderRow(doc)
	if len(doc.Lines) == 0 {
		return engine.Eval(filter, header)
	}
	for _, line := range doc.Lines {
		if engine.Eval(filter, LineRow(header, line)) {
			return true
		}
	}
	return false
}

func setText(row *model.Row, name string, v *string) {
	if v != nil {
		row.Set(name, model.Text(*v))
	}
}
