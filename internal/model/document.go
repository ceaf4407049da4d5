package model

// CurrencyUnknown is the currency of a document that never saw a CUX segment.
const CurrencyUnknown = "UNKNOWN"

// Document is one business document assembled between its UNH and UNT
// segments. Optional attributes are nil until the matching segment is seen.
type Document struct {
	InterchangeID         string  `json:"interchange_id"`
	Sender                string  `json:"sender"`
	Receiver              string  `json:"receiver"`
	DocType               string  `json:"doc_type"`
	DocumentNumber        string  `json:"document_number"`
	DocumentDate          *string `json:"document_date"`
	RequestedDeliveryDate *string `json:"requested_delivery_date"`
	Currency              string  `json:"currency"`
	Buyer                 *string `json:"buyer"`
	Seller                *string `json:"seller"`
	LineCountCheck        *uint64 `json:"line_count_check"`
	Lines                 []Line  `json:"lines"`
}

// NewDocument creates a document seeded with the interchange identifiers.
func NewDocument(interchangeID, sender, receiver string) *Document {
	return &Document{
		InterchangeID: interchangeID,
		Sender:        sender,
		Receiver:      receiver,
		Currency:      CurrencyUnknown,
		Lines:         []Line{},
	}
}

// Line is one document line opened by a LIN segment.
type Line struct {
	LineNo uint64   `json:"line_no"`
	SKU    string   `json:"sku"`
	Qty    *float64 `json:"qty"`
	UOM    *string  `json:"uom"`
	Amount *float64 `json:"amount"`
}
