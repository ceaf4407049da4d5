package edifact

// Segment is the typed interpretation of one line.
type Segment interface {
	SegmentTag() string
}

// UNB is the interchange header.
type UNB struct {
	Sender        string
	Receiver      string
	InterchangeID string
}

// UNH opens a message.
type UNH struct{}

// BGM carries the document type code and number.
type BGM struct {
	Code   string
	Number string
}

// DTM is a qualified date.
type DTM struct {
	Qualifier string
	Value     string
}

// NAD names a party by role.
type NAD struct {
	Qualifier string
	Party     string
}

// LIN opens a line item. LineNo is unparsed.
type LIN struct {
	LineNo string
	SKU    string
}

// QTY is a qualified quantity with an optional unit.
type QTY struct {
	Qualifier string
	Quantity  string
	Unit      string
}

// MOA is a qualified monetary amount.
type MOA struct {
	Qualifier string
	Amount    string
}

// CNT is a control total.
type CNT struct {
	Qualifier string
	Value     string
}

// CUX is the document currency.
type CUX struct {
	Currency string
}

// UNT closes a message.
type UNT struct{}

// UNZ closes the interchange.
type UNZ struct{}

// Unknown is any tag without a typed interpretation.
type Unknown struct {
	Tag string
}

func (UNB) SegmentTag() string { return "UNB" }
func (UNH) SegmentTag() string { return "UNH" }
func (BGM) SegmentTag() string { return "BGM" }
func (DTM) SegmentTag() string { return "DTM" }
func (NAD) SegmentTag() string { return "NAD" }
func (LIN) SegmentTag() string { return "LIN" }
func (QTY) SegmentTag() string { return "QTY" }
func (MOA) SegmentTag() string { return "MOA" }
func (CNT) SegmentTag() string { return "CNT" }
func (CUX) SegmentTag() string { return "CUX" }
func (UNT) SegmentTag() string { return "UNT" }
func (UNZ) SegmentTag() string { return "UNZ" }

func (u Unknown) SegmentTag() string { return u.Tag }

// Parse interprets one segment line.
//
// Header-like fields are read leniently and default to "". The qualifier
// group of DTM, NAD, QTY, MOA and CNT is required: a line that lacks it
// returns an error with code E203.
func Parse(line string) (Segment, error) {
	return Interpret(Tokenize(line))
}

// Interpret is Parse for an already tokenized segment.
func Interpret(s RawSegment) (Segment, error) {
	switch s.Tag {
	case "UNB":
		return UNB{
			Sender:        s.Optional(2, 0),
			Receiver:      s.Optional(3, 0),
			InterchangeID: s.Optional(5, 0),
		}, nil

	case "UNH":
		return UNH{}, nil

	case "BGM":
		return BGM{Code: s.Optional(1, 0), Number: s.Optional(2, 0)}, nil

	case "DTM":
		if _, err := s.Required(1, 0); err != nil {
			return nil, err
		}
		return DTM{Qualifier: s.Optional(1, 0), Value: s.Optional(1, 1)}, nil

	case "NAD":
		q, err := s.Required(1, 0)
		if err != nil {
			return nil, err
		}
		return NAD{Qualifier: q, Party: s.Optional(2, 0)}, nil

	case "LIN":
		return LIN{LineNo: s.Optional(1, 0), SKU: s.Optional(3, 0)}, nil

	case "QTY":
		q, v, err := qualified(s)
		if err != nil {
			return nil, err
		}
		return QTY{Qualifier: q, Quantity: v, Unit: s.Optional(1, 2)}, nil

	case "MOA":
		q, v, err := qualified(s)
		if err != nil {
			return nil, err
		}
		return MOA{Qualifier: q, Amount: v}, nil

	case "CNT":
		q, v, err := qualified(s)
		if err != nil {
			return nil, err
		}
		return CNT{Qualifier: q, Value: v}, nil

	case "CUX":
		return CUX{Currency: s.Optional(1, 1)}, nil

	case "UNT":
		return UNT{}, nil

	case "UNZ":
		return UNZ{}, nil
	}
	return Unknown{Tag: s.Tag}, nil
}

// qualified reads the mandatory qualifier:value pair in group 1.
func qualified(s RawSegment) (string, string, error) {
	q, err := s.Required(1, 0)
	if err != nil {
		return "", "", err
	}
	v, err := s.Required(1, 1)
	if err != nil {
		return "", "", err
	}
	return q, v, nil
}
