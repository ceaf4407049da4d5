// Package model defines the core data structures shared by the query engine
// and the document builder.
package model

import (
	"fmt"
	"sort"
	"strconv"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindNumber ValueKind = iota
	KindText
)

// Value is a typed cell: either a Number or a Text.
// Two values are equal only when both the kind and the payload match.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
}

// Number creates a numeric value.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

// Text creates a text value.
func Text(s string) Value {
	return Value{Kind: KindText, Str: s}
}

// IsNumber reports whether v holds a Number.
func (v Value) IsNumber() bool { return v.Kind == KindNumber }

// IsText reports whether v holds a Text.
func (v Value) IsText() bool { return v.Kind == KindText }

// Equal is structural, type-sensitive equality.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	if v.Kind == KindNumber {
		return v.Num == o.Num
	}
	return v.Str == o.Str
}

// Interface returns the Go value held by v (float64 or string).
func (v Value) Interface() interface{} {
	if v.Kind == KindNumber {
		return v.Num
	}
	return v.Str
}

// String renders v as a query literal.
func (v Value) String() string {
	if v.Kind == KindNumber {
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	}
	return "'" + v.Str + "'"
}

// RowKind identifies the origin of a row.
type RowKind uint8

const (
	RowBGM RowKind = iota
	RowNAD
	RowLIN
	RowUNH
	RowUNS
	RowUNT
)

var rowKindNames = [...]string{"BGM", "NAD", "LIN", "UNH", "UNS", "UNT"}

// String returns the segment tag the kind is named after.
func (k RowKind) String() string {
	if int(k) < len(rowKindNames) {
		return rowKindNames[k]
	}
	return fmt.Sprintf("RowKind(%d)", uint8(k))
}

// ParseRowKind parses a segment tag into a RowKind.
func ParseRowKind(s string) (RowKind, bool) {
	for i, name := range rowKindNames {
		if name == s {
			return RowKind(i), true
		}
	}
	return 0, false
}

// Row is a flat, tagged record. A field missing from Fields is distinct
// from a field present with any value.
type Row struct {
	Kind   RowKind
	Fields map[string]Value
}

// NewRow creates an empty row of the given kind.
func NewRow(kind RowKind) Row {
	return Row{Kind: kind, Fields: make(map[string]Value)}
}

// Get returns the value stored under name.
func (r Row) Get(name string) (Value, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Set stores a value under name.
func (r *Row) Set(name string, v Value) {
	if r.Fields == nil {
		r.Fields = make(map[string]Value)
	}
	r.Fields[name] = v
}

// Clone returns a copy that shares no map with r.
func (r Row) Clone() Row {
	c := Row{Kind: r.Kind, Fields: make(map[string]Value, len(r.Fields))}
	for k, v := range r.Fields {
		c.Fields[k] = v
	}
	return c
}

// Project copies only the named fields into a new row of the same kind.
// Names missing from r stay missing in the result.
func (r Row) Project(names []string) Row {
	p := Row{Kind: r.Kind, Fields: make(map[string]Value, len(names))}
	for _, name := range names {
		if v, ok := r.Fields[name]; ok {
			p.Fields[name] = v
		}
	}
	return p
}

// Names returns the field names of r in sorted order.
func (r Row) Names() []string {
	names := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns the row as a plain map including its kind, for serialization.
func (r Row) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.Fields)+1)
	for k, v := range r.Fields {
		m[k] = v.Interface()
	}
	m["kind"] = r.Kind.String()
	return m
}
