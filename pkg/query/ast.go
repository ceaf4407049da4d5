// Package query implements the filter/query language: tokenizer, recursive
// descent parser and the AST consumed by the engine and the document builder.
package query

import (
	"regexp"
	"strings"

	"github.com/filereduce/filereduce/internal/model"
	"github.com/filereduce/filereduce/pkg/query/cache"
)

// SortOrder is the direction of an ORDER BY clause.
type SortOrder uint8

const (
	Asc SortOrder = iota
	Desc
)

// String returns the keyword for the order.
func (o SortOrder) String() string {
	if o == Desc {
		return "DESC"
	}
	return "ASC"
}

// OrderBy names the sort field and direction.
type OrderBy struct {
	Field string
	Order SortOrder
}

// Query is an immutable, fully parsed query.
type Query struct {
	// Select lists projected fields; empty keeps every field.
	Select []string

	// Filter is nil when every row is kept.
	Filter Expr

	// Limit is nil when unbounded.
	Limit *int

	OrderBy    *OrderBy
	Aggregates []Aggregate
}

// HasAggregates reports whether the query runs in aggregate mode.
func (q Query) HasAggregates() bool {
	return len(q.Aggregates) > 0
}

// Expr is a boolean expression over a row.
type Expr interface {
	String() string
	expr()
}

// Eq matches rows whose field structurally equals Value.
type Eq struct {
	Field string
	Value model.Value
}

// Gt matches rows whose numeric field is greater than Value.
type Gt struct {
	Field string
	Value model.Value
}

// Lt matches rows whose numeric field is less than Value.
type Lt struct {
	Field string
	Value model.Value
}

// Gte matches rows whose numeric field is at least Value.
type Gte struct {
	Field string
	Value model.Value
}

// Lte matches rows whose numeric field is at most Value.
type Lte struct {
	Field string
	Value model.Value
}

// Like matches text fields against a SQL pattern where % is any run of
// characters and _ is exactly one character.
type Like struct {
	Field   string
	Pattern string

	re *regexp.Regexp
}

// In matches rows whose field equals any of Values.
type In struct {
	Field  string
	Values []model.Value
}

// Between matches numeric fields in the closed range [Lo, Hi].
type Between struct {
	Field string
	Lo    model.Value
	Hi    model.Value
}

// KindEq matches rows of the given kind.
type KindEq struct {
	Kind model.RowKind
}

// And is true when both sides are true.
type And struct {
	Left, Right Expr
}

// Or is true when either side is true.
type Or struct {
	Left, Right Expr
}

// Not negates Inner.
type Not struct {
	Inner Expr
}

func (*Eq) expr()      {}
func (*Gt) expr()      {}
func (*Lt) expr()      {}
func (*Gte) expr()     {}
func (*Lte) expr()     {}
func (*Like) expr()    {}
func (*In) expr()      {}
func (*Between) expr() {}
func (*KindEq) expr()  {}
func (*And) expr()     {}
func (*Or) expr()      {}
func (*Not) expr()     {}

func (e *Eq) String() string  { return e.Field + " = " + e.Value.String() }
func (e *Gt) String() string  { return e.Field + " > " + e.Value.String() }
func (e *Lt) String() string  { return e.Field + " < " + e.Value.String() }
func (e *Gte) String() string { return e.Field + " >= " + e.Value.String() }
func (e *Lte) String() string { return e.Field + " <= " + e.Value.String() }

func (e *Like) String() string {
	return e.Field + " LIKE '" + e.Pattern + "'"
}

func (e *In) String() string {
	parts := make([]string, len(e.Values))
	for i, v := range e.Values {
		parts[i] = v.String()
	}
	return e.Field + " IN ( " + strings.Join(parts, " , ") + " )"
}

func (e *Between) String() string {
	return e.Field + " BETWEEN " + e.Lo.String() + " AND " + e.Hi.String()
}

func (e *KindEq) String() string { return "KIND = '" + e.Kind.String() + "'" }

func (e *And) String() string { return "( " + e.Left.String() + " AND " + e.Right.String() + " )" }
func (e *Or) String() string  { return "( " + e.Left.String() + " OR " + e.Right.String() + " )" }
func (e *Not) String() string { return "NOT " + e.Inner.String() }

// patterns is shared by every Like in the process.
var patterns = cache.New(1024, 0)

// NewLike builds a Like expression with its pattern compiled.
func NewLike(field, pattern string) *Like {
	return &Like{Field: field, Pattern: pattern, re: compileLike(pattern)}
}

// Regexp returns the anchored expression the pattern translates to. A Like
// built without NewLike compiles through the shared pattern cache on every
// call and is never mutated, so it is safe to evaluate concurrently.
func (e *Like) Regexp() *regexp.Regexp {
	if e.re != nil {
		return e.re
	}
	return compileLike(e.Pattern)
}

// compileLike translates a LIKE pattern into an anchored regular expression.
// Every other character matches literally.
func compileLike(pattern string) *regexp.Regexp {
	if re, ok := patterns.Get(pattern); ok {
		return re
	}
	var sb strings.Builder
	sb.WriteString(`(?s)^`)
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	re := regexp.MustCompile(sb.String())
	patterns.Put(pattern, re)
	return re
}

// AggregateFunc names an aggregate function.
type AggregateFunc uint8

const (
	AggCount AggregateFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

var aggregateNames = [...]string{"COUNT", "SUM", "AVG", "MIN", "MAX"}

// String returns the SQL name of the function.
func (f AggregateFunc) String() string {
	if int(f) < len(aggregateNames) {
		return aggregateNames[f]
	}
	return "UNKNOWN"
}

// Aggregate is one requested statistic. Field is "*" only for COUNT(*).
type Aggregate struct {
	Func  AggregateFunc
	Field string
}

// Count requests COUNT(field); field "*" counts every row.
func Count(field string) Aggregate { return Aggregate{Func: AggCount, Field: field} }

// Sum requests SUM(field).
func Sum(field string) Aggregate { return Aggregate{Func: AggSum, Field: field} }

// Avg requests AVG(field).
func Avg(field string) Aggregate { return Aggregate{Func: AggAvg, Field: field} }

// Min requests MIN(field).
func Min(field string) Aggregate { return Aggregate{Func: AggMin, Field: field} }

// Max requests MAX(field).
func Max(field string) Aggregate { return Aggregate{Func: AggMax, Field: field} }

// String renders the aggregate as in a SELECT list.
func (a Aggregate) String() string {
	return a.Func.String() + "(" + a.Field + ")"
}
