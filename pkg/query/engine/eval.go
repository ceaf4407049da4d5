package engine

import (
	"github.com/filereduce/filereduce/internal/model"
	"github.com/filereduce/filereduce/pkg/query"
)

// Eval reports whether row satisfies e. A nil expression matches every row.
//
// Ordering comparisons only hold between numbers; a missing field or a text
// operand on either side makes them false.
func Eval(e query.Expr, row model.Row) bool {
	switch e := e.(type) {
	case nil:
		return true

	case *query.Eq:
		v, ok := row.Get(e.Field)
		return ok && v.Equal(e.Value)

	case *query.Gt:
		a, b, ok := numbers(row, e.Field, e.Value)
		return ok && a > b
	case *query.Lt:
		a, b, ok := numbers(row, e.Field, e.Value)
		return ok && a < b
	case *query.Gte:
		a, b, ok := numbers(row, e.Field, e.Value)
		return ok && a >= b
	case *query.Lte:
		a, b, ok := numbers(row, e.Field, e.Value)
		return ok && a <= b

	case *query.Like:
		v, ok := row.Get(e.Field)
		return ok && v.IsText() && e.Regexp().MatchString(v.Str)

	case *query.In:
		v, ok := row.Get(e.Field)
		if !ok {
			return false
		}
		for _, candidate := range e.Values {
			if v.Equal(candidate) {
				return true
			}
		}
		return false

	case *query.Between:
		v, ok := row.Get(e.Field)
		if !ok || !v.IsNumber() || !e.Lo.IsNumber() || !e.Hi.IsNumber() {
			return false
		}
		return e.Lo.Num <= v.Num && v.Num <= e.Hi.Num

	case *query.KindEq:
		return row.Kind == e.Kind

	case *query.And:
		left, right := Eval(e.Left, row), Eval(e.Right, row)
		return left && right
	case *query.Or:
		left, right := Eval(e.Left, row), Eval(e.Right, row)
		return left || right
	case *query.Not:
		return !Eval(e.Inner, row)
	}
	return false
}

func numbers(row model.Row, field string, lit model.Value) (float64, float64, bool) {
	v, ok := row.Get(field)
	if !ok || !v.IsNumber() || !lit.IsNumber() {
		return 0, 0, false
	}
	return v.Num, lit.Num, true
}

// MatchAny reports whether any row satisfies e, stopping at the first match.
func MatchAny(e query.Expr, rows []model.Row) bool {
	for _, row := range rows {
		if Eval(e, row) {
			return true
		}
	}
	return false
}
