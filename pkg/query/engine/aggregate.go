package engine

import (
	"github.com/filereduce/filereduce/internal/model"
	"github.com/filereduce/filereduce/pkg/query"
)

// AggregateResult holds the statistics requested by a query. A nil field was
// either not requested or had no qualifying rows.
type AggregateResult struct {
	Count *int     `json:"count,omitempty"`
	Sum   *float64 `json:"sum,omitempty"`
	Avg   *float64 `json:"avg,omitempty"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
}

// Aggregate computes each requested aggregate over rows. Every aggregate is
// an independent scan of the same input.
func Aggregate(rows []model.Row, aggs []query.Aggregate) AggregateResult {
	var res AggregateResult
	for _, agg := range aggs {
		switch agg.Func {
		case query.AggCount:
			n := count(rows, agg.Field)
			res.Count = &n
		case query.AggSum:
			if sum, n := sumOf(rows, agg.Field); n > 0 {
				res.Sum = &sum
			}
		case query.AggAvg:
			if sum, n := sumOf(rows, agg.Field); n > 0 {
				avg := sum / float64(n)
				res.Avg = &avg
			}
		case query.AggMin:
			res.Min = extreme(rows, agg.Field, func(a, b float64) bool { return a < b })
		case query.AggMax:
			res.Max = extreme(rows, agg.Field, func(a, b float64) bool { return a > b })
		}
	}
	return res
}

func count(rows []model.Row, field string) int {
	if field == "*" {
		return len(rows)
	}
	n := 0
	for _, row := range rows {
		if _, ok := row.Get(field); ok {
			n++
		}
	}
	return n
}

func sumOf(rows []model.Row, field string) (float64, int) {
	var sum float64
	n := 0
	for _, row := range rows {
		if v, ok := row.Get(field); ok && v.IsNumber() {
			sum += v.Num
			n++
		}
	}
	return sum, n
}

func extreme(rows []model.Row, field string, better func(a, b float64) bool) *float64 {
	var best *float64
	for _, row := range rows {
		v, ok := row.Get(field)
		if !ok || !v.IsNumber() {
			continue
		}
		if best == nil || better(v.Num, *best) {
			x := v.Num
			best = &x
		}
	}
	return best
}
