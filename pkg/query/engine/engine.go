// Package engine evaluates parsed queries against a stream of rows.
package engine

import (
	"sort"
	"time"

	"github.com/filereduce/filereduce/internal/model"
	"github.com/filereduce/filereduce/pkg/query"
)

// Executor runs one query over one row source. It is not safe for
// concurrent use; independent executors share nothing.
type Executor struct {
	query  query.Query
	source RowSource

	scanned int64
	matched int64
}

// New creates an executor for q over source.
func New(q query.Query, source RowSource) *Executor {
	return &Executor{query: q, source: source}
}

// Next returns the next row that passes the filter, projected to the
// selected fields. Ordering and limit are not applied.
func (e *Executor) Next() (model.Row, bool) {
	for {
		row, ok := e.source.Next()
		if !ok {
			return model.Row{}, false
		}
		e.scanned++
		if !Eval(e.query.Filter, row) {
			continue
		}
		e.matched++
		return e.project(row), true
	}
}

// Err returns the failure that ended the source early, if the source can fail.
func (e *Executor) Err() error {
	if es, ok := e.source.(ErrSource); ok {
		return es.Err()
	}
	return nil
}

// Collect drains the source and returns the filtered, projected rows, sorted
// and truncated as the query requests.
//
// Sorting happens after projection, so ordering by a field that was not
// selected leaves the rows in input order.
func (e *Executor) Collect() ([]model.Row, error) {
	var rows []model.Row
	for {
		row, ok := e.Next()
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	if err := e.Err(); err != nil {
		return nil, err
	}

	if ob := e.query.OrderBy; ob != nil {
		sortRows(rows, ob.Field, ob.Order)
	}
	if lim := e.query.Limit; lim != nil && *lim < len(rows) {
		rows = rows[:*lim]
	}
	return rows, nil
}

// CollectWithAggregates drains the source and aggregates the rows that pass
// the filter. Select, OrderBy and Limit are ignored.
func (e *Executor) CollectWithAggregates() (AggregateResult, error) {
	var rows []model.Row
	for {
		row, ok := e.source.Next()
		if !ok {
			break
		}
		e.scanned++
		if Eval(e.query.Filter, row) {
			e.matched++
			rows = append(rows, row)
		}
	}
	if err := e.Err(); err != nil {
		return AggregateResult{}, err
	}
	return Aggregate(rows, e.query.Aggregates), nil
}

// Run executes the query in the mode it asks for.
func (e *Executor) Run() (*Result, error) {
	start := time.Now()
	res := &Result{}

	if e.query.HasAggregates() {
		agg, err := e.CollectWithAggregates()
		if err != nil {
			return nil, err
		}
		res.Aggregates = &agg
	} else {
		rows, err := e.Collect()
		if err != nil {
			return nil, err
		}
		res.Rows = rows
	}

	res.Scanned = e.scanned
	res.Matched = e.matched
	res.Duration = time.Since(start)
	return res, nil
}

func (e *Executor) project(row model.Row) model.Row {
	if len(e.query.Select) == 0 {
		return row
	}
	return row.Project(e.query.Select)
}

// Result is the outcome of Run: either rows or aggregates.
type Result struct {
	Rows       []model.Row
	Aggregates *AggregateResult

	Scanned  int64
	Matched  int64
	Duration time.Duration
}

// sortRows is stable. Numbers compare numerically and texts lexicographically;
// a present value sorts after a missing one; any other pair is a tie.
func sortRows(rows []model.Row, field string, order query.SortOrder) {
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareField(rows[i], rows[j], field)
		if order == query.Desc {
			c = -c
		}
		return c < 0
	})
}

func compareField(a, b model.Row, field string) int {
	av, aok := a.Get(field)
	bv, bok := b.Get(field)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}

	switch {
	case av.IsNumber() && bv.IsNumber():
		return compare(av.Num < bv.Num, av.Num > bv.Num)
	case av.IsText() && bv.IsText():
		return compare(av.Str < bv.Str, av.Str > bv.Str)
	}
	return 0
}

func compare(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}
