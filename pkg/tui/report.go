package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/filereduce/filereduce/internal/model"
	"github.com/filereduce/filereduce/pkg/export"
	"github.com/filereduce/filereduce/pkg/pipeline"
	"github.com/filereduce/filereduce/pkg/query/engine"
)

// PrintResult prints the summary of one processed input.
func PrintResult(w io.Writer, res *pipeline.Result) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, successStyle.Render("  ✓ PROCESSING COMPLETE"))
	fmt.Fprintln(w)

	s := res.Stats
	if s.Records > 0 {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Records:"), titleStyle.Render(formatNumber(s.Records)))
	} else {
		fmt.Fprintf(w, "  %s %s %s\n",
			mutedStyle.Render("Documents:"),
			titleStyle.Render(formatNumber(s.Documents)),
			mutedStyle.Render(fmt.Sprintf("(%s lines, %s segments, %s unknown)",
				formatNumber(s.Lines), formatNumber(s.Segments), formatNumber(s.Unknown))))
	}
	fmt.Fprintf(w, "  %s %s %s\n",
		mutedStyle.Render("Kept:"),
		successStyle.Render(formatNumber(s.Kept)),
		mutedStyle.Render(fmt.Sprintf("(%s dropped)", formatNumber(s.Dropped))))

	if res.Output != "" {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Output:"), codeStyle.Render(res.Output))
	}
	if res.Duration > 0 {
		fmt.Fprintf(w, "  %s %s %s\n",
			mutedStyle.Render("Time:"),
			titleStyle.Render(formatDuration(res.Duration)),
			mutedStyle.Render(throughput(s.Documents+s.Records, res.Duration)))
	}
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Run:"), mutedStyle.Render(res.RunID))
	fmt.Fprintln(w)
}

func throughput(n int64, d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return fmt.Sprintf("(%s/sec)", formatNumber(int64(float64(n)/d.Seconds())))
}

// PrintBatch prints one line per input and the batch totals.
func PrintBatch(w io.Writer, results []*pipeline.Result, elapsed time.Duration) {
	fmt.Fprintln(w)
	for _, res := range results {
		if res == nil {
			continue
		}
		switch {
		case res.Skipped:
			fmt.Fprintf(w, "  %s %s %s\n", mutedStyle.Render("–"), res.Input, mutedStyle.Render("(already complete)"))
		case res.Err != nil:
			fmt.Fprintf(w, "  %s %s %s\n", accentStyle.Render("✗"), res.Input, mutedStyle.Render(res.Err.Error()))
		default:
			fmt.Fprintf(w, "  %s %s %s\n", successStyle.Render("✓"), res.Input,
				mutedStyle.Render(fmt.Sprintf("kept %d of %d", res.Stats.Kept, res.Stats.Kept+res.Stats.Dropped)))
		}
	}

	sum := pipeline.Summarize(results)
	fmt.Fprintln(w, mutedStyle.Render(rule))
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Inputs:"), titleStyle.Render(fmt.Sprintf(
		"%d ok, %d failed, %d skipped", sum.Succeeded, sum.Failed, sum.Skipped)))
	fmt.Fprintf(w, "  %s %s %s\n",
		mutedStyle.Render("Kept:"),
		successStyle.Render(formatNumber(sum.Kept)),
		mutedStyle.Render(fmt.Sprintf("(%s dropped)", formatNumber(sum.Dropped))))
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Time:"), titleStyle.Render(formatDuration(elapsed)))
	fmt.Fprintln(w)
}

// PrintRows writes rows as a fixed-width table: kind first, then the
// sorted union of field names.
func PrintRows(w io.Writer, rows []model.Row) {
	cols := export.Columns(rows)
	widths := make([]int, len(cols)+1)
	widths[0] = len("kind")

	cells := make([][]string, len(rows))
	for i, row := range rows {
		line := make([]string, len(cols)+1)
		line[0] = row.Kind.String()
		for j, c := range cols {
			if v, ok := row.Get(c); ok {
				line[j+1] = fmt.Sprint(v.Interface())
			}
		}
		for j, cell := range line {
			if len(cell) > widths[j] {
				widths[j] = len(cell)
			}
		}
		cells[i] = line
	}
	for j, c := range cols {
		if len(c) > widths[j+1] {
			widths[j+1] = len(c)
		}
	}

	header := append([]string{"kind"}, cols...)
	fmt.Fprintln(w, titleStyle.Render(pad(header, widths)))
	for _, line := range cells {
		fmt.Fprintln(w, pad(line, widths))
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("(%d rows)", len(rows))))
}

func pad(cells []string, widths []int) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = c + strings.Repeat(" ", widths[i]-len(c))
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

// PrintAggregates writes the aggregate result as indented JSON.
func PrintAggregates(w io.Writer, agg *engine.AggregateResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(agg)
}

// PrintQueryStats prints the scan counters of a query run.
func PrintQueryStats(w io.Writer, res *engine.Result) {
	fmt.Fprintf(w, "  %s %s %s\n",
		mutedStyle.Render("Scanned:"),
		titleStyle.Render(formatNumber(res.Scanned)),
		mutedStyle.Render(fmt.Sprintf("(%s matched in %s)", formatNumber(res.Matched), formatDuration(res.Duration))))
}
