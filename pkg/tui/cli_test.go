package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/filereduce/filereduce/internal/model"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
	"github.com/filereduce/filereduce/pkg/pipeline"
	"github.com/filereduce/filereduce/pkg/processor"
	"github.com/filereduce/filereduce/pkg/query/engine"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	if got := formatNumber(999); got != "999" {
		t.Errorf("formatNumber(999) = %s", got)
	}
	if got := formatNumber(1500); got != "1.5K" {
		t.Errorf("formatNumber(1500) = %s", got)
	}
	if got := formatNumber(2500000); got != "2.5M" {
		t.Errorf("formatNumber(2500000) = %s", got)
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	PrintResult(&buf, &pipeline.Result{
		RunID:    "run-1",
		Output:   "out.jsonl.zst",
		Stats:    processor.Stats{Documents: 3, Lines: 7, Segments: 40, Kept: 2, Dropped: 1},
		Duration: 2 * time.Second,
	})

	out := buf.String()
	for _, want := range []string{"Documents:", "3", "2", "1 dropped", "out.jsonl.zst", "run-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, out)
		}
	}
}

func TestPrintBatch(t *testing.T) {
	var buf bytes.Buffer
	PrintBatch(&buf, []*pipeline.Result{
		{Input: "a.edi", Stats: processor.Stats{Kept: 1, Dropped: 1}},
		{Input: "b.edi", Skipped: true},
		{Input: "c.edi", Err: errors.New("boom")},
	}, time.Second)

	out := buf.String()
	for _, want := range []string{"a.edi", "kept 1 of 2", "already complete", "boom", "1 ok, 1 failed, 1 skipped"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, out)
		}
	}
}

func TestPrintRows(t *testing.T) {
	a := model.NewRow(model.RowLIN)
	a.Set("sku", model.Text("SKU-A"))
	a.Set("qty", model.Number(10))
	b := model.NewRow(model.RowLIN)
	b.Set("sku", model.Text("SKU-B"))

	var buf bytes.Buffer
	PrintRows(&buf, []model.Row{a, b})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected header, 2 rows and a count, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "kind") || !strings.Contains(lines[0], "qty") || !strings.Contains(lines[0], "sku") {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "10") || !strings.Contains(lines[1], "SKU-A") {
		t.Errorf("Unexpected first row %q", lines[1])
	}
	if !strings.Contains(lines[3], "2 rows") {
		t.Errorf("Unexpected footer %q", lines[3])
	}
}

func TestPrintAggregates(t *testing.T) {
	count := 3
	sum := 105.0
	var buf bytes.Buffer
	if err := PrintAggregates(&buf, &engine.AggregateResult{Count: &count, Sum: &sum}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"count": 3`) || !strings.Contains(out, `"sum": 105`) || strings.Contains(out, "avg") {
		t.Errorf("Unexpected aggregate output %s", out)
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, ferrors.FileNotFound("orders.edi"))
	if !strings.Contains(buf.String(), "E101") {
		t.Errorf("Expected error code in %q", buf.String())
	}
}
