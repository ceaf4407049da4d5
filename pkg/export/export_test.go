package export

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/xuri/excelize/v2"

	"github.com/filereduce/filereduce/internal/model"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

func sampleRows() []model.Row {
	a := model.NewRow(model.RowLIN)
	a.Set("sku", model.Text("A10"))
	a.Set("qty", model.Number(10))

	b := model.NewRow(model.RowLIN)
	b.Set("sku", model.Text("B20"))
	b.Set("qty", model.Number(2.5))
	b.Set("line_no", model.Text("x"))

	h := model.NewRow(model.RowUNH)
	h.Set("line_no", model.Number(3))
	return []model.Row{a, b, h}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"out.jsonl", FormatJSONL},
		{"out.XLSX", FormatXLSX},
		{"dir/out.parquet", FormatParquet},
	}
	for _, tt := range tests {
		got, err := FormatFor(tt.path)
		if err != nil || got != tt.want {
			t.Errorf("FormatFor(%s) = %v, %v; want %v", tt.path, got, err, tt.want)
		}
	}

	if _, err := FormatFor("out.csv"); !ferrors.IsCode(err, ferrors.CodeExportFailed) {
		t.Errorf("Expected export error for csv, got %v", err)
	}
}

func TestColumns(t *testing.T) {
	got := Columns(sampleRows())
	want := []string{"line_no", "qty", "sku"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Columns = %v, want %v", got, want)
	}
}

func TestWrite_JSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	if err := Write(path, sampleRows()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var got []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("invalid line %q: %v", scanner.Text(), err)
		}
		got = append(got, m)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(got))
	}
	if got[0]["kind"] != "LIN" || got[0]["qty"] != 10.0 || got[0]["sku"] != "A10" {
		t.Errorf("Unexpected first line %v", got[0])
	}
}

func TestWrite_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	if err := Write(path, sampleRows()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("Expected header plus 3 rows, got %d", len(rows))
	}
	if want := []string{"kind", "line_no", "qty", "sku"}; !reflect.DeepEqual(rows[0], want) {
		t.Errorf("Header = %v, want %v", rows[0], want)
	}
	if rows[1][0] != "LIN" || rows[1][2] != "10" || rows[1][3] != "A10" {
		t.Errorf("Unexpected first row %v", rows[1])
	}
	if rows[3][0] != "UNH" || rows[3][1] != "3" {
		t.Errorf("Unexpected last row %v", rows[3])
	}
}

func TestWrite_Parquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	if err := Write(path, sampleRows()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		t.Fatalf("OpenParquetFile failed: %v", err)
	}
	defer pf.Close()

	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("NewFileReader failed: %v", err)
	}
	schema, err := reader.Schema()
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}

	wantTypes := map[string]arrow.Type{
		"kind":    arrow.STRING,
		"line_no": arrow.STRING,
		"qty":     arrow.FLOAT64,
		"sku":     arrow.STRING,
	}
	if len(schema.Fields()) != len(wantTypes) {
		t.Fatalf("Expected %d columns, got %v", len(wantTypes), schema)
	}
	for _, field := range schema.Fields() {
		if want, ok := wantTypes[field.Name]; !ok || field.Type.ID() != want {
			t.Errorf("Column %s has type %s", field.Name, field.Type)
		}
	}

	table, err := reader.ReadTable(context.Background())
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	defer table.Release()
	if table.NumRows() != 3 {
		t.Errorf("Expected 3 rows, got %d", table.NumRows())
	}
}
