package export

import (
	"io"
	"strconv"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/filereduce/filereduce/internal/model"
)

// resultSchema maps every column to float64 when it is numeric in all rows
// that carry it, and to string otherwise. Only kind is required.
func resultSchema(rows []model.Row, cols []string) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(cols)+1)
	fields = append(fields, arrow.Field{Name: kindColumn, Type: arrow.BinaryTypes.String, Nullable: false})
	for _, c := range cols {
		var typ arrow.DataType = arrow.BinaryTypes.String
		if numericColumn(rows, c) {
			typ = arrow.PrimitiveTypes.Float64
		}
		fields = append(fields, arrow.Field{Name: c, Type: typ, Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

func encodeParquet(w io.Writer, rows []model.Row) error {
	cols := Columns(rows)
	schema := resultSchema(rows, cols)
	allocator := memory.NewGoAllocator()

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	// The file writer closes its sink; hide w's Close from it.
	fw, err := pqarrow.NewFileWriter(schema, struct{ io.Writer }{w}, writerProps, arrowProps)
	if err != nil {
		return err
	}

	builder := array.NewRecordBuilder(allocator, schema)
	defer builder.Release()

	for _, row := range rows {
		builder.Field(0).(*array.StringBuilder).Append(row.Kind.String())
		for i, c := range cols {
			appendValue(builder.Field(i+1), row, c)
		}
	}

	record := builder.NewRecord()
	defer record.Release()

	if err := fw.Write(record); err != nil {
		fw.Close()
		return err
	}
	return fw.Close()
}

func appendValue(b array.Builder, row model.Row, name string) {
	v, ok := row.Get(name)
	switch fb := b.(type) {
	case *array.Float64Builder:
		if ok {
			fb.Append(v.Num)
		} else {
			fb.AppendNull()
		}
	case *array.StringBuilder:
		switch {
		case !ok:
			fb.AppendNull()
		case v.IsNumber():
			fb.Append(strconv.FormatFloat(v.Num, 'g', -1, 64))
		default:
			fb.Append(v.Str)
		}
	}
}
