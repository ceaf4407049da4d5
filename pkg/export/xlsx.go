package export

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/filereduce/filereduce/internal/model"
)

// SheetName is the worksheet results are written to.
const SheetName = "Results"

// encodeXLSX writes a header row of kind plus every column, then one row per
// result. Absent fields are left blank.
func encodeXLSX(w io.Writer, rows []model.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	cols := Columns(rows)
	header := make([]interface{}, 0, len(cols)+1)
	header = append(header, kindColumn)
	for _, c := range cols {
		header = append(header, c)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	for i, row := range rows {
		cells := make([]interface{}, len(cols)+1)
		cells[0] = row.Kind.String()
		for j, c := range cols {
			if v, ok := row.Get(c); ok {
				cells[j+1] = v.Interface()
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
			return err
		}
	}

	return f.Write(w)
}
