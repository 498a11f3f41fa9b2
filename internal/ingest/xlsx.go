package ingest

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/idea-scorer/internal/model"
)

// XLSXOptions selects the worksheet to read.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX reads one worksheet into raw records. Numeric and boolean cells
// keep their type; everything else is read as text.
func ReadXLSX(path string, opts XLSXOptions) ([]model.RawIdeaRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var header []string
	var rows [][]any
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		if header == nil {
			header = make([]string, len(row.Cells))
			for j, cell := range row.Cells {
				header[j] = cell.String()
			}
			continue
		}
		rows = append(rows, rowValues(row))
	}
	return toRecords(header, rows)
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowValues(row *xlsx.Row) []any {
	vals := make([]any, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		switch cell.Type() {
		case xlsx.CellTypeNumeric:
			if v, err := cell.Float(); err == nil {
				vals[j] = v
				continue
			}
		case xlsx.CellTypeBool:
			vals[j] = cell.Bool()
			continue
		}
		vals[j] = cell.String()
	}
	return vals
}
