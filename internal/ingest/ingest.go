// Package ingest reads uploaded idea spreadsheets (CSV or XLSX) into raw
// records for the normalizer.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scorer/internal/model"
)

// ReadFile reads a .csv, .tsv or .xlsx file. The first row is the header.
func ReadFile(ctx context.Context, path string) ([]model.RawIdeaRecord, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".tsv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		opts := CSVOptions{}
		if ext == ".tsv" {
			opts.Delimiter = '\t'
		}
		return ReadCSV(ctx, f, opts)
	case ".xlsx":
		return ReadXLSX(path, XLSXOptions{})
	default:
		return nil, model.NewBatchValidationError(fmt.Sprintf("unsupported file type %q (want .csv, .tsv or .xlsx)", ext))
	}
}

// toRecords pairs each data row with the header. Rows with no values at all
// are dropped; blank header cells are named by position.
func toRecords(header []string, rows [][]any) ([]model.RawIdeaRecord, error) {
	if len(header) == 0 {
		return nil, model.NewBatchValidationError("missing header row")
	}

	cols := make([]string, len(header))
	named := false
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		} else {
			named = true
		}
		cols[i] = h
	}
	if !named {
		return nil, model.NewBatchValidationError("header row is blank")
	}

	out := make([]model.RawIdeaRecord, 0, len(rows))
	for _, row := range rows {
		rec := model.RawIdeaRecord{Fields: make([]model.RawField, 0, len(cols))}
		blank := true
		for i, col := range cols {
			var v any
			if i < len(row) {
				v = row[i]
			}
			if s, ok := v.(string); ok {
				if s = strings.TrimSpace(s); s == "" {
					v = nil
				} else {
					v = s
				}
			}
			if v != nil {
				blank = false
			}
			rec.Fields = append(rec.Fields, model.RawField{Column: col, Value: v})
		}
		if !blank {
			out = append(out, rec)
		}
	}
	return out, nil
}
