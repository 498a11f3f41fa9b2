package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/idea-scorer/internal/model"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func values(rec model.RawIdeaRecord) map[string]any {
	out := make(map[string]any, len(rec.Fields))
	for _, f := range rec.Fields {
		out[f.Column] = f.Value
	}
	return out
}

func TestReadCSV_Basic(t *testing.T) {
	in := "\ufeffIdea Name,TAM,Business Model\n" +
		"Clinic scheduler,$1.2B,B2B\n" +
		" Pet sitters , 300 ,\n"

	recs, err := ReadCSV(context.Background(), strings.NewReader(in), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "Idea Name", recs[0].Fields[0].Column)
	assert.Equal(t, map[string]any{"Idea Name": "Clinic scheduler", "TAM": "$1.2B", "Business Model": "B2B"}, values(recs[0]))
	assert.Equal(t, map[string]any{"Idea Name": "Pet sitters", "TAM": "300", "Business Model": nil}, values(recs[1]))
}

func TestReadCSV_RaggedAndBlankRows(t *testing.T) {
	in := "name,industry,,tam\n" +
		"A,retail\n" +
		",,,\n" +
		"B,fintech,extra,10,overflow\n"

	recs, err := ReadCSV(context.Background(), strings.NewReader(in), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, map[string]any{"name": "A", "industry": "retail", "column_3": nil, "tam": nil}, values(recs[0]))
	assert.Equal(t, "extra", values(recs[1])["column_3"])
	assert.Len(t, recs[1].Fields, 4)
}

func TestReadCSV_MissingHeader(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))

	_, err = ReadCSV(context.Background(), strings.NewReader(" , \nA,B\n"), CSVOptions{})
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
}

func TestReadCSV_Malformed(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader("name\n\"unterminated\n"), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestReadCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadCSV(ctx, strings.NewReader("name\nA\n"), CSVOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamCSV_Comments(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("# note\nname\nA\n"), CSVOptions{Comment: '#'})
	var rows [][]string
	for r := range rowCh {
		rows = append(rows, r)
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, [][]string{{"name"}, {"A"}}, rows)
}

func TestReadFile_Dispatch(t *testing.T) {
	tsv := writeTestFile(t, "ideas.TSV", "name\ttam\nA\t5\n")
	recs, err := ReadFile(context.Background(), tsv)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "5", values(recs[0])["tam"])

	_, err = ReadFile(context.Background(), writeTestFile(t, "ideas.json", "[]"))
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))

	_, err = ReadFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func createTestXLSX(t *testing.T, name string, build func(sheet *xlsx.Sheet)) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(name)
	require.NoError(t, err)
	build(sheet)
	path := filepath.Join(t.TempDir(), "ideas.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX_TypedCells(t *testing.T) {
	path := createTestXLSX(t, "Ideas", func(sheet *xlsx.Sheet) {
		hdr := sheet.AddRow()
		for _, h := range []string{"Idea Name", "TAM", "Network Effects"} {
			hdr.AddCell().SetString(h)
		}
		row := sheet.AddRow()
		row.AddCell().SetString("Clinic scheduler")
		row.AddCell().SetFloat(1200)
		row.AddCell().SetBool(true)

		sheet.AddRow() // blank

		row = sheet.AddRow()
		row.AddCell().SetString("Pet sitters")
		row.AddCell().SetString("300M")
	})

	recs, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := values(recs[0])
	assert.Equal(t, "Clinic scheduler", first["Idea Name"])
	assert.Equal(t, 1200.0, first["TAM"])
	assert.Equal(t, true, first["Network Effects"])

	second := values(recs[1])
	assert.Equal(t, "300M", second["TAM"])
	assert.Nil(t, second["Network Effects"])

	viaFile, err := ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, recs, viaFile)
}

func TestReadXLSX_SheetSelection(t *testing.T) {
	path := createTestXLSX(t, "Ideas", func(sheet *xlsx.Sheet) {
		sheet.AddRow().AddCell().SetString("name")
		sheet.AddRow().AddCell().SetString("A")
	})

	recs, err := ReadXLSX(path, XLSXOptions{SheetName: "Ideas"})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, err = ReadXLSX(path, XLSXOptions{SheetName: "Other"})
	assert.ErrorContains(t, err, `sheet "Other" not found`)

	_, err = ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	assert.ErrorContains(t, err, "out of range")
}
