package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadFile_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	csv := "component,quantity,unit,operation\n" +
		"table-leg,4,pcs,\n" +
		"table-top,1,pcs,assembly\n" +
		",,,\n" // trailing blank row is skipped
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	doc, err := ReadFile(path, "garden-table")
	require.NoError(t, err)
	assert.Equal(t, "garden-table", doc.Product)
	require.Len(t, doc.Lines, 2)
	assert.Equal(t, "table-leg", doc.Lines[0].Component)
	assert.Equal(t, "4", doc.Lines[0].Quantity)
	assert.Equal(t, "assembly", doc.Lines[1].Operation)
}

func TestReadFile_CSVWithBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	payload := append([]byte{0xEF, 0xBB, 0xBF}, []byte("component,quantity,unit\nleg,4,pcs\n")...)
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	doc, err := ReadFile(path, "table")
	require.NoError(t, err)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "leg", doc.Lines[0].Component)
}

func TestReadFile_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range [][]any{
		{"Component", "Quantity", "Unit"},
		{"table-leg", "4", "pcs"},
		{"table-top", "1", "pcs"},
	} {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	doc, err := ReadFile(path, "garden-table")
	require.NoError(t, err)
	require.Len(t, doc.Lines, 2)
	assert.Equal(t, "table-leg", doc.Lines[0].Component)
	assert.Equal(t, "pcs", doc.Lines[1].Unit)
}

func TestReadFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.ods")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := ReadFile(path, "table")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadFile_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, []byte("component,unit\nleg,pcs\n"), 0o644))

	_, err := ReadFile(path, "table")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity")
}

func TestReadFile_InvalidQuantityRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, []byte("component,quantity,unit\nleg,-4,pcs\n"), 0o644))

	_, err := ReadFile(path, "table")
	assert.Error(t, err)
}
