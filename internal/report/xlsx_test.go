package report

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	rep := Summarize(sampleResult())
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteXLSX(rep, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)
	assert.Equal(t, "Fields", f.Sheets[0].Name)
	assert.Equal(t, "Sources", f.Sheets[1].Name)

	fields := f.Sheets[0]
	// Header plus one row per field-stat cell.
	require.Len(t, fields.Rows, len(rep.FieldStats)+1)
	assert.Equal(t, "Entity Type", fields.Rows[0].Cells[0].String())

	// Joined rollup rows carry the placeholder source label.
	assert.Equal(t, "(joined)", fields.Rows[1].Cells[1].String())

	sources := f.Sheets[1]
	require.Len(t, sources.Rows, len(rep.Sources)+1)
	assert.Equal(t, "web", sources.Rows[1].Cells[0].String())
}

func TestWriteXLSX_BadPath(t *testing.T) {
	t.Parallel()

	rep := Summarize(sampleResult())
	err := WriteXLSX(rep, filepath.Join(t.TempDir(), "missing", "report.xlsx"))
	assert.Error(t, err)
}
