package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/completeness-cli/internal/lineage"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "web.records.ndjson",
		`{"source_id":"web","entity_id":"acme","entity_type":"company","timestamp":"2025-06-15T12:00:00Z","fields":{"name":"Acme"}}`+"\n")
	writeFile(t, dir, "crm.records.ndjson",
		`{"source_id":"crm","entity_id":"acme","entity_type":"company","timestamp":"2025-06-15T13:00:00Z","fields":{"name":"Acme"}}`+"\n"+
			`{oops}`+"\n")
	writeFile(t, dir, "web.lineage.ndjson",
		`{"entity_id":"acme","source_id":"web","field_name":"revenue","timestamp":"2025-06-15T12:00:00Z","attempted":true,"outcome":"not_found"}`+"\n")
	writeFile(t, dir, "README.txt", "ignore me")

	st := lineage.NewMemory()
	d, err := LoadDir(context.Background(), dir, st)
	require.NoError(t, err)

	require.Len(t, d.Records, 2)
	// Files load in name order: crm before web.
	assert.Equal(t, "crm", d.Records[0].SourceID)
	assert.Equal(t, "web", d.Records[1].SourceID)
	assert.Equal(t, 1, d.MalformedRecords)
	assert.Equal(t, 1, d.LineageRecorded)
	assert.Zero(t, d.MalformedLineage)
	assert.Equal(t, 1, st.Len())
}

func TestLoadDir_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "nope"), lineage.NewMemory())
	assert.Error(t, err)
}

func TestLoadDir_Empty(t *testing.T) {
	t.Parallel()

	d, err := LoadDir(context.Background(), t.TempDir(), lineage.NewMemory())
	require.NoError(t, err)
	assert.Empty(t, d.Records)
	assert.Zero(t, d.LineageRecorded)
}
