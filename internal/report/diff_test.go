package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/completeness-cli/internal/model"
)

func TestDiff(t *testing.T) {
	t.Parallel()

	a := &model.RunReport{
		RunID: "run-a",
		FieldStats: []model.FieldStat{
			{EntityType: "company", FieldName: "name", Completeness: 0.9, MissingRate: 0.1},
			{EntityType: "company", FieldName: "revenue", Completeness: 0.5, MissingRate: 0.5},
			{EntityType: "company", SourceID: "web", FieldName: "name", Completeness: 0.8, MissingRate: 0.2},
		},
	}
	b := &model.RunReport{
		RunID: "run-b",
		FieldStats: []model.FieldStat{
			// Unchanged, omitted from the diff.
			{EntityType: "company", FieldName: "name", Completeness: 0.9, MissingRate: 0.1},
			// Regressed.
			{EntityType: "company", FieldName: "revenue", Completeness: 0.3, MissingRate: 0.7},
			// New cell, zero baseline.
			{EntityType: "company", SourceID: "crm", FieldName: "name", Completeness: 1.0},
		},
	}

	diff := Diff(a, b)
	assert.Equal(t, "run-a", diff.RunA)
	assert.Equal(t, "run-b", diff.RunB)
	require.Len(t, diff.Deltas, 3)

	// Sorted by (entity type, source, field): joined revenue first, then crm, then web.
	assert.Equal(t, "revenue", diff.Deltas[0].FieldName)
	assert.Empty(t, diff.Deltas[0].SourceID)
	assert.InDelta(t, -0.2, diff.Deltas[0].Delta, 0.001)

	assert.Equal(t, "crm", diff.Deltas[1].SourceID)
	assert.InDelta(t, 1.0, diff.Deltas[1].Delta, 0.001)

	// Cell missing from run B diffs against a zero baseline.
	assert.Equal(t, "web", diff.Deltas[2].SourceID)
	assert.InDelta(t, -0.8, diff.Deltas[2].Delta, 0.001)
}

func TestDiff_IdenticalReports(t *testing.T) {
	t.Parallel()

	rep := &model.RunReport{
		RunID: "run-a",
		FieldStats: []model.FieldStat{
			{EntityType: "company", FieldName: "name", Completeness: 0.9, MissingRate: 0.1},
		},
	}
	diff := Diff(rep, rep)
	assert.Empty(t, diff.Deltas)
}
