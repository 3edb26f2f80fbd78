package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/completeness-cli/internal/model"
	"github.com/sells-group/completeness-cli/internal/runner"
)

func sampleResult() *runner.Result {
	horizon := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	return &runner.Result{
		RunID:    "run-1",
		Horizon:  horizon,
		Entities: 2,
		Classifications: []model.Classification{
			{EntityID: "acme", EntityType: "company", FieldName: "name", Verdict: model.VerdictPresent},
			{EntityID: "acme", EntityType: "company", FieldName: "revenue", Verdict: model.VerdictConflicting},
			{EntityID: "acme", EntityType: "company", FieldName: "fax", Verdict: model.VerdictNotApplicable},
			{EntityID: "globex", EntityType: "company", FieldName: "name", Verdict: model.VerdictPresent},
			{EntityID: "globex", EntityType: "company", FieldName: "revenue", Verdict: model.VerdictMissing, Flag: model.EvidenceNoAttempt},
			{EntityID: "globex", EntityType: "company", FieldName: "fax", Verdict: model.VerdictNotApplicable},
		},
		SourceStatuses: []model.SourceFieldStatus{
			{EntityID: "acme", EntityType: "company", SourceID: "web", FieldName: "name", Verdict: model.VerdictPresent},
			{EntityID: "acme", EntityType: "company", SourceID: "web", FieldName: "revenue", Verdict: model.VerdictPresent},
			{EntityID: "globex", EntityType: "company", SourceID: "web", FieldName: "name", Verdict: model.VerdictPresent},
			{EntityID: "globex", EntityType: "company", SourceID: "web", FieldName: "revenue", Verdict: model.VerdictMissing, Flag: model.EvidenceNoAttempt},
		},
		TypeMismatches: map[string]int{"web": 3},
		Undeclared:     map[string][]string{"web": {"mascot"}},
	}
}

func findStat(t *testing.T, rep *model.RunReport, sourceID, field string) model.FieldStat {
	t.Helper()
	for _, st := range rep.FieldStats {
		if st.SourceID == sourceID && st.FieldName == field {
			return st
		}
	}
	t.Fatalf("no stat for source %q field %q", sourceID, field)
	return model.FieldStat{}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	rep := Summarize(sampleResult())

	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, 2, rep.Entities)
	assert.Equal(t, 2, rep.Present)
	assert.Equal(t, 1, rep.Missing)
	assert.Equal(t, 2, rep.NotApplicable)
	assert.Equal(t, 1, rep.Conflicting)
	// 2 present / (2 present + 1 missing + 1 conflicting)
	assert.InDelta(t, 0.5, rep.Completeness, 0.001)

	// Joined rollup for revenue: one conflicting, one missing.
	rev := findStat(t, rep, "", "revenue")
	assert.Equal(t, 0, rev.Present)
	assert.Equal(t, 1, rev.Missing)
	assert.Equal(t, 1, rev.MissingNoAtt)
	assert.Equal(t, 1, rev.Conflicting)
	assert.InDelta(t, 0.0, rev.Completeness, 0.001)
	assert.InDelta(t, 0.5, rev.MissingRate, 0.001)

	// NOT_APPLICABLE cells carry no rates.
	fax := findStat(t, rep, "", "fax")
	assert.Equal(t, 2, fax.NotApplicable)
	assert.InDelta(t, 0.0, fax.Completeness, 0.001)

	// Per-source cell.
	webRev := findStat(t, rep, "web", "revenue")
	assert.Equal(t, 1, webRev.Present)
	assert.Equal(t, 1, webRev.Missing)
	assert.InDelta(t, 0.5, webRev.Completeness, 0.001)

	require.Len(t, rep.Sources, 1)
	src := rep.Sources[0]
	assert.Equal(t, "web", src.SourceID)
	assert.Equal(t, 2, src.Entities)
	// 3 present of 4 applicable statuses.
	assert.InDelta(t, 0.75, src.Completeness, 0.001)
	assert.Equal(t, 3, src.TypeMismatches)
	assert.Equal(t, []string{"mascot"}, src.UndeclaredFields)

	// Deterministic ordering.
	for i := 1; i < len(rep.FieldStats); i++ {
		a, b := rep.FieldStats[i-1], rep.FieldStats[i]
		less := a.EntityType < b.EntityType ||
			(a.EntityType == b.EntityType && a.SourceID < b.SourceID) ||
			(a.EntityType == b.EntityType && a.SourceID == b.SourceID && a.FieldName < b.FieldName)
		assert.True(t, less, "stats out of order at %d", i)
	}
}

func TestSummarize_EmptyRun(t *testing.T) {
	t.Parallel()

	rep := Summarize(&runner.Result{RunID: "run-0"})
	assert.Zero(t, rep.Entities)
	assert.InDelta(t, 0.0, rep.Completeness, 0.001)
	assert.Empty(t, rep.FieldStats)
	assert.Empty(t, rep.Sources)
}
