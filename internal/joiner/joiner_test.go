package joiner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/completeness-cli/internal/model"
)

func rec(sourceID, entityID, entityType string, ts time.Time, fields map[string]any) model.SourceRecord {
	return model.SourceRecord{
		SourceID:   sourceID,
		EntityID:   entityID,
		EntityType: entityType,
		Timestamp:  ts,
		Fields:     fields,
		Outcome:    model.ExtractionSuccess,
	}
}

func TestGroup_HorizonCutoff(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	records := []model.SourceRecord{
		rec("a", "acme", "company", base, nil),
		rec("b", "acme", "company", base.Add(2*time.Hour), nil),
		rec("a", "globex", "company", base, nil),
	}

	grouped := Group(records, base.Add(time.Hour))
	require.Len(t, grouped, 2)
	assert.Len(t, grouped["acme"], 1)
	assert.Len(t, grouped["globex"], 1)

	// Zero horizon keeps everything.
	grouped = Group(records, time.Time{})
	assert.Len(t, grouped["acme"], 2)
}

func TestGroup_NormalizesEntityIDs(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	// "é" precomposed vs combining sequence.
	records := []model.SourceRecord{
		rec("a", "café", "company", base, nil),
		rec("b", "café", "company", base, nil),
	}

	grouped := Group(records, time.Time{})
	require.Len(t, grouped, 1)
	assert.Len(t, grouped["café"], 2)
}

func TestJoin_EntityTypeMismatch(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	_, err := Join("acme", []model.SourceRecord{
		rec("a", "acme", "company", base, nil),
		rec("b", "acme", "person", base, nil),
	})
	require.Error(t, err)

	var mismatch *EntityTypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "acme", mismatch.EntityID)
	assert.Equal(t, "company", mismatch.TypeA)
	assert.Equal(t, "person", mismatch.TypeB)
}

func TestJoin_NoRecords(t *testing.T) {
	t.Parallel()

	_, err := Join("acme", nil)
	assert.Error(t, err)
}

func TestJoin_CandidateOrdering(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	joined, err := Join("acme", []model.SourceRecord{
		rec("b", "acme", "company", base, map[string]any{"revenue": float64(1)}),
		rec("c", "acme", "company", base.Add(time.Hour), map[string]any{"revenue": float64(2)}),
		rec("a", "acme", "company", base, map[string]any{"revenue": float64(3)}),
	})
	require.NoError(t, err)

	cands := joined.Fields["revenue"]
	require.Len(t, cands, 3)
	// Most recent first, then source ID for timestamp ties.
	assert.Equal(t, "c", cands[0].SourceID)
	assert.Equal(t, "a", cands[1].SourceID)
	assert.Equal(t, "b", cands[2].SourceID)

	assert.Equal(t, []string{"a", "b", "c"}, joined.Sources)
}

func TestJoin_NullValuesAreAbsent(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	joined, err := Join("acme", []model.SourceRecord{
		rec("a", "acme", "company", base, map[string]any{"revenue": nil, "name": "Acme"}),
	})
	require.NoError(t, err)

	assert.NotContains(t, joined.Fields, "revenue")
	assert.Contains(t, joined.Fields, "name")
}
