package report

import (
	"sort"

	"github.com/sells-group/completeness-cli/internal/model"
)

// Diff compares two run reports cell by cell for trend alerting. Cells
// present in only one run are reported against a zero baseline. Unchanged
// cells are omitted.
func Diff(a, b *model.RunReport) *model.ReportDiff {
	diff := &model.ReportDiff{RunA: a.RunID, RunB: b.RunID}

	index := func(rep *model.RunReport) map[statKey]model.FieldStat {
		m := make(map[statKey]model.FieldStat, len(rep.FieldStats))
		for _, st := range rep.FieldStats {
			m[statKey{entityType: st.EntityType, sourceID: st.SourceID, fieldName: st.FieldName}] = st
		}
		return m
	}
	fromStats := index(a)
	toStats := index(b)

	keys := make(map[statKey]struct{}, len(fromStats)+len(toStats))
	for k := range fromStats {
		keys[k] = struct{}{}
	}
	for k := range toStats {
		keys[k] = struct{}{}
	}

	for k := range keys {
		from := fromStats[k]
		to := toStats[k]
		if from.Completeness == to.Completeness && from.MissingRate == to.MissingRate {
			continue
		}
		diff.Deltas = append(diff.Deltas, model.FieldDelta{
			EntityType:       k.entityType,
			SourceID:         k.sourceID,
			FieldName:        k.fieldName,
			CompletenessFrom: from.Completeness,
			CompletenessTo:   to.Completeness,
			MissingRateFrom:  from.MissingRate,
			MissingRateTo:    to.MissingRate,
			Delta:            to.Completeness - from.Completeness,
		})
	}

	sort.Slice(diff.Deltas, func(i, j int) bool {
		x, y := diff.Deltas[i], diff.Deltas[j]
		if x.EntityType != y.EntityType {
			return x.EntityType < y.EntityType
		}
		if x.SourceID != y.SourceID {
			return x.SourceID < y.SourceID
		}
		return x.FieldName < y.FieldName
	})

	return diff
}
