// Package report rolls per-field classifications up into the per-run
// completeness report consumed by monitoring. Pure aggregation: nothing
// here mutates a classification.
package report

import (
	"sort"
	"time"

	"github.com/sells-group/completeness-cli/internal/model"
	"github.com/sells-group/completeness-cli/internal/runner"
)

type statKey struct {
	entityType string
	sourceID   string
	fieldName  string
}

// Summarize builds the run report: a joined (cross-source) rollup per
// (entity_type, field) plus per-source cells, and per-source hygiene
// summaries.
func Summarize(res *runner.Result) *model.RunReport {
	rep := &model.RunReport{
		RunID:       res.RunID,
		Horizon:     res.Horizon,
		Entities:    res.Entities,
		Failures:    res.Failures,
		GeneratedAt: time.Now().UTC(),
	}

	cells := make(map[statKey]*model.FieldStat)
	bump := func(key statKey, verdict model.Verdict, flag model.EvidenceFlag) {
		st, ok := cells[key]
		if !ok {
			st = &model.FieldStat{
				EntityType: key.entityType,
				SourceID:   key.sourceID,
				FieldName:  key.fieldName,
			}
			cells[key] = st
		}
		switch verdict {
		case model.VerdictPresent:
			st.Present++
		case model.VerdictMissing:
			st.Missing++
			if flag == model.EvidenceNoAttempt {
				st.MissingNoAtt++
			}
		case model.VerdictNotApplicable:
			st.NotApplicable++
		case model.VerdictConflicting:
			st.Conflicting++
		}
	}

	for _, cls := range res.Classifications {
		bump(statKey{entityType: cls.EntityType, fieldName: cls.FieldName}, cls.Verdict, cls.Flag)
		switch cls.Verdict {
		case model.VerdictPresent:
			rep.Present++
		case model.VerdictMissing:
			rep.Missing++
		case model.VerdictNotApplicable:
			rep.NotApplicable++
		case model.VerdictConflicting:
			rep.Conflicting++
		}
	}

	srcEntities := make(map[string]map[string]struct{})
	srcApplicable := make(map[string]int)
	srcPresent := make(map[string]int)
	for _, st := range res.SourceStatuses {
		bump(statKey{entityType: st.EntityType, sourceID: st.SourceID, fieldName: st.FieldName}, st.Verdict, st.Flag)
		if srcEntities[st.SourceID] == nil {
			srcEntities[st.SourceID] = make(map[string]struct{})
		}
		srcEntities[st.SourceID][st.EntityID] = struct{}{}
		if st.Verdict != model.VerdictNotApplicable {
			srcApplicable[st.SourceID]++
			if st.Verdict == model.VerdictPresent {
				srcPresent[st.SourceID]++
			}
		}
	}

	for _, st := range cells {
		applicable := st.Present + st.Missing + st.Conflicting
		if applicable > 0 {
			st.Completeness = float64(st.Present) / float64(applicable)
			st.MissingRate = float64(st.Missing) / float64(applicable)
		}
		rep.FieldStats = append(rep.FieldStats, *st)
	}
	sort.Slice(rep.FieldStats, func(i, j int) bool {
		a, b := rep.FieldStats[i], rep.FieldStats[j]
		if a.EntityType != b.EntityType {
			return a.EntityType < b.EntityType
		}
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		return a.FieldName < b.FieldName
	})

	applicableTotal := rep.Present + rep.Missing + rep.Conflicting
	if applicableTotal > 0 {
		rep.Completeness = float64(rep.Present) / float64(applicableTotal)
	}

	srcIDs := make([]string, 0, len(srcEntities))
	for src := range srcEntities {
		srcIDs = append(srcIDs, src)
	}
	sort.Strings(srcIDs)
	for _, src := range srcIDs {
		sum := model.SourceSummary{
			SourceID:         src,
			Entities:         len(srcEntities[src]),
			TypeMismatches:   res.TypeMismatches[src],
			UndeclaredFields: res.Undeclared[src],
		}
		if srcApplicable[src] > 0 {
			sum.Completeness = float64(srcPresent[src]) / float64(srcApplicable[src])
		}
		rep.Sources = append(rep.Sources, sum)
	}

	return rep
}
