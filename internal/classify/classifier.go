// Package classify implements the two-axis completeness verdict engine:
// declared applicability crossed with evidence of extraction attempts. The
// first axis is a schema fact resolved per instance through the expectation
// registry; the second comes from the lineage trail, which is what lets a
// field that no scraper ever tried be told apart from one that was tried and
// genuinely absent.
package classify

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/completeness-cli/internal/lineage"
	"github.com/sells-group/completeness-cli/internal/model"
	"github.com/sells-group/completeness-cli/internal/registry"
)

// Classifier assigns verdicts to every declared field of a joined entity.
// Registry and lineage store are injected per run; there is no shared
// mutable state, so entities classify in parallel with no coordination.
type Classifier struct {
	reg     *registry.Registry
	lin     lineage.Store
	horizon time.Time
}

// New creates a classifier bound to a run horizon. Lineage entries and
// record candidates after the horizon are invisible, which makes a run
// deterministic even while ingestion continues.
func New(reg *registry.Registry, lin lineage.Store, horizon time.Time) *Classifier {
	return &Classifier{reg: reg, lin: lin, horizon: horizon}
}

// EntityResult is everything the classifier derives for one entity.
type EntityResult struct {
	Classifications []model.Classification
	SourceStatuses  []model.SourceFieldStatus
	// TypeMismatches counts candidates whose JSON shape contradicts the
	// declared type hint, per source.
	TypeMismatches map[string]int
	// Undeclared lists fields a source reported that the schema does not
	// declare, per source. Such fields never produce a classification.
	Undeclared map[string][]string
}

// ClassifyEntity derives a verdict for each declared field of the entity,
// plus the per-source field statuses the aggregator rolls into source-level
// completeness.
func (c *Classifier) ClassifyEntity(ctx context.Context, entity *model.JoinedEntity) (*EntityResult, error) {
	specs, err := c.reg.Fields(entity.EntityType)
	if err != nil {
		return nil, err
	}

	result := &EntityResult{
		TypeMismatches: make(map[string]int),
		Undeclared:     make(map[string][]string),
	}

	sources, lineageBySource, err := c.participants(ctx, entity, specs)
	if err != nil {
		return nil, err
	}

	for _, spec := range specs {
		res, err := c.reg.ResolveApplicability(entity.EntityType, spec.Name, entity)
		if err != nil {
			return nil, err
		}

		cls := model.Classification{
			EntityID:   entity.EntityID,
			EntityType: entity.EntityType,
			FieldName:  spec.Name,
		}

		switch {
		case res == registry.ResolutionNever || res == registry.ResolutionConditionalFalse:
			// Declared inapplicable for this instance: correct absence,
			// regardless of what lineage says.
			cls.Verdict = model.VerdictNotApplicable
			result.Classifications = append(result.Classifications, cls)
			for _, src := range sources {
				result.SourceStatuses = append(result.SourceStatuses, model.SourceFieldStatus{
					EntityID:   entity.EntityID,
					EntityType: entity.EntityType,
					SourceID:   src,
					FieldName:  spec.Name,
					Verdict:    model.VerdictNotApplicable,
				})
			}
			continue

		case res == registry.ResolutionConditionalUnknown:
			// The sibling the condition depends on is itself missing or
			// conflicted. Conservative default: report MISSING, never
			// silently NOT_APPLICABLE.
			cls.Verdict = model.VerdictMissing
			cands := entity.Fields[spec.Name]
			if len(cands) > 0 {
				cls.Evidence = evidenceFromCandidates(cands)
			} else {
				cls.Flag = c.missingFlag(lineageBySource[spec.Name])
				cls.Evidence = evidenceFromAttempts(lineageBySource[spec.Name])
			}
			result.Classifications = append(result.Classifications, cls)
			c.sourceStatuses(result, entity, spec.Name, sources, lineageBySource[spec.Name])
			continue
		}

		// Applicable (ALWAYS or CONDITIONAL_TRUE).
		cands := entity.Fields[spec.Name]
		c.countTypeMismatches(result, spec, cands)

		switch {
		case len(cands) == 0:
			cls.Verdict = model.VerdictMissing
			cls.Flag = c.missingFlag(lineageBySource[spec.Name])
			cls.Evidence = evidenceFromAttempts(lineageBySource[spec.Name])

		case len(entity.DistinctValues(spec.Name)) == 1:
			cls.Verdict = model.VerdictPresent
			cls.Evidence = evidenceFromCandidates(cands)

		default:
			// The engine surfaces disagreement; it never picks a winner by
			// recency or trust.
			cls.Verdict = model.VerdictConflicting
			cls.Evidence = evidenceFromCandidates(cands)
		}

		result.Classifications = append(result.Classifications, cls)
		c.sourceStatuses(result, entity, spec.Name, sources, lineageBySource[spec.Name])
	}

	c.collectUndeclared(result, entity)
	return result, nil
}

// participants returns every source involved with the entity (record
// contributors plus sources that only show up in lineage) and the lineage
// entries per declared field, grouped by source.
func (c *Classifier) participants(ctx context.Context, entity *model.JoinedEntity, specs []model.FieldSpec) ([]string, map[string]map[string][]model.LineageEntry, error) {
	seen := make(map[string]struct{})
	for _, src := range entity.Sources {
		seen[src] = struct{}{}
	}

	byField := make(map[string]map[string][]model.LineageEntry, len(specs))
	for _, spec := range specs {
		cur, err := c.lin.Query(ctx, entity.EntityID, spec.Name, c.horizon)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "classify: query lineage for %s.%s", entity.EntityID, spec.Name)
		}
		bySource := make(map[string][]model.LineageEntry)
		for cur.Next() {
			e := cur.Entry()
			bySource[e.SourceID] = append(bySource[e.SourceID], e)
			seen[e.SourceID] = struct{}{}
		}
		iterErr := cur.Err()
		closeErr := cur.Close()
		if iterErr != nil {
			return nil, nil, eris.Wrap(iterErr, "classify: iterate lineage")
		}
		if closeErr != nil {
			return nil, nil, eris.Wrap(closeErr, "classify: close lineage cursor")
		}
		byField[spec.Name] = bySource
	}

	sources := make([]string, 0, len(seen))
	for src := range seen {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	return sources, byField, nil
}

// missingFlag distinguishes "no source ever attempted this field" from
// "attempted and came back empty".
func (c *Classifier) missingFlag(bySource map[string][]model.LineageEntry) model.EvidenceFlag {
	for _, entries := range bySource {
		for _, e := range entries {
			if e.Attempted || e.Outcome == model.AttemptNotFound || e.Outcome == model.AttemptError {
				return model.EvidenceAttempted
			}
		}
	}
	return model.EvidenceNoAttempt
}

// sourceStatuses emits the per-source view of one applicable-or-unknown
// field: PRESENT for sources that contributed a value, MISSING with the
// attempt flag for those that did not.
func (c *Classifier) sourceStatuses(result *EntityResult, entity *model.JoinedEntity, fieldName string, sources []string, linBySource map[string][]model.LineageEntry) {
	contributed := make(map[string]struct{})
	for _, cand := range entity.Fields[fieldName] {
		contributed[cand.SourceID] = struct{}{}
	}

	for _, src := range sources {
		status := model.SourceFieldStatus{
			EntityID:   entity.EntityID,
			EntityType: entity.EntityType,
			SourceID:   src,
			FieldName:  fieldName,
		}
		if _, ok := contributed[src]; ok {
			status.Verdict = model.VerdictPresent
		} else {
			status.Verdict = model.VerdictMissing
			status.Flag = model.EvidenceNoAttempt
			for _, e := range linBySource[src] {
				if e.Attempted || e.Outcome == model.AttemptNotFound || e.Outcome == model.AttemptError {
					status.Flag = model.EvidenceAttempted
					break
				}
			}
		}
		result.SourceStatuses = append(result.SourceStatuses, status)
	}
}

func (c *Classifier) countTypeMismatches(result *EntityResult, spec model.FieldSpec, cands []model.FieldCandidate) {
	if spec.TypeHint == "" {
		return
	}
	for _, cand := range cands {
		if !spec.TypeHint.Matches(cand.Value) {
			result.TypeMismatches[cand.SourceID]++
			zap.L().Debug("classify: type hint mismatch",
				zap.String("field", spec.Name),
				zap.String("source", cand.SourceID),
				zap.String("hint", string(spec.TypeHint)),
			)
		}
	}
}

func (c *Classifier) collectUndeclared(result *EntityResult, entity *model.JoinedEntity) {
	for name, cands := range entity.Fields {
		if c.reg.HasField(entity.EntityType, name) {
			continue
		}
		perSource := make(map[string]struct{})
		for _, cand := range cands {
			if _, ok := perSource[cand.SourceID]; ok {
				continue
			}
			perSource[cand.SourceID] = struct{}{}
			result.Undeclared[cand.SourceID] = append(result.Undeclared[cand.SourceID], name)
		}
	}
	for src := range result.Undeclared {
		sort.Strings(result.Undeclared[src])
	}
}

// evidenceFromCandidates cites each contributing source once, most recent
// first. Candidates arrive already ordered by the joiner.
func evidenceFromCandidates(cands []model.FieldCandidate) []model.SourceEvidence {
	seen := make(map[string]struct{}, len(cands))
	out := make([]model.SourceEvidence, 0, len(cands))
	for _, cand := range cands {
		if _, ok := seen[cand.SourceID]; ok {
			continue
		}
		seen[cand.SourceID] = struct{}{}
		out = append(out, model.SourceEvidence{SourceID: cand.SourceID, Timestamp: cand.Timestamp})
	}
	return out
}

// evidenceFromAttempts cites sources whose lineage shows a failed attempt,
// most recent attempt first.
func evidenceFromAttempts(bySource map[string][]model.LineageEntry) []model.SourceEvidence {
	var out []model.SourceEvidence
	for src, entries := range bySource {
		var latest time.Time
		attempted := false
		for _, e := range entries {
			if !e.Attempted && e.Outcome != model.AttemptNotFound && e.Outcome != model.AttemptError {
				continue
			}
			attempted = true
			if e.Timestamp.After(latest) {
				latest = e.Timestamp
			}
		}
		if attempted {
			out = append(out, model.SourceEvidence{SourceID: src, Timestamp: latest})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}
