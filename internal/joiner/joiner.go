// Package joiner merges per-source extraction records for one logical entity
// into a single joined record with full per-field provenance. No value ever
// wins silently here: every source's candidate is retained so the classifier
// can surface disagreement instead of resolving it.
package joiner

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/completeness-cli/internal/model"
)

// EntityTypeMismatchError signals two sources declaring different entity
// types for the same entity ID.
type EntityTypeMismatchError struct {
	EntityID string
	TypeA    string
	TypeB    string
}

func (e *EntityTypeMismatchError) Error() string {
	return fmt.Sprintf("joiner: entity %s declared as both %q and %q", e.EntityID, e.TypeA, e.TypeB)
}

// NormalizeEntityID canonicalizes an entity ID before grouping, so
// byte-different but canonically-equal IDs from independent scrapers join.
func NormalizeEntityID(id string) string {
	return norm.NFC.String(id)
}

// Group buckets records by normalized entity ID, dropping records stamped
// after the run horizon. A zero horizon keeps everything.
func Group(records []model.SourceRecord, horizon time.Time) map[string][]model.SourceRecord {
	grouped := make(map[string][]model.SourceRecord)
	for _, rec := range records {
		if !horizon.IsZero() && rec.Timestamp.After(horizon) {
			continue
		}
		id := NormalizeEntityID(rec.EntityID)
		grouped[id] = append(grouped[id], rec)
	}
	return grouped
}

// Join merges one entity's records into a JoinedEntity. Absent fields
// contribute nothing; every non-absent value is kept as a candidate with
// provenance, ordered most recent first (source ID breaks timestamp ties)
// so repeated runs emit identical output.
func Join(entityID string, records []model.SourceRecord) (*model.JoinedEntity, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("joiner: no records for entity %s", entityID)
	}

	entityType := records[0].EntityType
	for _, rec := range records[1:] {
		if rec.EntityType != entityType {
			return nil, &EntityTypeMismatchError{
				EntityID: entityID,
				TypeA:    entityType,
				TypeB:    rec.EntityType,
			}
		}
	}

	joined := &model.JoinedEntity{
		EntityID:   entityID,
		EntityType: entityType,
		Fields:     make(map[string][]model.FieldCandidate),
	}

	seenSources := make(map[string]struct{})
	for _, rec := range records {
		if _, ok := seenSources[rec.SourceID]; !ok {
			seenSources[rec.SourceID] = struct{}{}
			joined.Sources = append(joined.Sources, rec.SourceID)
		}
		for name, val := range rec.Fields {
			if val == nil {
				// Scrapers encode "absent" as an omitted key; an explicit
				// null is treated the same way.
				continue
			}
			joined.Fields[name] = append(joined.Fields[name], model.FieldCandidate{
				SourceID:  rec.SourceID,
				Value:     val,
				Timestamp: rec.Timestamp,
			})
		}
	}

	sort.Strings(joined.Sources)
	for name := range joined.Fields {
		cands := joined.Fields[name]
		sort.SliceStable(cands, func(i, j int) bool {
			if !cands[i].Timestamp.Equal(cands[j].Timestamp) {
				return cands[i].Timestamp.After(cands[j].Timestamp)
			}
			return cands[i].SourceID < cands[j].SourceID
		})
	}

	return joined, nil
}
