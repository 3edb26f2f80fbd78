package model

import (
	"encoding/json"
	"sort"
	"time"
)

// ExtractionOutcome is the overall outcome a scraper reported for one record.
type ExtractionOutcome string

const (
	ExtractionSuccess ExtractionOutcome = "success"
	ExtractionPartial ExtractionOutcome = "partial"
	ExtractionFailed  ExtractionOutcome = "failed"
)

// SourceRecord is one source's extraction for one entity at one point in time.
// Records are created upstream by the scrapers and are immutable; the triple
// (SourceID, EntityID, Timestamp) identifies a record.
type SourceRecord struct {
	SourceID   string            `json:"source_id"`
	EntityID   string            `json:"entity_id"`
	EntityType string            `json:"entity_type"`
	Timestamp  time.Time         `json:"timestamp"`
	Fields     map[string]any    `json:"fields"`
	Outcome    ExtractionOutcome `json:"extraction_outcome"`
}

// FieldCandidate is one source's reported value for a joined field.
type FieldCandidate struct {
	SourceID  string    `json:"source_id"`
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// JoinedEntity is the union of all sources' records for one entity as of a
// run horizon. Candidates keep full provenance; nothing is collapsed here.
type JoinedEntity struct {
	EntityID   string                      `json:"entity_id"`
	EntityType string                      `json:"entity_type"`
	Fields     map[string][]FieldCandidate `json:"fields"`
	// Sources lists every source that contributed a record, sorted.
	Sources []string `json:"sources"`
}

// AcceptedValue returns the field's sole distinct candidate value, if there
// is exactly one. ok is false when the field has no candidates or the
// candidates disagree.
func (e *JoinedEntity) AcceptedValue(field string) (any, bool) {
	cands := e.Fields[field]
	if len(cands) == 0 {
		return nil, false
	}
	first := CanonicalValue(cands[0].Value)
	for _, c := range cands[1:] {
		if CanonicalValue(c.Value) != first {
			return nil, false
		}
	}
	return cands[0].Value, true
}

// DistinctValues returns the canonical encodings of the field's candidate
// values, sorted, one entry per distinct value.
func (e *JoinedEntity) DistinctValues(field string) []string {
	seen := make(map[string]struct{})
	for _, c := range e.Fields[field] {
		seen[CanonicalValue(c.Value)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// CanonicalValue renders a raw JSON-decoded value into a stable comparison
// key. encoding/json sorts object keys, so equal values always encode
// identically regardless of source ordering.
func CanonicalValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "<unencodable>"
	}
	return string(b)
}
