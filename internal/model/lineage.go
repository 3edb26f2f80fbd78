package model

import (
	"fmt"
	"time"
)

// AttemptOutcome is the result of one per-field extraction attempt.
type AttemptOutcome string

const (
	AttemptFound    AttemptOutcome = "found"
	AttemptNotFound AttemptOutcome = "not_found"
	AttemptError    AttemptOutcome = "error"
)

// LineageEntry records whether a source attempted to extract a field for an
// entity and what happened. Entries are append-only and never mutated; they
// are the sole evidence trail behind a classification.
type LineageEntry struct {
	EntityID  string         `json:"entity_id"`
	SourceID  string         `json:"source_id"`
	FieldName string         `json:"field_name"`
	Timestamp time.Time      `json:"timestamp"`
	Attempted bool           `json:"attempted"`
	Outcome   AttemptOutcome `json:"outcome"`
}

// Key is the idempotency key for an entry. Duplicate writes with an
// identical payload are no-ops; divergent payloads for the same key are a
// contract violation.
func (e LineageEntry) Key() string {
	return fmt.Sprintf("%s|%s|%s|%d", e.EntityID, e.SourceID, e.FieldName, e.Timestamp.UTC().UnixNano())
}

// SamePayload reports whether two entries for the same key carry the same
// observation.
func (e LineageEntry) SamePayload(other LineageEntry) bool {
	return e.Attempted == other.Attempted && e.Outcome == other.Outcome
}
