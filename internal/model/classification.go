package model

import "time"

// Verdict is the completeness classification for one field of one entity.
type Verdict string

const (
	VerdictPresent       Verdict = "present"
	VerdictMissing       Verdict = "missing"
	VerdictNotApplicable Verdict = "not_applicable"
	VerdictConflicting   Verdict = "conflicting"
)

// EvidenceFlag distinguishes why an applicable field is missing.
type EvidenceFlag string

const (
	// EvidenceAttempted: at least one source attempted the field and came
	// back empty-handed. A genuine data gap.
	EvidenceAttempted EvidenceFlag = "attempted"
	// EvidenceNoAttempt: no lineage exists for the field at all. A scraper
	// or schema gap, not a data gap.
	EvidenceNoAttempt EvidenceFlag = "no-attempt"
)

// SourceEvidence cites one source contributing to a verdict.
type SourceEvidence struct {
	SourceID  string    `json:"source_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Classification is the verdict for one (entity, field) pair. Derived and
// recomputed per run, never hand-edited. Evidence is ordered most recent
// first.
type Classification struct {
	EntityID   string           `json:"entity_id"`
	EntityType string           `json:"entity_type"`
	FieldName  string           `json:"field_name"`
	Verdict    Verdict          `json:"verdict"`
	Flag       EvidenceFlag     `json:"flag,omitempty"`
	Evidence   []SourceEvidence `json:"evidence,omitempty"`
}

// SourceFieldStatus is the per-source view of one field: whether this
// particular source delivered it. The joined verdict can be PRESENT while an
// individual source sits at MISSING; source-level completeness metrics are
// built from these.
type SourceFieldStatus struct {
	EntityID   string       `json:"entity_id"`
	EntityType string       `json:"entity_type"`
	SourceID   string       `json:"source_id"`
	FieldName  string       `json:"field_name"`
	Verdict    Verdict      `json:"verdict"`
	Flag       EvidenceFlag `json:"flag,omitempty"`
}

// EntityFailure records one entity whose classification failed. Failures are
// isolated: they are reported, and the run carries on.
type EntityFailure struct {
	EntityID string `json:"entity_id"`
	Error    string `json:"error"`
}
