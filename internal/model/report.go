package model

import "time"

// RunStatus represents the state of a classification run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one classification run over a delivered record set.
type Run struct {
	ID        string    `json:"id"`
	Status    RunStatus `json:"status"`
	Horizon   time.Time `json:"horizon"`
	Report    *RunReport `json:"report,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FieldStat aggregates verdicts for one (entity_type, source, field) cell.
// SourceID is empty for the joined (cross-source) rollup rows.
type FieldStat struct {
	EntityType    string  `json:"entity_type"`
	SourceID      string  `json:"source_id,omitempty"`
	FieldName     string  `json:"field_name"`
	Present       int     `json:"present"`
	Missing       int     `json:"missing"`
	MissingNoAtt  int     `json:"missing_no_attempt"`
	NotApplicable int     `json:"not_applicable"`
	Conflicting   int     `json:"conflicting"`
	Completeness  float64 `json:"completeness"`
	MissingRate   float64 `json:"missing_rate"`
}

// SourceSummary aggregates per-source hygiene counters for a run.
type SourceSummary struct {
	SourceID         string   `json:"source_id"`
	Entities         int      `json:"entities"`
	Completeness     float64  `json:"completeness"`
	TypeMismatches   int      `json:"type_mismatches"`
	UndeclaredFields []string `json:"undeclared_fields,omitempty"`
}

// RunReport is the per-run completeness report handed to monitoring.
type RunReport struct {
	RunID         string          `json:"run_id"`
	Horizon       time.Time       `json:"horizon"`
	Entities      int             `json:"entities"`
	Present       int             `json:"present"`
	Missing       int             `json:"missing"`
	NotApplicable int             `json:"not_applicable"`
	Conflicting   int             `json:"conflicting"`
	Completeness  float64         `json:"completeness"`
	FieldStats    []FieldStat     `json:"field_stats"`
	Sources       []SourceSummary `json:"sources"`
	Failures      []EntityFailure `json:"failures,omitempty"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// FieldDelta is the change in one field-stat cell between two runs.
type FieldDelta struct {
	EntityType       string  `json:"entity_type"`
	SourceID         string  `json:"source_id,omitempty"`
	FieldName        string  `json:"field_name"`
	CompletenessFrom float64 `json:"completeness_from"`
	CompletenessTo   float64 `json:"completeness_to"`
	MissingRateFrom  float64 `json:"missing_rate_from"`
	MissingRateTo    float64 `json:"missing_rate_to"`
	Delta            float64 `json:"delta"`
}

// ReportDiff compares two runs' per-field rates for trend alerting.
type ReportDiff struct {
	RunA   string       `json:"run_a"`
	RunB   string       `json:"run_b"`
	Deltas []FieldDelta `json:"deltas"`
}
