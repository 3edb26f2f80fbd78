package model

// Applicability declares whether a field is expected to exist for an entity.
type Applicability string

const (
	ApplicabilityAlways      Applicability = "always"
	ApplicabilityConditional Applicability = "conditional"
	ApplicabilityNever       Applicability = "never"
)

// TypeHint is a coarse JSON shape constraint for a field's raw value.
type TypeHint string

const (
	TypeHintString  TypeHint = "string"
	TypeHintNumber  TypeHint = "number"
	TypeHintInteger TypeHint = "integer"
	TypeHintBoolean TypeHint = "boolean"
	TypeHintArray   TypeHint = "array"
	TypeHintObject  TypeHint = "object"
)

// FieldSpec declares one field of an entity type: whether it is expected,
// conditionally expected, or never carried, plus an optional shape hint.
// Conditional fields carry a predicate over sibling fields, e.g.
// "is_public == true".
type FieldSpec struct {
	Name          string        `json:"name" yaml:"name"`
	Applicability Applicability `json:"applicability" yaml:"applicability"`
	Condition     string        `json:"condition,omitempty" yaml:"condition,omitempty"`
	TypeHint      TypeHint      `json:"type_hint,omitempty" yaml:"type_hint,omitempty"`
}

// EntityType is a named schema: an ordered list of field specs.
// Immutable once registered for a run.
type EntityType struct {
	Name   string      `json:"name" yaml:"name"`
	Fields []FieldSpec `json:"fields" yaml:"fields"`
}

// Matches reports whether a raw JSON-decoded value matches the hint.
// An empty hint matches everything; nil values match nothing.
func (h TypeHint) Matches(v any) bool {
	if h == "" {
		return true
	}
	switch h {
	case TypeHintString:
		_, ok := v.(string)
		return ok
	case TypeHintNumber:
		_, ok := v.(float64)
		return ok
	case TypeHintInteger:
		f, ok := v.(float64)
		return ok && f == float64(int64(f))
	case TypeHintBoolean:
		_, ok := v.(bool)
		return ok
	case TypeHintArray:
		_, ok := v.([]any)
		return ok
	case TypeHintObject:
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}
