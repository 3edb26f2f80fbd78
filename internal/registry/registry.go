// Package registry holds the per-run expectation registry: which fields each
// entity type is expected to carry, and how per-instance applicability of
// conditional fields is resolved.
package registry

import (
	"fmt"
	"sort"

	"github.com/sells-group/completeness-cli/internal/model"
)

// Resolution is the outcome of resolving a field's applicability against a
// specific entity instance.
type Resolution string

const (
	ResolutionAlways             Resolution = "always"
	ResolutionConditionalTrue    Resolution = "conditional_true"
	ResolutionConditionalFalse   Resolution = "conditional_false"
	ResolutionConditionalUnknown Resolution = "conditional_unknown"
	ResolutionNever              Resolution = "never"
)

// Applicable reports whether the field is expected for the instance.
// ConditionalUnknown is deliberately not applicable here; the classifier
// treats it as MISSING rather than silently NOT_APPLICABLE.
func (r Resolution) Applicable() bool {
	return r == ResolutionAlways || r == ResolutionConditionalTrue
}

// DuplicateFieldSpecError signals a (entity_type, field_name) registered twice.
type DuplicateFieldSpecError struct {
	EntityType string
	FieldName  string
}

func (e *DuplicateFieldSpecError) Error() string {
	return fmt.Sprintf("registry: duplicate field spec %s.%s", e.EntityType, e.FieldName)
}

// UnknownSchemaError signals a reference to an unregistered entity type.
type UnknownSchemaError struct {
	EntityType string
}

func (e *UnknownSchemaError) Error() string {
	return fmt.Sprintf("registry: unknown entity type %q", e.EntityType)
}

// UnknownFieldError signals a reference to a field the schema does not declare.
type UnknownFieldError struct {
	EntityType string
	FieldName  string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("registry: unknown field %s.%s", e.EntityType, e.FieldName)
}

type schema struct {
	entityType model.EntityType
	byName     map[string]*compiledSpec
	ordered    []*compiledSpec
}

type compiledSpec struct {
	spec model.FieldSpec
	cond *Predicate // non-nil only for conditional fields
}

// Registry is an indexed, immutable-after-load collection of entity schemas.
// It is passed explicitly into the joiner and classifier; there is no global
// instance, so runs can hold isolated registries.
type Registry struct {
	schemas map[string]*schema
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{schemas: make(map[string]*schema)}
}

// Register adds an entity type's field specs. Conditional predicates are
// compiled here so a malformed condition fails the load, not the run.
func (r *Registry) Register(et model.EntityType) error {
	s, ok := r.schemas[et.Name]
	if !ok {
		s = &schema{
			entityType: et,
			byName:     make(map[string]*compiledSpec, len(et.Fields)),
		}
		r.schemas[et.Name] = s
	}

	for _, fs := range et.Fields {
		if _, dup := s.byName[fs.Name]; dup {
			return &DuplicateFieldSpecError{EntityType: et.Name, FieldName: fs.Name}
		}
		cs := &compiledSpec{spec: fs}
		if fs.Applicability == model.ApplicabilityConditional {
			p, err := ParsePredicate(fs.Condition)
			if err != nil {
				return err
			}
			cs.cond = p
		}
		s.byName[fs.Name] = cs
		s.ordered = append(s.ordered, cs)
	}
	return nil
}

// EntityTypes returns the registered entity type names, sorted.
func (r *Registry) EntityTypes() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Fields returns the entity type's field specs in declaration order.
func (r *Registry) Fields(entityType string) ([]model.FieldSpec, error) {
	s, ok := r.schemas[entityType]
	if !ok {
		return nil, &UnknownSchemaError{EntityType: entityType}
	}
	out := make([]model.FieldSpec, len(s.ordered))
	for i, cs := range s.ordered {
		out[i] = cs.spec
	}
	return out, nil
}

// HasField reports whether the schema declares the field.
func (r *Registry) HasField(entityType, fieldName string) bool {
	s, ok := r.schemas[entityType]
	if !ok {
		return false
	}
	_, ok = s.byName[fieldName]
	return ok
}

// Spec returns the declared spec for a field.
func (r *Registry) Spec(entityType, fieldName string) (model.FieldSpec, error) {
	s, ok := r.schemas[entityType]
	if !ok {
		return model.FieldSpec{}, &UnknownSchemaError{EntityType: entityType}
	}
	cs, ok := s.byName[fieldName]
	if !ok {
		return model.FieldSpec{}, &UnknownFieldError{EntityType: entityType, FieldName: fieldName}
	}
	return cs.spec, nil
}

// ResolveApplicability resolves a field's applicability for one joined
// entity instance. Conditional predicates are evaluated against the sibling
// fields of the same instance: a sibling that is itself absent or conflicted
// yields ConditionalUnknown, never a silent false.
func (r *Registry) ResolveApplicability(entityType, fieldName string, entity *model.JoinedEntity) (Resolution, error) {
	s, ok := r.schemas[entityType]
	if !ok {
		return "", &UnknownSchemaError{EntityType: entityType}
	}
	cs, ok := s.byName[fieldName]
	if !ok {
		return "", &UnknownFieldError{EntityType: entityType, FieldName: fieldName}
	}

	switch cs.spec.Applicability {
	case model.ApplicabilityAlways:
		return ResolutionAlways, nil
	case model.ApplicabilityNever:
		return ResolutionNever, nil
	case model.ApplicabilityConditional:
		verdict := cs.cond.Evaluate(entity)
		switch verdict {
		case PredicateTrue:
			return ResolutionConditionalTrue, nil
		case PredicateFalse:
			return ResolutionConditionalFalse, nil
		default:
			return ResolutionConditionalUnknown, nil
		}
	default:
		return "", fmt.Errorf("registry: invalid applicability %q for %s.%s", cs.spec.Applicability, entityType, fieldName)
	}
}
