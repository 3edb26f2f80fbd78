package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/completeness-cli/internal/model"
)

func companySchema(t *testing.T) *Registry {
	t.Helper()
	reg := New()
	require.NoError(t, reg.Register(model.EntityType{
		Name: "company",
		Fields: []model.FieldSpec{
			{Name: "name", Applicability: model.ApplicabilityAlways, TypeHint: model.TypeHintString},
			{Name: "is_public", Applicability: model.ApplicabilityAlways, TypeHint: model.TypeHintBoolean},
			{Name: "ticker", Applicability: model.ApplicabilityConditional, Condition: "is_public == true"},
			{Name: "fax", Applicability: model.ApplicabilityNever},
		},
	}))
	return reg
}

func TestRegistry_RegisterDuplicateField(t *testing.T) {
	t.Parallel()

	reg := New()
	et := model.EntityType{
		Name: "company",
		Fields: []model.FieldSpec{
			{Name: "name", Applicability: model.ApplicabilityAlways},
			{Name: "name", Applicability: model.ApplicabilityNever},
		},
	}

	err := reg.Register(et)
	require.Error(t, err)

	var dup *DuplicateFieldSpecError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "company", dup.EntityType)
	assert.Equal(t, "name", dup.FieldName)
}

func TestRegistry_RegisterMalformedCondition(t *testing.T) {
	t.Parallel()

	err := New().Register(model.EntityType{
		Name: "company",
		Fields: []model.FieldSpec{
			{Name: "ticker", Applicability: model.ApplicabilityConditional, Condition: "is_public ~ yes"},
		},
	})
	assert.Error(t, err)
}

func TestRegistry_FieldsUnknownType(t *testing.T) {
	t.Parallel()

	_, err := New().Fields("ghost")
	var unknown *UnknownSchemaError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.EntityType)
}

func TestRegistry_FieldsDeclarationOrder(t *testing.T) {
	t.Parallel()

	reg := companySchema(t)
	fields, err := reg.Fields("company")
	require.NoError(t, err)
	require.Len(t, fields, 4)
	assert.Equal(t, "name", fields[0].Name)
	assert.Equal(t, "fax", fields[3].Name)

	assert.Equal(t, []string{"company"}, reg.EntityTypes())
	assert.True(t, reg.HasField("company", "ticker"))
	assert.False(t, reg.HasField("company", "ghost"))
}

func TestRegistry_ResolveApplicability(t *testing.T) {
	t.Parallel()

	reg := companySchema(t)

	entity := func(isPublic any) *model.JoinedEntity {
		e := &model.JoinedEntity{
			EntityID:   "acme",
			EntityType: "company",
			Fields:     make(map[string][]model.FieldCandidate),
		}
		if isPublic != nil {
			e.Fields["is_public"] = []model.FieldCandidate{{SourceID: "a", Value: isPublic}}
		}
		return e
	}

	res, err := reg.ResolveApplicability("company", "name", entity(nil))
	require.NoError(t, err)
	assert.Equal(t, ResolutionAlways, res)
	assert.True(t, res.Applicable())

	res, err = reg.ResolveApplicability("company", "fax", entity(nil))
	require.NoError(t, err)
	assert.Equal(t, ResolutionNever, res)
	assert.False(t, res.Applicable())

	res, err = reg.ResolveApplicability("company", "ticker", entity(true))
	require.NoError(t, err)
	assert.Equal(t, ResolutionConditionalTrue, res)
	assert.True(t, res.Applicable())

	res, err = reg.ResolveApplicability("company", "ticker", entity(false))
	require.NoError(t, err)
	assert.Equal(t, ResolutionConditionalFalse, res)

	res, err = reg.ResolveApplicability("company", "ticker", entity(nil))
	require.NoError(t, err)
	assert.Equal(t, ResolutionConditionalUnknown, res)
	assert.False(t, res.Applicable())

	_, err = reg.ResolveApplicability("company", "ghost", entity(nil))
	var unknownField *UnknownFieldError
	assert.ErrorAs(t, err, &unknownField)

	_, err = reg.ResolveApplicability("person", "name", entity(nil))
	var unknownSchema *UnknownSchemaError
	assert.ErrorAs(t, err, &unknownSchema)
}
