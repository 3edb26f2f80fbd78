package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/completeness-cli/internal/model"
)

func entityWith(fields map[string]any) *model.JoinedEntity {
	e := &model.JoinedEntity{
		EntityID:   "acme",
		EntityType: "company",
		Fields:     make(map[string][]model.FieldCandidate),
	}
	for name, val := range fields {
		e.Fields[name] = []model.FieldCandidate{{SourceID: "a", Value: val}}
	}
	return e
}

func TestParsePredicate_Errors(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{
		"",
		"   ",
		"!",
		"a b",
		"a ~= 1",
		"a == 1 extra",
	} {
		_, err := ParsePredicate(expr)
		assert.Error(t, err, "expr %q", expr)
	}
}

func TestPredicate_Evaluate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		expr   string
		fields map[string]any
		want   PredicateResult
	}{
		{"unary true", "is_public", map[string]any{"is_public": true}, PredicateTrue},
		{"unary false", "is_public", map[string]any{"is_public": false}, PredicateFalse},
		{"unary negated", "!is_public", map[string]any{"is_public": false}, PredicateTrue},
		{"unary non-bool", "is_public", map[string]any{"is_public": "yes"}, PredicateUnknown},
		{"unary absent sibling", "is_public", map[string]any{}, PredicateUnknown},
		{"eq bool", "is_public == true", map[string]any{"is_public": true}, PredicateTrue},
		{"eq string", `country == "US"`, map[string]any{"country": "US"}, PredicateTrue},
		{"eq string single quotes", "country == 'US'", map[string]any{"country": "US"}, PredicateTrue},
		{"eq unquoted string", "country == US", map[string]any{"country": "US"}, PredicateTrue},
		{"neq", "country != US", map[string]any{"country": "DE"}, PredicateTrue},
		{"gt", "employees > 100", map[string]any{"employees": float64(250)}, PredicateTrue},
		{"gte boundary", "employees >= 100", map[string]any{"employees": float64(100)}, PredicateTrue},
		{"lt false", "employees < 100", map[string]any{"employees": float64(250)}, PredicateFalse},
		{"relational non-numeric", "employees > 100", map[string]any{"employees": "many"}, PredicateUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, err := ParsePredicate(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.Evaluate(entityWith(tc.fields)))
		})
	}
}

func TestPredicate_ConflictedSiblingIsUnknown(t *testing.T) {
	t.Parallel()

	p, err := ParsePredicate("is_public == true")
	require.NoError(t, err)

	e := entityWith(nil)
	e.Fields["is_public"] = []model.FieldCandidate{
		{SourceID: "a", Value: true},
		{SourceID: "b", Value: false},
	}
	assert.Equal(t, PredicateUnknown, p.Evaluate(e))
}
