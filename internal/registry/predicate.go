package registry

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/completeness-cli/internal/model"
)

// PredicateResult is three-valued: a predicate over an absent or conflicted
// sibling cannot be decided.
type PredicateResult int

const (
	PredicateFalse PredicateResult = iota
	PredicateTrue
	PredicateUnknown
)

// Predicate is a compiled condition over sibling fields of an entity
// instance. The language is a single comparison:
//
//	<field> <op> <literal>    op: == != > >= < <=
//	<field>                   boolean field, true when the value is true
//	!<field>                  negated boolean field
//
// Literals: true, false, null, numbers, and single- or double-quoted
// strings. Unquoted non-numeric literals are treated as strings.
type Predicate struct {
	raw     string
	field   string
	op      string
	literal any
	negate  bool
	unary   bool
}

// ParsePredicate compiles a condition expression. Called at registry load so
// malformed conditions fail registration.
func ParsePredicate(expr string) (*Predicate, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, eris.New("registry: empty condition on conditional field")
	}

	p := &Predicate{raw: expr}

	// Unary boolean forms.
	if !strings.ContainsAny(trimmed, " \t") {
		field := trimmed
		if strings.HasPrefix(field, "!") {
			p.negate = true
			field = strings.TrimPrefix(field, "!")
		}
		if field == "" || strings.ContainsAny(field, "=<>!") {
			return nil, eris.Errorf("registry: cannot parse condition %q", expr)
		}
		p.field = field
		p.unary = true
		return p, nil
	}

	parts := strings.Fields(trimmed)
	if len(parts) != 3 {
		return nil, eris.Errorf("registry: cannot parse condition %q (want: field op literal)", expr)
	}
	p.field = parts[0]

	switch parts[1] {
	case "==", "!=", ">", ">=", "<", "<=":
		p.op = parts[1]
	default:
		return nil, eris.Errorf("registry: unsupported operator %q in condition %q", parts[1], expr)
	}

	p.literal = parseLiteral(parts[2])
	return p, nil
}

func parseLiteral(tok string) any {
	switch tok {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if n, err := strconv.ParseFloat(tok, 64); err == nil {
		return n
	}
	if len(tok) >= 2 {
		if (tok[0] == '"' && tok[len(tok)-1] == '"') || (tok[0] == '\'' && tok[len(tok)-1] == '\'') {
			return tok[1 : len(tok)-1]
		}
	}
	return tok
}

// Field returns the sibling field the predicate depends on.
func (p *Predicate) Field() string { return p.field }

// String returns the original expression.
func (p *Predicate) String() string { return p.raw }

// Evaluate resolves the predicate against the entity's accepted sibling
// value. A sibling with no candidates, or with conflicting candidates, has
// no trustworthy value: the result is PredicateUnknown.
func (p *Predicate) Evaluate(entity *model.JoinedEntity) PredicateResult {
	val, ok := entity.AcceptedValue(p.field)
	if !ok {
		return PredicateUnknown
	}

	if p.unary {
		b, isBool := val.(bool)
		if !isBool {
			return PredicateUnknown
		}
		if p.negate {
			b = !b
		}
		if b {
			return PredicateTrue
		}
		return PredicateFalse
	}

	switch p.op {
	case "==":
		return boolResult(model.CanonicalValue(val) == model.CanonicalValue(p.literal))
	case "!=":
		return boolResult(model.CanonicalValue(val) != model.CanonicalValue(p.literal))
	}

	// Relational operators need numbers on both sides.
	lv, lok := val.(float64)
	rv, rok := p.literal.(float64)
	if !lok || !rok {
		return PredicateUnknown
	}
	switch p.op {
	case ">":
		return boolResult(lv > rv)
	case ">=":
		return boolResult(lv >= rv)
	case "<":
		return boolResult(lv < rv)
	case "<=":
		return boolResult(lv <= rv)
	}
	return PredicateUnknown
}

func boolResult(b bool) PredicateResult {
	if b {
		return PredicateTrue
	}
	return PredicateFalse
}
