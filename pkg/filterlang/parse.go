package filterlang

import "github.com/cuemby/milli-core/pkg/apperr"

// FieldChecker resolves a field's filter-relevant flags from the live
// FieldsIdsMap, so this package never has to depend on pkg/fields
// directly.
type FieldChecker interface {
	IsFilterable(field string) bool
	IsNumeric(field string) bool
}

// Parse parses expr per §4.K's grammar and validates every field
// reference against fields: a reference to a non-filterable field, or a
// numeric comparison against a non-numeric field, fails with a targeted
// Validation error before any store access happens.
func Parse(expr string, fields FieldChecker) (Condition, error) {
	if expr == "" {
		return nil, nil
	}
	ast, err := parseToAST(expr)
	if err != nil {
		var pe *ParseError
		if as, ok := err.(*ParseError); ok {
			pe = as
		}
		if pe != nil {
			return nil, apperr.Validation("%s", pe.Message)
		}
		return nil, apperr.Validation("filterlang: %v", err)
	}
	if err := validate(ast, fields); err != nil {
		return nil, err
	}
	return ast, nil
}

func validate(c Condition, fields FieldChecker) error {
	switch n := c.(type) {
	case *And:
		if err := validate(n.Left, fields); err != nil {
			return err
		}
		return validate(n.Right, fields)
	case *Or:
		if err := validate(n.Left, fields); err != nil {
			return err
		}
		return validate(n.Right, fields)
	case *Not:
		return validate(n.Inner, fields)
	case *Exists:
		return requireFilterable(n.Field, fields)
	case *IsEmpty:
		return requireFilterable(n.Field, fields)
	case *IsNull:
		return requireFilterable(n.Field, fields)
	case *In:
		if err := requireFilterable(n.Field, fields); err != nil {
			return err
		}
		for _, v := range n.Values {
			if v.IsNumeric() && !fields.IsNumeric(n.Field) {
				return apperr.Validation("field %q is not a numeric facet; cannot compare against %s", n.Field, v.String_())
			}
		}
		return nil
	case *Compare:
		if err := requireFilterable(n.Field, fields); err != nil {
			return err
		}
		if needsNumeric(n.Op) && !fields.IsNumeric(n.Field) {
			return apperr.Validation("field %q is not a numeric facet; operator %s requires a numeric comparison", n.Field, n.Op)
		}
		return nil
	default:
		return apperr.Internal(nil, "filterlang: unknown condition node %T", c)
	}
}

func requireFilterable(field string, fields FieldChecker) error {
	if !fields.IsFilterable(field) {
		return apperr.Validation("field %q is not filterable", field)
	}
	return nil
}

// needsNumeric reports whether op is only meaningful for ordered
// (numeric) comparisons. Equality/inequality are allowed against strings
// and booleans too.
func needsNumeric(op Op) bool {
	switch op {
	case OpLt, OpLte, OpGt, OpGte:
		return true
	default:
		return false
	}
}
