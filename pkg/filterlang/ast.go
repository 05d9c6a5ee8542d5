package filterlang

import "fmt"

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "="
	OpNeq Op = "!="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Value is a filter literal: exactly one of String/Number/Bool is set.
type Value struct {
	String *string
	Number *float64
	Bool   *bool
}

func (v Value) String_() string {
	switch {
	case v.String != nil:
		return fmt.Sprintf("%q", *v.String)
	case v.Number != nil:
		return fmt.Sprintf("%v", *v.Number)
	case v.Bool != nil:
		return fmt.Sprintf("%v", *v.Bool)
	default:
		return "<empty>"
	}
}

// IsNumeric reports whether v carries a numeric literal.
func (v Value) IsNumeric() bool { return v.Number != nil }

// Condition is any node in the filter AST.
type Condition interface {
	isCondition()
}

// And is the conjunction of Left and Right.
type And struct{ Left, Right Condition }

// Or is the disjunction of Left and Right.
type Or struct{ Left, Right Condition }

// Not negates Inner.
type Not struct{ Inner Condition }

// Compare is `field OP value`.
type Compare struct {
	Field string
	Op    Op
	Value Value
}

// In is `field IN [v1, v2, ...]`.
type In struct {
	Field  string
	Values []Value
}

// Exists is `EXISTS field`.
type Exists struct{ Field string }

// IsEmpty is `IS_EMPTY field`.
type IsEmpty struct{ Field string }

// IsNull is `IS_NULL field`.
type IsNull struct{ Field string }

func (*And) isCondition()     {}
func (*Or) isCondition()      {}
func (*Not) isCondition()     {}
func (*Compare) isCondition() {}
func (*In) isCondition()      {}
func (*Exists) isCondition()  {}
func (*IsEmpty) isCondition() {}
func (*IsNull) isCondition()  {}
