package filterlang

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var filterLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "String", Pattern: `"(\\.|[^"])*"`},
	{Name: "Number", Pattern: `[-+]?\d+(\.\d+)?`},
	{Name: "Operator", Pattern: `!=|<=|>=|=|<|>`},
	{Name: "Punct", Pattern: `[(),\[\]]`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_.]*`},
})

var filterParser = participle.MustBuild[orExpr](
	participle.Lexer(filterLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(4),
)

type orExpr struct {
	Left  *andExpr   `parser:"@@"`
	Right []*andExpr `parser:"(\"OR\" @@)*"`
}

type andExpr struct {
	Left  *notExpr   `parser:"@@"`
	Right []*notExpr `parser:"(\"AND\" @@)*"`
}

type notExpr struct {
	Negated bool     `parser:"( @\"NOT\" )?"`
	Primary *primary `parser:"@@"`
}

type primary struct {
	Sub     *orExpr     `parser:"( \"(\" @@ \")\""`
	Exists  *existsAST  `parser:"| @@"`
	IsEmpty *isEmptyAST `parser:"| @@"`
	IsNull  *isNullAST  `parser:"| @@"`
	In      *inAST      `parser:"| @@"`
	Compare *compareAST `parser:"| @@ )"`
}

type existsAST struct {
	Field string `parser:"\"EXISTS\" @Ident"`
}

type isEmptyAST struct {
	Field string `parser:"\"IS_EMPTY\" @Ident"`
}

type isNullAST struct {
	Field string `parser:"\"IS_NULL\" @Ident"`
}

type inAST struct {
	Field  string      `parser:"@Ident \"IN\" \"[\""`
	Values []*valueAST `parser:"( @@ ( \",\" @@ )* )? \"]\""`
}

type compareAST struct {
	Field string    `parser:"@Ident"`
	Op    string    `parser:"@Operator"`
	Value *valueAST `parser:"@@"`
}

type valueAST struct {
	Str    *string  `parser:"( @String"`
	Bool   *string  `parser:"| @(\"true\" | \"false\")"`
	Number *float64 `parser:"| @Number )"`
}

func (v *valueAST) toValue() Value {
	out := Value{}
	switch {
	case v.Str != nil:
		out.String = v.Str
	case v.Bool != nil:
		b := *v.Bool == "true"
		out.Bool = &b
	case v.Number != nil:
		out.Number = v.Number
	}
	return out
}

func toOp(s string) (Op, error) {
	switch s {
	case "=", "!=", "<", "<=", ">", ">=":
		return Op(s), nil
	default:
		return "", &ParseError{Message: "unknown operator " + s}
	}
}

// ParseError is returned for a malformed filter string or one that fails
// validation against the live field set.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string { return e.Message }

func parseToAST(expr string) (Condition, error) {
	tree, err := filterParser.ParseString("", expr)
	if err != nil {
		return nil, &ParseError{Message: "filterlang: " + err.Error()}
	}
	return buildOr(tree)
}

func buildOr(o *orExpr) (Condition, error) {
	left, err := buildAnd(o.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range o.Right {
		right, err := buildAnd(r)
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}
	return left, nil
}

func buildAnd(a *andExpr) (Condition, error) {
	left, err := buildNot(a.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range a.Right {
		right, err := buildNot(r)
		if err != nil {
			return nil, err
		}
		left = &And{Left: left, Right: right}
	}
	return left, nil
}

func buildNot(n *notExpr) (Condition, error) {
	c, err := buildPrimary(n.Primary)
	if err != nil {
		return nil, err
	}
	if n.Negated {
		return &Not{Inner: c}, nil
	}
	return c, nil
}

func buildPrimary(p *primary) (Condition, error) {
	switch {
	case p.Sub != nil:
		return buildOr(p.Sub)
	case p.Exists != nil:
		return &Exists{Field: p.Exists.Field}, nil
	case p.IsEmpty != nil:
		return &IsEmpty{Field: p.IsEmpty.Field}, nil
	case p.IsNull != nil:
		return &IsNull{Field: p.IsNull.Field}, nil
	case p.In != nil:
		values := make([]Value, len(p.In.Values))
		for i, v := range p.In.Values {
			values[i] = v.toValue()
		}
		return &In{Field: p.In.Field, Values: values}, nil
	case p.Compare != nil:
		op, err := toOp(p.Compare.Op)
		if err != nil {
			return nil, err
		}
		return &Compare{Field: p.Compare.Field, Op: op, Value: p.Compare.Value.toValue()}, nil
	default:
		return nil, &ParseError{Message: "filterlang: empty expression"}
	}
}

