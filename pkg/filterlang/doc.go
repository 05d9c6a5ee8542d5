// Package filterlang parses the filter-expression grammar of §4.K into a
// typed AST: Condition ::= field OP value | field IN [v...] | NOT C |
// C AND C | C OR C | EXISTS field | IS_EMPTY field | IS_NULL field, with
// OP in {=, !=, <, <=, >, >=}. Parsing is done with
// github.com/alecthomas/participle/v2 against a tagged grammar struct
// rather than a hand-rolled recursive-descent parser.
//
// This package only builds and validates the AST (rejecting references to
// non-filterable fields and non-numeric comparisons against numeric-only
// operators); evaluating the AST into a candidate docid bitmap is
// pkg/indexcore's job, since that requires the live facet and document
// stores a parser has no business depending on.
package filterlang
