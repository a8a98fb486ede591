// Package expr implements the small boolean expression language used by
// expression validation, e.g. "this >= 18 && name != ''".
package expr

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

type orExpr struct {
	Left  *andExpr   `parser:"@@"`
	Right []*andExpr `parser:"( ( '||' | 'or' ) @@ )*"`
}

type andExpr struct {
	Left  *notExpr   `parser:"@@"`
	Right []*notExpr `parser:"( ( '&&' | 'and' ) @@ )*"`
}

type notExpr struct {
	Not *notExpr    `parser:"  ( '!' | 'not' ) @@"`
	Cmp *comparison `parser:"| @@"`
}

type comparison struct {
	Left  *additive `parser:"@@"`
	Op    string    `parser:"( @( '==' | '!=' | '<=' | '>=' | '<' | '>' | 'eq' | 'ne' | 'le' | 'ge' | 'lt' | 'gt' )"`
	Right *additive `parser:"  @@ )?"`
}

type additive struct {
	Left *term     `parser:"@@"`
	Rest []*opTerm `parser:"@@*"`
}

type opTerm struct {
	Op   string `parser:"@( '+' | '-' )"`
	Term *term  `parser:"@@"`
}

type term struct {
	Left *factor     `parser:"@@"`
	Rest []*opFactor `parser:"@@*"`
}

type opFactor struct {
	Op     string  `parser:"@( '*' | '/' | '%' )"`
	Factor *factor `parser:"@@"`
}

type factor struct {
	Neg   *factor  `parser:"  '-' @@"`
	Empty *factor  `parser:"| 'empty' @@"`
	Value *primary `parser:"| @@"`
}

type primary struct {
	Number *float64   `parser:"  @Number"`
	String *string    `parser:"| @String"`
	True   bool       `parser:"| @'true'"`
	False  bool       `parser:"| @'false'"`
	Null   bool       `parser:"| @'null'"`
	This   bool       `parser:"| @'this'"`
	Sub    *orExpr    `parser:"| '(' @@ ')'"`
	Ref    *reference `parser:"| @@"`
}

type reference struct {
	Head string        `parser:"@Ident"`
	Rest []*refSegment `parser:"@@*"`
}

type refSegment struct {
	Field *string `parser:"  '.' @Ident"`
	Key   *string `parser:"| '[' @( Number | String ) ']'"`
}

var exprParser = participle.MustBuild[orExpr](
	participle.Lexer(lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `\s+`},
		{Name: "String", Pattern: `'(\\'|[^'])*'|"(\\"|[^"])*"`},
		{Name: "Number", Pattern: `[0-9]+(\.[0-9]+)?`},
		{Name: "Ident", Pattern: `[a-zA-Z_$][a-zA-Z0-9_$]*`},
		{Name: "Operator", Pattern: `\|\||&&|==|!=|<=|>=|[-+*/%<>!().\[\]]`},
	})),
	participle.Unquote("String"),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)
