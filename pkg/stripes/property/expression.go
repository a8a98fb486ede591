// Package property parses and evaluates property paths such as
// "rows[2].name" or "prefs['colour']" against Go values.
package property

import (
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/stripes-go/stripes/internal/errors"
	"github.com/stripes-go/stripes/internal/utils"
)

// path is the participle grammar root
type path struct {
	Head string     `parser:"@Ident"`
	Rest []*segment `parser:"@@*"`
}

type segment struct {
	Field *string `parser:"  '.' @Ident"`
	Index *index  `parser:"| '[' @@ ']'"`
}

type index struct {
	Int   *int64  `parser:"  @Int"`
	Str   *string `parser:"| @String"`
	Ident *string `parser:"| @Ident"`
}

var pathParser = participle.MustBuild[path](
	participle.Lexer(lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Ident", Pattern: `[a-zA-Z_$][a-zA-Z0-9_$]*`},
		{Name: "Int", Pattern: `-?[0-9]+`},
		{Name: "String", Pattern: `'(\\'|[^'])*'|"(\\"|[^"])*"`},
		{Name: "Punct", Pattern: `[.\[\]]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})),
	participle.Unquote("String"),
	participle.Elide("Whitespace"),
)

var parsed = utils.NewCache[string, *Expression]()

// Node is one step of an expression: a named property or an index/key
type Node struct {
	Name  string
	Key   string
	Index bool
}

// String renders the node as it appears in an expression
func (n Node) String() string {
	if !n.Index {
		return n.Name
	}
	if _, err := strconv.Atoi(n.Key); err == nil {
		return "[" + n.Key + "]"
	}
	return "['" + n.Key + "']"
}

// Expression is a parsed property path
type Expression struct {
	Source string
	Nodes  []Node
}

// String returns the source text
func (e *Expression) String() string {
	return e.Source
}

// Root returns the name of the top-level property
func (e *Expression) Root() string {
	return e.Nodes[0].Name
}

// Parse parses a property path. Parsed expressions are cached and shared,
// callers must not modify them.
func Parse(source string) (*Expression, error) {
	return parsed.GetOrCompute(source, func() (*Expression, error) {
		ast, err := pathParser.ParseString("", source)
		if err != nil {
			return nil, errors.ParseError(source, err.Error())
		}

		expr := &Expression{Source: source, Nodes: []Node{{Name: ast.Head}}}
		for _, seg := range ast.Rest {
			switch {
			case seg.Field != nil:
				expr.Nodes = append(expr.Nodes, Node{Name: *seg.Field})
			case seg.Index.Int != nil:
				expr.Nodes = append(expr.Nodes, Node{Key: strconv.FormatInt(*seg.Index.Int, 10), Index: true})
			case seg.Index.Str != nil:
				expr.Nodes = append(expr.Nodes, Node{Key: *seg.Index.Str, Index: true})
			default:
				expr.Nodes = append(expr.Nodes, Node{Key: *seg.Index.Ident, Index: true})
			}
		}
		return expr, nil
	})
}

// MustParse is Parse for expressions known to be valid
func MustParse(source string) *Expression {
	expr, err := Parse(source)
	if err != nil {
		panic(err)
	}
	return expr
}
