package expr

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/stripes-go/stripes/internal/errors"
	"github.com/stripes-go/stripes/internal/utils"
	"github.com/stripes-go/stripes/pkg/stripes/property"
)

var compiled = utils.NewCache[string, *Expression]()

// Expression is a compiled validation expression
type Expression struct {
	Source string
	root   *orExpr
}

// Compile parses source, accepting an optional ${...} wrapper. Results are
// cached by source.
func Compile(source string) (*Expression, error) {
	return compiled.GetOrCompute(source, func() (*Expression, error) {
		body := strings.TrimSpace(source)
		if strings.HasPrefix(body, "${") && strings.HasSuffix(body, "}") {
			body = body[2 : len(body)-1]
		}
		root, err := exprParser.ParseString("", body)
		if err != nil {
			return nil, errors.ParseError(source, err.Error())
		}
		return &Expression{Source: source, root: root}, nil
	})
}

// Evaluate compiles and evaluates source in one step
func Evaluate(source string, bean, this interface{}) (bool, error) {
	e, err := Compile(source)
	if err != nil {
		return false, err
	}
	return e.Evaluate(bean, this)
}

// Evaluate runs the expression with bean properties in scope and `this`
// bound to the value under validation. The result is coerced to a boolean.
func (e *Expression) Evaluate(bean, this interface{}) (bool, error) {
	v, err := e.Value(bean, this)
	if err != nil {
		return false, err
	}
	return truth(v)
}

// Value evaluates the expression without boolean coercion
func (e *Expression) Value(bean, this interface{}) (interface{}, error) {
	env := &scope{bean: bean, this: this}
	v, err := env.or(e.root)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", e.Source, err)
	}
	return v, nil
}

type scope struct {
	bean interface{}
	this interface{}
}

func (s *scope) or(n *orExpr) (interface{}, error) {
	v, err := s.and(n.Left)
	if err != nil || len(n.Right) == 0 {
		return v, err
	}
	ok, err := truth(v)
	if err != nil {
		return nil, err
	}
	for _, right := range n.Right {
		if ok {
			return true, nil
		}
		v, err := s.and(right)
		if err != nil {
			return nil, err
		}
		if ok, err = truth(v); err != nil {
			return nil, err
		}
	}
	return ok, nil
}

func (s *scope) and(n *andExpr) (interface{}, error) {
	v, err := s.not(n.Left)
	if err != nil || len(n.Right) == 0 {
		return v, err
	}
	ok, err := truth(v)
	if err != nil {
		return nil, err
	}
	for _, right := range n.Right {
		if !ok {
			return false, nil
		}
		v, err := s.not(right)
		if err != nil {
			return nil, err
		}
		if ok, err = truth(v); err != nil {
			return nil, err
		}
	}
	return ok, nil
}

func (s *scope) not(n *notExpr) (interface{}, error) {
	if n.Not == nil {
		return s.comparison(n.Cmp)
	}
	v, err := s.not(n.Not)
	if err != nil {
		return nil, err
	}
	ok, err := truth(v)
	return !ok, err
}

func (s *scope) comparison(n *comparison) (interface{}, error) {
	left, err := s.additive(n.Left)
	if err != nil || n.Right == nil {
		return left, err
	}
	right, err := s.additive(n.Right)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "==", "eq":
		return equal(left, right), nil
	case "!=", "ne":
		return !equal(left, right), nil
	}

	c, err := compare(left, right)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "<", "lt":
		return c < 0, nil
	case "<=", "le":
		return c <= 0, nil
	case ">", "gt":
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func (s *scope) additive(n *additive) (interface{}, error) {
	v, err := s.term(n.Left)
	if err != nil {
		return nil, err
	}
	for _, rest := range n.Rest {
		right, err := s.term(rest.Term)
		if err != nil {
			return nil, err
		}
		if v, err = arithmetic(rest.Op, v, right); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (s *scope) term(n *term) (interface{}, error) {
	v, err := s.factor(n.Left)
	if err != nil {
		return nil, err
	}
	for _, rest := range n.Rest {
		right, err := s.factor(rest.Factor)
		if err != nil {
			return nil, err
		}
		if v, err = arithmetic(rest.Op, v, right); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (s *scope) factor(n *factor) (interface{}, error) {
	switch {
	case n.Neg != nil:
		v, err := s.factor(n.Neg)
		if err != nil {
			return nil, err
		}
		return arithmetic("-", 0.0, v)
	case n.Empty != nil:
		v, err := s.factor(n.Empty)
		if err != nil {
			return nil, err
		}
		return isEmpty(v), nil
	}
	return s.primary(n.Value)
}

func (s *scope) primary(n *primary) (interface{}, error) {
	switch {
	case n.Number != nil:
		return *n.Number, nil
	case n.String != nil:
		return *n.String, nil
	case n.True:
		return true, nil
	case n.False:
		return false, nil
	case n.Null:
		return nil, nil
	case n.This:
		return normalize(s.this), nil
	case n.Sub != nil:
		return s.or(n.Sub)
	}
	return s.reference(n.Ref)
}

func (s *scope) reference(n *reference) (interface{}, error) {
	if s.bean == nil {
		return nil, fmt.Errorf("unknown identifier %q", n.Head)
	}
	path := &property.Expression{Source: n.Head, Nodes: []property.Node{{Name: n.Head}}}
	for _, seg := range n.Rest {
		if seg.Field != nil {
			path.Nodes = append(path.Nodes, property.Node{Name: *seg.Field})
			path.Source += "." + *seg.Field
			continue
		}
		node := property.Node{Key: *seg.Key, Index: true}
		path.Nodes = append(path.Nodes, node)
		path.Source += node.String()
	}
	v, err := property.Get(s.bean, path)
	if err != nil {
		return nil, err
	}
	return normalize(v), nil
}

// normalize dereferences pointers and widens numbers to float64
func normalize(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}
	return rv.Interface()
}

func number(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func truth(v interface{}) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case string:
		return strings.EqualFold(x, "true"), nil
	}
	return false, fmt.Errorf("cannot use %v (%T) as a boolean", v, v)
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

func equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	_, aString := a.(string)
	_, bString := b.(string)
	if !(aString && bString) {
		x, xok := number(a)
		y, yok := number(b)
		if xok && yok {
			return x == y
		}
	}
	return reflect.DeepEqual(a, b)
}

func compare(a, b interface{}) (int, error) {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), nil
		}
	}
	x, xok := number(a)
	y, yok := number(b)
	if !xok || !yok {
		return 0, fmt.Errorf("cannot compare %v (%T) with %v (%T)", a, a, b, b)
	}
	switch {
	case x < y:
		return -1, nil
	case x > y:
		return 1, nil
	}
	return 0, nil
}

func arithmetic(op string, a, b interface{}) (interface{}, error) {
	x, xok := number(a)
	y, yok := number(b)
	if !xok || !yok {
		return nil, fmt.Errorf("cannot apply %s to %v (%T) and %v (%T)", op, a, a, b, b)
	}
	switch op {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "/":
		return x / y, nil
	}
	return math.Mod(x, y), nil
}
