package property

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/stripes-go/stripes/internal/utils"
)

// TagName is the struct tag that overrides a property name
const TagName = "form"

// MaxIndex bounds how far Set will grow a slice to reach an index.
// Existing elements past it can still be read and written.
const MaxIndex = 1000

// NoSuchPropertyError reports a path node that does not exist on a type
type NoSuchPropertyError struct {
	Expression string
	Node       string
	Type       reflect.Type
}

func (e *NoSuchPropertyError) Error() string {
	return fmt.Sprintf("no property %q on %s (expression %q)", e.Node, e.Type, e.Expression)
}

var fieldIndex = utils.NewCache[reflect.Type, map[string][]int]()

// Name returns the property name of a struct field: the form tag when set,
// otherwise the field name with its first letter lowered.
func Name(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup(TagName); ok {
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			return name
		}
	}
	r, size := utf8.DecodeRuneInString(f.Name)
	return string(unicode.ToLower(r)) + f.Name[size:]
}

// Fields lists the bindable properties of a struct type, promoted fields
// included, keyed by property name.
func Fields(t reflect.Type) map[string][]int {
	fields, _ := fieldIndex.GetOrCompute(t, func() (map[string][]int, error) {
		fields := make(map[string][]int)
		for _, f := range reflect.VisibleFields(t) {
			if !f.IsExported() || f.Tag.Get(TagName) == "-" {
				continue
			}
			fields[Name(f)] = f.Index
			if _, taken := fields[f.Name]; !taken {
				fields[f.Name] = f.Index
			}
		}
		return fields, nil
	})
	return fields
}

func lookupField(t reflect.Type, name string) ([]int, bool) {
	idx, ok := Fields(t)[name]
	return idx, ok
}

// Type returns the declared type of the property the expression points to.
// Pointers are followed through intermediate nodes but not at the end.
func Type(root reflect.Type, expr *Expression) (reflect.Type, error) {
	t := root
	for _, node := range expr.Nodes {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		switch t.Kind() {
		case reflect.Struct:
			if node.Index {
				return nil, &NoSuchPropertyError{Expression: expr.Source, Node: node.String(), Type: t}
			}
			idx, ok := lookupField(t, node.Name)
			if !ok {
				return nil, &NoSuchPropertyError{Expression: expr.Source, Node: node.Name, Type: t}
			}
			t = t.FieldByIndex(idx).Type
		case reflect.Map, reflect.Slice, reflect.Array:
			t = t.Elem()
		default:
			return nil, &NoSuchPropertyError{Expression: expr.Source, Node: node.String(), Type: t}
		}
	}
	return t, nil
}

// Get evaluates the expression against root. A nil pointer, missing map key
// or out-of-range index along the way yields (nil, nil).
func Get(root interface{}, expr *Expression) (interface{}, error) {
	v := reflect.ValueOf(root)
	for _, node := range expr.Nodes {
		v = indirect(v)
		if !v.IsValid() {
			return nil, nil
		}
		switch v.Kind() {
		case reflect.Struct:
			idx, ok := lookupField(v.Type(), node.Name)
			if !ok || node.Index {
				return nil, &NoSuchPropertyError{Expression: expr.Source, Node: node.String(), Type: v.Type()}
			}
			f, err := v.FieldByIndexErr(idx)
			if err != nil {
				return nil, nil
			}
			v = f
		case reflect.Map:
			key, err := mapKey(v.Type().Key(), node)
			if err != nil {
				return nil, fmt.Errorf("expression %q: %w", expr.Source, err)
			}
			v = v.MapIndex(key)
			if !v.IsValid() {
				return nil, nil
			}
		case reflect.Slice, reflect.Array:
			i, err := sliceIndex(node)
			if err != nil {
				return nil, fmt.Errorf("expression %q: %w", expr.Source, err)
			}
			if i >= v.Len() {
				return nil, nil
			}
			v = v.Index(i)
		default:
			return nil, &NoSuchPropertyError{Expression: expr.Source, Node: node.String(), Type: v.Type()}
		}
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

// Set assigns value to the property named by expr, creating nil pointers,
// maps and short slices along the way. root must be a non-nil pointer.
func Set(root interface{}, expr *Expression, value interface{}) error {
	v, err := settableRoot(root)
	if err != nil {
		return err
	}
	return assign(v, expr, expr.Nodes, value, true)
}

// SetNull sets the property to its zero value (nil collections included).
// Missing intermediate values are left alone.
func SetNull(root interface{}, expr *Expression) error {
	v, err := settableRoot(root)
	if err != nil {
		return err
	}
	return assign(v, expr, expr.Nodes, nil, false)
}

func settableRoot(root interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(root)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("property root must be a non-nil pointer, got %T", root)
	}
	return v.Elem(), nil
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func assign(v reflect.Value, expr *Expression, nodes []Node, value interface{}, create bool) error {
	if len(nodes) == 0 {
		return setValue(v, value, expr)
	}

	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			if !create {
				return nil
			}
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}

	node := nodes[0]
	switch v.Kind() {
	case reflect.Struct:
		idx, ok := lookupField(v.Type(), node.Name)
		if !ok || node.Index {
			return &NoSuchPropertyError{Expression: expr.Source, Node: node.String(), Type: v.Type()}
		}
		f, ok := fieldByIndex(v, idx, create)
		if !ok {
			return nil
		}
		return assign(f, expr, nodes[1:], value, create)

	case reflect.Map:
		key, err := mapKey(v.Type().Key(), node)
		if err != nil {
			return fmt.Errorf("expression %q: %w", expr.Source, err)
		}
		if v.IsNil() {
			if !create {
				return nil
			}
			v.Set(reflect.MakeMap(v.Type()))
		}
		// map elements are not addressable: copy out, modify, store back
		elem := reflect.New(v.Type().Elem()).Elem()
		if existing := v.MapIndex(key); existing.IsValid() {
			elem.Set(existing)
		} else if !create {
			return nil
		}
		if err := assign(elem, expr, nodes[1:], value, create); err != nil {
			return err
		}
		v.SetMapIndex(key, elem)
		return nil

	case reflect.Slice:
		i, err := sliceIndex(node)
		if err != nil {
			return fmt.Errorf("expression %q: %w", expr.Source, err)
		}
		if i >= v.Len() {
			if !create {
				return nil
			}
			if i >= MaxIndex {
				return fmt.Errorf("expression %q: list index %d exceeds limit %d", expr.Source, i, MaxIndex)
			}
			grow := i + 1 - v.Len()
			v.Set(reflect.AppendSlice(v, reflect.MakeSlice(v.Type(), grow, grow)))
		}
		return assign(v.Index(i), expr, nodes[1:], value, create)

	case reflect.Array:
		i, err := sliceIndex(node)
		if err != nil {
			return fmt.Errorf("expression %q: %w", expr.Source, err)
		}
		if i >= v.Len() {
			return fmt.Errorf("expression %q: index %d out of range [0:%d]", expr.Source, i, v.Len())
		}
		return assign(v.Index(i), expr, nodes[1:], value, create)
	}

	return &NoSuchPropertyError{Expression: expr.Source, Node: node.String(), Type: v.Type()}
}

// fieldByIndex walks an embedded-field path, allocating nil embedded pointers
// when create is set.
func fieldByIndex(v reflect.Value, index []int, create bool) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !create {
					return reflect.Value{}, false
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

func setValue(dst reflect.Value, value interface{}, expr *Expression) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(dst.Type()):
		dst.Set(rv)
	case dst.Kind() == reflect.Pointer && rv.Type().AssignableTo(dst.Type().Elem()):
		p := reflect.New(dst.Type().Elem())
		p.Elem().Set(rv)
		dst.Set(p)
	case dst.Kind() == reflect.String && (rv.CanInt() || rv.CanUint()):
		// integer to string conversion would yield a rune
		return fmt.Errorf("expression %q: cannot assign %s to %s", expr.Source, rv.Type(), dst.Type())
	case rv.Kind() != reflect.String && rv.Type().ConvertibleTo(dst.Type()):
		dst.Set(rv.Convert(dst.Type()))
	case rv.Kind() == reflect.String && dst.Kind() == reflect.String:
		dst.SetString(rv.String())
	default:
		return fmt.Errorf("expression %q: cannot assign %s to %s", expr.Source, rv.Type(), dst.Type())
	}
	return nil
}

func mapKey(keyType reflect.Type, node Node) (reflect.Value, error) {
	raw := node.Key
	if !node.Index {
		raw = node.Name
	}

	key := reflect.New(keyType).Elem()
	switch keyType.Kind() {
	case reflect.String:
		key.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, keyType.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid map key %q for %s", raw, keyType)
		}
		key.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, keyType.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid map key %q for %s", raw, keyType)
		}
		key.SetUint(n)
	default:
		return reflect.Value{}, fmt.Errorf("unsupported map key type %s", keyType)
	}
	return key, nil
}

func sliceIndex(node Node) (int, error) {
	if !node.Index {
		return 0, fmt.Errorf("cannot use property %q on a list", node.Name)
	}
	i, err := strconv.Atoi(node.Key)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid list index %q", node.Key)
	}
	return i, nil
}
