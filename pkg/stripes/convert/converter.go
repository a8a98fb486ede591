// Package convert turns submitted strings into typed property values.
package convert

import (
	"encoding"
	stderrors "errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrNoConverter is returned when nothing can convert to the target type
var ErrNoConverter = stderrors.New("no converter for type")

// Converter converts a single non-empty input string to a value assignable
// to target. Returning a []interface{} yields several values from one input.
type Converter interface {
	Convert(input string, target reflect.Type) (interface{}, error)
}

// ConverterFunc adapts a function to the Converter interface
type ConverterFunc func(input string, target reflect.Type) (interface{}, error)

// Convert implements Converter
func (f ConverterFunc) Convert(input string, target reflect.Type) (interface{}, error) {
	return f(input, target)
}

// Error is a user-facing conversion failure. Scope and Key name the
// localized message, e.g. "converter.number" + "invalidNumber".
type Error struct {
	Scope  string
	Key    string
	Params []interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s.%s", e.Scope, e.Key)
}

// NewError creates a conversion error
func NewError(scope, key string, params ...interface{}) *Error {
	return &Error{Scope: scope, Key: key, Params: params}
}

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// Registry resolves converters by explicit name, exact type, then kind. It is
// safe for concurrent use.
type Registry struct {
	mutex  sync.RWMutex
	named  map[string]Converter
	byType map[reflect.Type]Converter
	byKind map[reflect.Kind]Converter
}

// NewRegistry creates a registry preloaded with the built-in converters
func NewRegistry() *Registry {
	r := &Registry{
		named:  make(map[string]Converter),
		byType: make(map[reflect.Type]Converter),
		byKind: make(map[reflect.Kind]Converter),
	}
	registerBuiltins(r)
	return r
}

// Register adds a converter for an exact type
func (r *Registry) Register(t reflect.Type, c Converter) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.byType[t] = c
}

// RegisterKind adds a fallback converter for every type of a kind
func (r *Registry) RegisterKind(k reflect.Kind, c Converter) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.byKind[k] = c
}

// RegisterNamed adds a converter that validation metadata can select by name
func (r *Registry) RegisterNamed(name string, c Converter) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.named[name] = c
}

// Named returns a converter registered under name
func (r *Registry) Named(name string) (Converter, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	c, ok := r.named[name]
	return c, ok
}

// ForType returns the default converter for t. Pointer types resolve to the
// converter of their element type.
func (r *Registry) ForType(t reflect.Type) (Converter, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for t.Kind() == reflect.Ptr {
		if c, ok := r.byType[t]; ok {
			return c, true
		}
		t = t.Elem()
	}
	if c, ok := r.byType[t]; ok {
		return c, true
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return textConverter, true
	}
	c, ok := r.byKind[t.Kind()]
	return c, ok
}

// Convert converts input using the named converter when given, else the
// default for target. The result is assignable to target's element type
// when target is a pointer.
func (r *Registry) Convert(input string, target reflect.Type, named string) (interface{}, error) {
	var (
		c  Converter
		ok bool
	)
	if named != "" {
		if c, ok = r.Named(named); !ok {
			return nil, fmt.Errorf("%w: converter %q is not registered", ErrNoConverter, named)
		}
	} else if c, ok = r.ForType(target); !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoConverter, target)
	}

	for target.Kind() == reflect.Ptr {
		target = target.Elem()
	}
	return c.Convert(input, target)
}

// textConverter handles any type whose pointer implements
// encoding.TextUnmarshaler
var textConverter = ConverterFunc(func(input string, target reflect.Type) (interface{}, error) {
	v := reflect.New(target)
	if err := v.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(input)); err != nil {
		return nil, NewError("converter", "failed")
	}
	return v.Elem().Interface(), nil
})
