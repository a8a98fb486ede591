package validation

import (
	"reflect"

	"github.com/stripes-go/stripes/pkg/stripes/param"
)

// GlobalError is the key under which errors not tied to a field are stored
const GlobalError = "__stripes_global_error"

// FieldError is one validation failure. Scope and Key name the localized
// message (e.g. "validation.required" + "valueNotPresent"); Message, when
// set, is used verbatim instead.
type FieldError struct {
	FieldName  string
	FieldValue string
	Scope      string
	Key        string
	Params     []interface{}
	Message    string

	ActionPath string
	BeanType   reflect.Type
	enriched   bool
}

// NewError creates an error looked up under scope.key
func NewError(scope, key string, params ...interface{}) *FieldError {
	return &FieldError{Scope: scope, Key: key, Params: params}
}

// NewSimpleError creates an error with a literal message
func NewSimpleError(message string, params ...interface{}) *FieldError {
	return &FieldError{Message: message, Params: params}
}

// FullKey returns the default-scope message key
func (e *FieldError) FullKey() string {
	if e.Scope == "" {
		return e.Key
	}
	return e.Scope + "." + e.Key
}

// Enrich records the owning action path and bean type. Only the first call
// has any effect.
func (e *FieldError) Enrich(actionPath string, beanType reflect.Type) {
	if e.enriched {
		return
	}
	e.ActionPath = actionPath
	e.BeanType = beanType
	e.enriched = true
}

func (e *FieldError) Error() string {
	if e.Message != "" {
		return format(e.Message, e.FieldName, e.FieldValue, e.Params)
	}
	return e.FieldName + ": " + e.FullKey()
}

// Errors is an insertion-ordered multimap from raw parameter name to errors
type Errors struct {
	order  []string
	fields map[string][]*FieldError
}

// NewErrors creates an empty error set
func NewErrors() *Errors {
	return &Errors{fields: make(map[string][]*FieldError)}
}

// Add appends errors for field, setting each error's field name to the
// stripped property name. field must not be empty; use AddGlobal instead.
func (v *Errors) Add(field string, errs ...*FieldError) {
	if field == "" {
		panic("validation: Add requires a field name")
	}
	if _, exists := v.fields[field]; !exists {
		v.order = append(v.order, field)
	}
	stripped := param.NewName(field).Stripped()
	for _, e := range errs {
		if field != GlobalError {
			e.FieldName = stripped
		}
		v.fields[field] = append(v.fields[field], e)
	}
}

// Put replaces the errors recorded for field
func (v *Errors) Put(field string, errs []*FieldError) {
	if _, exists := v.fields[field]; exists {
		v.fields[field] = nil
	}
	v.Add(field, errs...)
}

// AddGlobal records errors that are not tied to a single field
func (v *Errors) AddGlobal(errs ...*FieldError) {
	v.Add(GlobalError, errs...)
}

// Get returns the errors for a raw field name
func (v *Errors) Get(field string) []*FieldError {
	return v.fields[field]
}

// Has reports whether field has at least one error
func (v *Errors) Has(field string) bool {
	return len(v.fields[field]) > 0
}

// Global returns the global errors
func (v *Errors) Global() []*FieldError {
	return v.fields[GlobalError]
}

// Fields returns the field names with errors in insertion order, excluding
// the global key
func (v *Errors) Fields() []string {
	fields := make([]string, 0, len(v.order))
	for _, f := range v.order {
		if f != GlobalError && len(v.fields[f]) > 0 {
			fields = append(fields, f)
		}
	}
	return fields
}

// HasFieldErrors reports whether any non-global error exists
func (v *Errors) HasFieldErrors() bool {
	return len(v.Fields()) > 0
}

// Empty reports whether no errors were recorded
func (v *Errors) Empty() bool {
	for _, errs := range v.fields {
		if len(errs) > 0 {
			return false
		}
	}
	return true
}

// Len returns the total number of errors
func (v *Errors) Len() int {
	n := 0
	for _, errs := range v.fields {
		n += len(errs)
	}
	return n
}

// Each visits every error in insertion order
func (v *Errors) Each(fn func(field string, err *FieldError)) {
	for _, f := range v.order {
		for _, e := range v.fields[f] {
			fn(f, e)
		}
	}
}

// Merge appends all errors from other
func (v *Errors) Merge(other *Errors) {
	if other == nil {
		return
	}
	other.Each(func(field string, err *FieldError) {
		v.Add(field, err)
	})
}
