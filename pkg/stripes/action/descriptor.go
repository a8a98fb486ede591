package action

import (
	"reflect"
	"strings"

	"github.com/stripes-go/stripes/pkg/stripes/validation"
)

// HandlerFunc handles one event for a bean
type HandlerFunc func(bean ActionBean) (Resolution, error)

// Handler binds an event name to a handler function
type Handler struct {
	Event   string
	Func    HandlerFunc
	Default bool
	// Methods restricts the HTTP methods the handler accepts; empty allows all
	Methods []string

	DontBind            bool
	DontValidate        bool
	IgnoreBindingErrors bool
}

// Handle builds a Handler for bean type T
func Handle[T ActionBean](event string, fn func(T) (Resolution, error)) Handler {
	return Handler{
		Event: event,
		Func: func(bean ActionBean) (Resolution, error) {
			return fn(bean.(T))
		},
	}
}

// AsDefault marks the handler as the bean's default
func (h Handler) AsDefault() Handler {
	h.Default = true
	return h
}

// Only restricts the handler to the given HTTP methods
func (h Handler) Only(methods ...string) Handler {
	h.Methods = methods
	return h
}

// SkipBinding disables binding and validation for the event
func (h Handler) SkipBinding() Handler {
	h.DontBind = true
	return h
}

// SkipValidation binds but does not validate. With ignoreBindingErrors the
// handler also runs despite conversion errors.
func (h Handler) SkipValidation(ignoreBindingErrors bool) Handler {
	h.DontValidate = true
	h.IgnoreBindingErrors = ignoreBindingErrors
	return h
}

// Allows reports whether method may invoke the handler
func (h Handler) Allows(method string) bool {
	if len(h.Methods) == 0 {
		return true
	}
	for _, m := range h.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// When controls whether a validation method runs after earlier errors
type When int

const (
	// WhenDefault runs only without errors, unless the dispatcher is
	// configured to always invoke validation methods
	WhenDefault When = iota
	// WhenAlways runs regardless of earlier errors
	WhenAlways
	// WhenNoErrors runs only when no errors were recorded
	WhenNoErrors
)

// ValidationFunc is a bean-level validation method
type ValidationFunc func(bean ActionBean, errs *validation.Errors) error

// ValidationMethod is a custom validation step run after binding
type ValidationMethod struct {
	Name     string
	Priority int
	On       []string
	When     When
	Func     ValidationFunc
}

// Validate builds a ValidationMethod for bean type T
func Validate[T ActionBean](name string, fn func(T, *validation.Errors) error) ValidationMethod {
	return ValidationMethod{
		Name: name,
		Func: func(bean ActionBean, errs *validation.Errors) error {
			return fn(bean.(T), errs)
		},
	}
}

// WithPriority sets the ordering key; lower runs first
func (m ValidationMethod) WithPriority(priority int) ValidationMethod {
	m.Priority = priority
	return m
}

// OnEvents restricts the method to an event list ("save" or "!delete")
func (m ValidationMethod) OnEvents(on ...string) ValidationMethod {
	m.On = on
	return m
}

// Always makes the method run even when errors exist
func (m ValidationMethod) Always() ValidationMethod {
	m.When = WhenAlways
	return m
}

// Policy is the default decision of a strict binding policy
type Policy int

const (
	Allow Policy = iota
	Deny
)

// StrictBinding restricts which properties may be bound. Allow and Deny
// hold property globs: "*" matches one path segment, "**" any number.
type StrictBinding struct {
	Default Policy
	Allow   []string
	Deny    []string
}

// Wizard marks a multi-page bean; StartEvents may run without a
// fields-present manifest
type Wizard struct {
	StartEvents []string
}

// HookFunc runs before or after a lifecycle stage. A non-nil resolution
// from a before-hook short-circuits the stage.
type HookFunc func(bean ActionBean) (Resolution, error)

// Hook attaches a HookFunc to stages, optionally limited to events
type Hook struct {
	Name   string
	Stages []Stage
	On     []string
	Func   HookFunc
}

// NewHook builds a Hook for bean type T. With no stages it runs around
// EventHandling.
func NewHook[T ActionBean](name string, fn func(T) (Resolution, error), stages ...Stage) Hook {
	if len(stages) == 0 {
		stages = []Stage{EventHandling}
	}
	return Hook{
		Name:   name,
		Stages: stages,
		Func: func(bean ActionBean) (Resolution, error) {
			return fn(bean.(T))
		},
	}
}

// Applies reports whether the hook runs for stage and event. Before the
// event is resolved every hook of the stage applies.
func (h Hook) Applies(stage Stage, event string) bool {
	for _, s := range h.Stages {
		if s == stage {
			return event == "" || validation.Applies(h.On, event)
		}
	}
	return false
}

// Descriptor registers a bean: its URL binding, handlers, validation rules
// and options. Descriptors chain through Base; entries in a descriptor
// override same-keyed entries of its bases.
type Descriptor struct {
	Name    string
	Binding string
	New     func() ActionBean
	Base    *Descriptor

	Handlers          []Handler
	Validations       []validation.Metadata
	ValidationMethods []ValidationMethod
	Before            []Hook
	After             []Hook

	Strict        *StrictBinding
	Wizard        *Wizard
	REST          bool
	SessionScoped bool
}

// Type returns the bean's concrete type
func (d *Descriptor) Type() reflect.Type {
	return reflect.TypeOf(d.New())
}

// IsStartEvent reports whether event may begin a wizard flow
func (w *Wizard) IsStartEvent(event string) bool {
	for _, e := range w.StartEvents {
		if e == event {
			return true
		}
	}
	return false
}
