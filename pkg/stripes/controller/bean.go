// Package controller keeps the process-wide set of registered action beans:
// merged descriptors, URL bindings, handler maps and validation rules, and
// resolves which bean and event a request targets.
package controller

import (
	"reflect"
	"sort"

	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/urlbinding"
	"github.com/stripes-go/stripes/pkg/stripes/validation"
)

// Bean is a registered action bean: its descriptor merged with every base,
// plus the lookup tables built from it. A Bean is immutable once registered.
type Bean struct {
	Name       string
	Type       reflect.Type
	Descriptor *action.Descriptor
	Binding    *urlbinding.Binding

	events         []string
	handlers       map[string]*action.Handler
	defaultHandler *action.Handler
	metadata       map[string]*validation.Metadata
	methods        []action.ValidationMethod
	before         []action.Hook
	after          []action.Hook
}

// New creates a fresh bean instance
func (b *Bean) New() action.ActionBean {
	return b.Descriptor.New()
}

// Events returns the handled event names in declaration order, base
// descriptors first
func (b *Bean) Events() []string {
	return append([]string(nil), b.events...)
}

// Handles reports whether event names a declared handler
func (b *Bean) Handles(event string) bool {
	_, ok := b.handlers[event]
	return ok
}

// Metadata returns the validation rules for a stripped property name
func (b *Bean) Metadata(property string) (*validation.Metadata, bool) {
	m, ok := b.metadata[property]
	return m, ok
}

// Properties returns the names of properties carrying rules, sorted
func (b *Bean) Properties() []string {
	names := make([]string, 0, len(b.metadata))
	for name := range b.metadata {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidationMethods returns the custom validation methods ordered by
// priority, then name
func (b *Bean) ValidationMethods() []action.ValidationMethod {
	return append([]action.ValidationMethod(nil), b.methods...)
}

// Before returns the hooks run before stages
func (b *Bean) Before() []action.Hook { return b.before }

// After returns the hooks run after stages
func (b *Bean) After() []action.Hook { return b.after }

// Strict returns the binding policy, or nil
func (b *Bean) Strict() *action.StrictBinding { return b.Descriptor.Strict }

// Wizard returns the wizard options, or nil
func (b *Bean) Wizard() *action.Wizard { return b.Descriptor.Wizard }

// REST reports whether HTTP methods double as event names
func (b *Bean) REST() bool { return b.Descriptor.REST }

// SessionScoped reports whether one instance serves a whole session
func (b *Bean) SessionScoped() bool { return b.Descriptor.SessionScoped }
