package controller

import (
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"github.com/stripes-go/stripes/internal/errors"
	"github.com/stripes-go/stripes/internal/utils"
	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/urlbinding"
)

// Registry holds every registered bean. Beans are registered at startup;
// dispatch only reads.
type Registry struct {
	logger   *slog.Logger
	bindings *urlbinding.Registry
	beans    *utils.Cache[reflect.Type, *Bean]
	names    *utils.Cache[string, *Bean]
}

// NewRegistry creates an empty registry
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger,
		bindings: urlbinding.NewRegistry(logger),
		beans:    utils.NewCache[reflect.Type, *Bean](),
		names:    utils.NewCache[string, *Bean](),
	}
}

// Register merges and registers descriptors. Every descriptor is attempted;
// the failures are returned together.
func (r *Registry) Register(descriptors ...*action.Descriptor) error {
	errs := errors.NewMultipleErrors()
	for _, d := range descriptors {
		if _, err := r.register(d); err != nil {
			var se errors.StripesError
			if !errors.As(err, &se) {
				name := "<nil>"
				if d != nil {
					name = d.Name
				}
				se = errors.RegisterError("action bean", name, err.Error()).WithCause(err)
			}
			errs.Add(se)
		}
	}
	return errs.ErrorOrNil()
}

// MustRegister registers descriptors and panics on failure
func (r *Registry) MustRegister(descriptors ...*action.Descriptor) {
	if err := r.Register(descriptors...); err != nil {
		panic(err)
	}
}

func (r *Registry) register(d *action.Descriptor) (*Bean, error) {
	if d == nil || d.New == nil {
		return nil, errors.New(errors.RegistrationErrorCode, "descriptor must provide a New function")
	}
	if d.Name == "" {
		d.Name = typeName(reflect.TypeOf(d.New()))
	}

	b, err := merge(d)
	if err != nil {
		return nil, err
	}
	b.Name = d.Name
	b.Type = d.Type()
	if b.Type == nil || b.Type.Kind() != reflect.Ptr || b.Type.Elem().Kind() != reflect.Struct {
		return nil, errors.RegisterError("action bean", d.Name, "New must return a pointer to a struct")
	}
	if b.Descriptor.Binding == "" {
		return nil, errors.RegisterError("action bean", d.Name, "no URL binding declared")
	}
	if len(b.handlers) == 0 {
		return nil, errors.RegisterError("action bean", d.Name, "no event handlers declared")
	}

	b.Binding, err = urlbinding.Parse(b.Type, b.Descriptor.Binding)
	if err != nil {
		return nil, err
	}

	if existing, ok := r.names.Get(b.Name); ok && existing.Type != b.Type {
		return nil, errors.RegisterError("action bean", b.Name, "name already used by "+typeName(existing.Type))
	}
	if _, ok := r.beans.Get(b.Type); ok {
		r.logger.Warn("replacing action bean registration", "bean", b.Name, "binding", b.Binding.String())
	}

	r.bindings.Register(b.Binding)
	r.beans.Set(b.Type, b)
	r.names.Set(b.Name, b)

	for _, event := range b.events {
		suffix := "?" + event
		if b.defaultHandler != nil && b.defaultHandler.Event == event {
			suffix = ""
		}
		r.logger.Debug("bound", "bean", b.Name, "binding", b.Binding.String()+suffix)
	}
	return b, nil
}

// ResolveBean returns the bean bound to path
func (r *Registry) ResolveBean(path string) (*Bean, error) {
	binding, err := r.bindings.Match(path)
	if err != nil {
		return nil, err
	}
	if binding == nil {
		return nil, errors.ActionNotFound(path)
	}
	b, ok := r.beans.Get(binding.BeanType)
	if !ok {
		return nil, errors.ActionNotFound(path)
	}
	return b, nil
}

// Bind resolves path and extracts its URI parameter values
func (r *Registry) Bind(path string) (*Bean, *urlbinding.Binding, error) {
	b, err := r.ResolveBean(path)
	if err != nil {
		return nil, nil, err
	}
	return b, urlbinding.Extract(b.Binding, path), nil
}

// Lookup returns the bean registered for a bean type
func (r *Registry) Lookup(beanType reflect.Type) (*Bean, bool) {
	return r.beans.Get(beanType)
}

// Named returns the bean registered under name
func (r *Registry) Named(name string) (*Bean, bool) {
	return r.names.Get(name)
}

// BeanOf returns the registration for a bean instance
func (r *Registry) BeanOf(bean action.ActionBean) (*Bean, bool) {
	return r.beans.Get(reflect.TypeOf(bean))
}

// Beans returns every registered bean sorted by binding pattern
func (r *Registry) Beans() []*Bean {
	types := r.beans.Keys()
	beans := make([]*Bean, 0, len(types))
	for _, t := range types {
		if b, ok := r.beans.Get(t); ok {
			beans = append(beans, b)
		}
	}
	sort.Slice(beans, func(i, j int) bool {
		return beans[i].Binding.String() < beans[j].Binding.String()
	})
	return beans
}

// Conflicts returns the literal paths claimed by more than one bean
func (r *Registry) Conflicts() map[string][]string {
	return r.bindings.Conflicts()
}

// Bindings exposes the underlying URL binding registry
func (r *Registry) Bindings() *urlbinding.Registry {
	return r.bindings
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return strings.TrimPrefix(t.String(), "*")
}
