// Package binder copies request parameters onto action beans: it validates
// required fields, enforces the binding policy, converts strings to typed
// values, and runs the per-property validation rules.
package binder

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/stripes-go/stripes/internal/utils"
	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/convert"
	"github.com/stripes-go/stripes/pkg/stripes/param"
	"github.com/stripes-go/stripes/pkg/stripes/property"
	"github.com/stripes-go/stripes/pkg/stripes/upload"
	"github.com/stripes-go/stripes/pkg/stripes/validation"
)

// Rules is what the binder needs to know about a registered bean
type Rules interface {
	Metadata(property string) (*validation.Metadata, bool)
	Properties() []string
	Strict() *action.StrictBinding
	Wizard() *action.Wizard
}

// Binder binds and validates request parameters. It is safe for concurrent
// use.
type Binder struct {
	logger     *slog.Logger
	converters *convert.Registry
	validate   *validator.Validate
	policies   *utils.Cache[reflect.Type, *Policy]
}

// Option configures a Binder
type Option func(*Binder)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Binder) { b.logger = logger }
}

// WithConverters replaces the converter registry
func WithConverters(r *convert.Registry) Option {
	return func(b *Binder) { b.converters = r }
}

// WithValidator replaces the validator used for Tag rules
func WithValidator(v *validator.Validate) Option {
	return func(b *Binder) { b.validate = v }
}

// New creates a Binder
func New(opts ...Option) *Binder {
	b := &Binder{
		logger:     slog.Default(),
		converters: convert.NewRegistry(),
		validate:   validator.New(),
		policies:   utils.NewCache[reflect.Type, *Policy](),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Converters returns the converter registry so applications can add their
// own converters
func (b *Binder) Converters() *convert.Registry {
	return b.converters
}

// binding is the state of one Bind call
type binding struct {
	*Binder
	ctx      *action.Context
	bean     action.ActionBean
	beanType reflect.Type
	rules    Rules
	errs     *validation.Errors
	names    []param.Name
	values   map[string][]string
}

// Bind binds the request in ctx onto ctx.Bean and returns ctx.Errors.
// Field errors are data; the error result is reserved for fatal problems
// such as a tampered fields-present manifest.
func (b *Binder) Bind(ctx *action.Context, rules Rules, validate bool) (*validation.Errors, error) {
	run := &binding{
		Binder:   b,
		ctx:      ctx,
		bean:     ctx.Bean,
		beanType: reflect.TypeOf(ctx.Bean),
		rules:    rules,
		errs:     ctx.Errors,
	}
	run.collect()

	present, err := fieldsPresent(ctx, rules.Wizard())
	if err != nil {
		return ctx.Errors, err
	}

	if validate {
		run.validateRequired(present)
	}

	policy, err := b.policy(run.beanType, rules)
	if err != nil {
		return ctx.Errors, err
	}

	converted := make(map[string][]interface{})
	var convertedOrder []param.Name
	for _, name := range run.names {
		values, ok := run.values[name.Raw()]
		if !ok {
			continue
		}
		if vals, bound := run.bindParameter(name, values, policy, validate); bound {
			converted[name.Raw()] = vals
			convertedOrder = append(convertedOrder, name)
		}
	}

	run.bindMissingAsNull(present)
	run.bindFiles()

	if validate {
		run.validatePostConversion(convertedOrder, converted)
	}
	return ctx.Errors, nil
}

// BindValue sets a single property outside the request cycle
func (b *Binder) BindValue(bean action.ActionBean, name string, value interface{}) error {
	expr, err := property.Parse(name)
	if err != nil {
		return err
	}
	return property.Set(bean, expr, value)
}

func (b *Binder) policy(t reflect.Type, rules Rules) (*Policy, error) {
	return b.policies.GetOrCompute(t, func() (*Policy, error) {
		return NewPolicy(rules.Strict(), rules.Properties())
	})
}

// collect snapshots the request parameters in raw-name order, trimming
// values unless the property opts out
func (r *binding) collect() {
	params := r.ctx.Request.Parameters()
	r.names = param.SortedNames(params)
	r.values = make(map[string][]string, len(params))
	for _, name := range r.names {
		values := params[name.Raw()]
		if meta, ok := r.rules.Metadata(name.Stripped()); !ok || meta.Trim() {
			trimmed := make([]string, len(values))
			for i, v := range values {
				trimmed[i] = strings.TrimSpace(v)
			}
			values = trimmed
		}
		r.values[name.Raw()] = values
	}
}

// bindParameter binds one simple parameter, returning the converted values
// when conversion ran
func (r *binding) bindParameter(name param.Name, values []string, policy *Policy, validate bool) ([]interface{}, bool) {
	raw := name.Raw()
	if param.IsReserved(raw) || r.errs.Has(raw) {
		return nil, false
	}
	if raw == r.ctx.EventName {
		if len(values) > 0 && values[0] != "" {
			r.logger.Warn("event parameter carries a value that is not bound", "param", raw, "value", values[0])
		}
		return nil, false
	}

	expr, err := property.Parse(raw)
	if err != nil {
		r.logger.Debug("skipping parameter that is not a property path", "param", raw, "error", err)
		return nil, false
	}
	if !policy.Allowed(expr) {
		r.logger.Warn("binding denied", "param", raw, "bean", r.beanType.String())
		return nil, false
	}

	meta, _ := r.rules.Metadata(name.Stripped())
	declared, err := property.Type(r.beanType, expr)
	if err != nil {
		r.logger.Debug("skipping parameter with no matching property", "param", raw, "bean", r.beanType.String())
		return nil, false
	}
	if meta != nil && meta.Ignore {
		return nil, false
	}

	var errs []*validation.FieldError
	if validate && meta != nil {
		errs = r.validatePreConversion(values, meta)
	}

	var converted []interface{}
	if len(errs) == 0 {
		converted, errs = r.convert(name, values, declared, meta)
	}

	switch {
	case len(errs) > 0:
		r.errs.Add(raw, errs...)
	case len(converted) > 0:
		if err := bindNonNull(r.bean, expr, converted, declared); err != nil {
			r.bindingFailed(name, err)
		}
	default:
		if err := property.SetNull(r.bean, expr); err != nil {
			r.bindingFailed(name, err)
		}
	}
	return converted, len(errs) == 0
}

func (r *binding) bindingFailed(name param.Name, err error) {
	r.logger.Debug("could not bind property", "param", name.Raw(), "bean", r.beanType.String(), "error", err)
}

// convert converts every non-empty value. A failing value produces a field
// error and does not stop the others.
func (r *binding) convert(name param.Name, values []string, declared reflect.Type, meta *validation.Metadata) ([]interface{}, []*validation.FieldError) {
	var named string
	if meta != nil {
		named = meta.Converter
	}
	target := declared
	if _, ok := r.converters.ForType(declared); !ok || named != "" {
		target = scalarType(declared)
	}

	var (
		out  []interface{}
		errs []*validation.FieldError
	)
	for _, value := range values {
		if value == "" {
			continue
		}
		if meta != nil && meta.Encrypted && r.ctx.Codec != nil {
			plain, err := r.ctx.Codec.Decrypt(value)
			if err != nil {
				r.logger.Warn("could not decrypt parameter", "param", name.Raw(), "error", err)
				continue
			}
			value = plain
		}

		result, err := r.converters.Convert(value, target, named)
		if err != nil {
			var fe *validation.FieldError
			if ce, ok := err.(*convert.Error); ok {
				fe = validation.NewError(ce.Scope, ce.Key, ce.Params...)
			} else {
				r.logger.Warn("type converter failed", "param", name.Raw(), "target", target.String(), "error", err)
				fe = validation.NewError("converter", "failed")
			}
			fe.FieldValue = value
			errs = append(errs, fe)
			continue
		}

		switch v := result.(type) {
		case nil:
		case []interface{}:
			out = append(out, v...)
		default:
			out = append(out, v)
		}
	}
	return out, errs
}

// bindMissingAsNull nulls properties rendered on the form but absent from
// the submission, e.g. unchecked checkboxes
func (r *binding) bindMissingAsNull(present map[string]bool) {
	for name := range present {
		if r.ctx.Request.HasParam(name) {
			continue
		}
		expr, err := property.Parse(name)
		if err != nil {
			r.bindingFailed(param.NewName(name), err)
			continue
		}
		if err := property.SetNull(r.bean, expr); err != nil {
			r.bindingFailed(param.NewName(name), err)
		}
	}
}

// bindFiles binds uploaded files; a file that cannot be bound is logged
func (r *binding) bindFiles() {
	mp := r.ctx.Request.Multipart()
	if mp == nil {
		return
	}
	for _, name := range mp.FileParameterNames() {
		header := mp.File(name)
		if header == nil {
			continue
		}
		fb := upload.NewFileBean(name, header)
		expr, err := property.Parse(name)
		if err == nil {
			err = property.Set(r.bean, expr, fb)
		}
		if err != nil {
			r.logger.Debug("could not bind file parameter", "param", name, "file", fb.String(), "error", err)
		}
	}
}

// bindNonNull assigns converted values: all of them to a slice or array
// property, the first one to a scalar
func bindNonNull(bean action.ActionBean, expr *property.Expression, values []interface{}, declared reflect.Type) error {
	t := declared
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	first := reflect.TypeOf(values[0])

	switch {
	case t.Kind() == reflect.Slice && first.Kind() != reflect.Slice:
		s := reflect.MakeSlice(t, len(values), len(values))
		for i, v := range values {
			if err := assignElem(s.Index(i), v); err != nil {
				return err
			}
		}
		return property.Set(bean, expr, s.Interface())
	case t.Kind() == reflect.Array && first.Kind() != reflect.Array:
		a := reflect.New(t).Elem()
		for i := 0; i < len(values) && i < t.Len(); i++ {
			if err := assignElem(a.Index(i), values[i]); err != nil {
				return err
			}
		}
		return property.Set(bean, expr, a.Interface())
	default:
		return property.Set(bean, expr, values[0])
	}
}

func assignElem(dst reflect.Value, value interface{}) error {
	v := reflect.ValueOf(value)
	switch {
	case v.Type().AssignableTo(dst.Type()):
		dst.Set(v)
	case dst.Kind() == reflect.Pointer && v.Type().AssignableTo(dst.Type().Elem()):
		p := reflect.New(dst.Type().Elem())
		p.Elem().Set(v)
		dst.Set(p)
	case v.Kind() != reflect.String && dst.Kind() != reflect.String && v.Type().ConvertibleTo(dst.Type()):
		dst.Set(v.Convert(dst.Type()))
	case v.Kind() == reflect.String && dst.Kind() == reflect.String:
		dst.SetString(v.String())
	default:
		return fmt.Errorf("cannot assign %s to %s", v.Type(), dst.Type())
	}
	return nil
}

// scalarType is the element type of collections, else t itself
func scalarType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return t.Elem()
	}
	return t
}
