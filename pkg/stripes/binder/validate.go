package binder

import (
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/stripes-go/stripes/pkg/stripes/expr"
	"github.com/stripes-go/stripes/pkg/stripes/param"
	"github.com/stripes-go/stripes/pkg/stripes/validation"
)

// validateRequired checks required properties before any conversion so that
// omitted fields are reported even when others fail to convert. Indexed
// parameters are checked row by row; a row whose values are all blank is
// dropped from binding altogether.
func (r *binding) validateRequired(present map[string]bool) {
	event := r.ctx.EventName
	wizard := r.rules.Wizard() != nil

	indexed := make(map[string]bool)
	for _, name := range r.names {
		if name.Indexed() {
			indexed[name.Stripped()] = true
		}
	}

	for _, prop := range r.rules.Properties() {
		meta, _ := r.rules.Metadata(prop)
		if !meta.RequiredOn(event) || indexed[prop] {
			continue
		}
		if wizard && !present[prop] {
			continue
		}
		r.checkRequired(prop, r.values[prop])
	}

	if len(indexed) == 0 {
		return
	}

	type row struct {
		names    []param.Name
		nonEmpty bool
	}
	rows := make(map[string]*row)
	var order []string
	for _, name := range r.names {
		if !name.Indexed() {
			continue
		}
		key := name.RowKey()
		rw, ok := rows[key]
		if !ok {
			rw = &row{}
			rows[key] = rw
			order = append(order, key)
		}
		rw.names = append(rw.names, name)
		if values := r.values[name.Raw()]; len(values) > 0 && strings.TrimSpace(values[0]) != "" {
			rw.nonEmpty = true
		}
	}

	for _, key := range order {
		rw := rows[key]
		if !rw.nonEmpty {
			for _, name := range rw.names {
				delete(r.values, name.Raw())
			}
			continue
		}
		for _, name := range rw.names {
			if meta, ok := r.rules.Metadata(name.Stripped()); ok && meta.RequiredOn(event) {
				r.checkRequired(name.Raw(), r.values[name.Raw()])
			}
		}
	}
}

// checkRequired records an error for a missing or blank value. An uploaded
// file satisfies the check when it is not empty.
func (r *binding) checkRequired(name string, values []string) {
	if mp := r.ctx.Request.Multipart(); mp != nil {
		if header := mp.File(name); header != nil {
			if header.Size <= 0 {
				r.errs.Add(name, validation.NewError("validation.required", "valueNotPresent"))
			}
			return
		}
	}

	if len(values) == 0 {
		r.errs.Add(name, validation.NewError("validation.required", "valueNotPresent"))
		return
	}
	for _, value := range values {
		if value == "" {
			e := validation.NewError("validation.required", "valueNotPresent")
			e.FieldValue = value
			r.errs.Add(name, e)
		}
	}
}

// validatePreConversion applies the string rules to non-empty values
func (r *binding) validatePreConversion(values []string, meta *validation.Metadata) []*validation.FieldError {
	var errs []*validation.FieldError
	add := func(value, scope, key string, params ...interface{}) {
		e := validation.NewError(scope, key, params...)
		e.FieldValue = value
		errs = append(errs, e)
	}

	for _, value := range values {
		if value == "" {
			continue
		}
		length := utf8.RuneCountInString(value)
		if meta.MinLength != nil && length < *meta.MinLength {
			add(value, "validation.minlength", "valueTooShort", *meta.MinLength)
		}
		if meta.MaxLength != nil && length > *meta.MaxLength {
			add(value, "validation.maxlength", "valueTooLong", *meta.MaxLength)
		}
		if !meta.MaskMatches(value) {
			add(value, "validation.mask", "valueDoesNotMatch")
		}
		if meta.Tag != "" {
			if err := r.validate.Var(value, meta.Tag); err != nil {
				add(value, "validation.tag", meta.Tag)
			}
		}
	}
	return errs
}

// validatePostConversion checks numeric ranges and expressions once every
// property is bound, so expressions see the whole bean
func (r *binding) validatePostConversion(names []param.Name, converted map[string][]interface{}) {
	for _, name := range names {
		values := converted[name.Raw()]
		meta, ok := r.rules.Metadata(name.Stripped())
		if len(values) == 0 || !ok {
			continue
		}

		for _, value := range values {
			n, numeric := toFloat(value)
			if !numeric {
				continue
			}
			if meta.MinValue != nil && n < *meta.MinValue {
				e := validation.NewError("validation.minvalue", "valueBelowMinimum", *meta.MinValue)
				e.FieldValue = fmt.Sprint(value)
				r.errs.Add(name.Raw(), e)
			}
			if meta.MaxValue != nil && n > *meta.MaxValue {
				e := validation.NewError("validation.maxvalue", "valueAboveMaximum", *meta.MaxValue)
				e.FieldValue = fmt.Sprint(value)
				r.errs.Add(name.Raw(), e)
			}
		}

		if meta.Expression != "" {
			r.validateExpression(name, values, meta)
		}
	}
}

func (r *binding) validateExpression(name param.Name, values []interface{}, meta *validation.Metadata) {
	for _, value := range values {
		ok, err := expr.Evaluate(meta.Expression, r.bean, value)
		if err != nil {
			r.logger.Error("validation expression failed", "param", name.Raw(), "expression", meta.Expression, "error", err)
			continue
		}
		if !ok {
			e := validation.NewError("validation.expression", "valueFailedExpression")
			e.FieldValue = fmt.Sprint(value)
			r.errs.Add(name.Raw(), e)
		}
	}
}

func toFloat(value interface{}) (float64, bool) {
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return 0, false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if _, isDuration := v.Interface().(interface{ Hours() float64 }); isDuration {
			return 0, false
		}
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}
