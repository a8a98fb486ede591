// Package urlbinding parses URL binding patterns such as /dept/{id}/{$event}
// and resolves request paths to the action bean whose pattern best matches.
package urlbinding

import (
	"reflect"
	"strings"
)

// EventParameter is the reserved parameter name whose value selects the event.
const EventParameter = "$event"

// Parameter is a named slot in a binding pattern. Prototype parameters carry
// only Name and Default; parameters of a live binding also carry Value.
type Parameter struct {
	Name    string
	Default string
	Value   string
}

// Effective returns the extracted value, falling back to the default
func (p *Parameter) Effective() string {
	if p.Value != "" {
		return p.Value
	}
	return p.Default
}

func (p *Parameter) String() string {
	if p.Default == "" {
		return "{" + p.Name + "}"
	}
	return "{" + p.Name + "=" + p.Default + "}"
}

// Component is either a literal fragment or a parameter
type Component struct {
	Literal string
	Param   *Parameter
}

// IsLiteral reports whether the component is a literal fragment
func (c Component) IsLiteral() bool { return c.Param == nil }

func (c Component) String() string {
	if c.Param != nil {
		return c.Param.String()
	}
	return c.Literal
}

// Binding is the parsed form of a URL binding pattern. A prototype binding is
// immutable once parsed; Registry.Bind returns live copies.
type Binding struct {
	BeanType   reflect.Type
	Path       string
	Components []Component
	Suffix     string
}

func newBinding(beanType reflect.Type, path string, components []Component) *Binding {
	b := &Binding{BeanType: beanType, Path: path, Components: components}
	if len(b.Parameters()) > 0 {
		if last := components[len(components)-1]; last.IsLiteral() {
			b.Suffix = last.Literal
		}
	}
	return b
}

// Parameters returns the parameter components in declaration order
func (b *Binding) Parameters() []*Parameter {
	var params []*Parameter
	for _, c := range b.Components {
		if c.Param != nil {
			params = append(params, c.Param)
		}
	}
	return params
}

// Parameter finds a parameter by name
func (b *Binding) Parameter(name string) (*Parameter, bool) {
	for _, c := range b.Components {
		if c.Param != nil && c.Param.Name == name {
			return c.Param, true
		}
	}
	return nil, false
}

// Values returns the effective value of every parameter that has one
func (b *Binding) Values() map[string]string {
	values := make(map[string]string)
	for _, p := range b.Parameters() {
		if v := p.Effective(); v != "" {
			values[p.Name] = v
		}
	}
	return values
}

// String renders the binding back to pattern form (escapes removed)
func (b *Binding) String() string {
	var sb strings.Builder
	sb.WriteString(b.Path)
	for _, c := range b.Components {
		sb.WriteString(c.String())
	}
	return sb.String()
}

// Render builds a concrete request path from parameter values. Rendering
// stops after the last parameter that has a value (or default); the suffix,
// if any, is always appended.
func (b *Binding) Render(values map[string]string) string {
	parts := make([]string, len(b.Components))
	end := 0
	for i, c := range b.Components {
		if c.IsLiteral() {
			parts[i] = c.Literal
			continue
		}
		v := values[c.Param.Name]
		if v == "" {
			v = c.Param.Default
		}
		parts[i] = v
		if v != "" {
			end = i + 1
		}
	}

	var sb strings.Builder
	sb.WriteString(b.Path)
	for _, part := range parts[:end] {
		sb.WriteString(part)
	}
	if b.Suffix != "" && end < len(parts) {
		sb.WriteString(b.Suffix)
	}
	return sb.String()
}

// live returns a deep copy whose parameters can be assigned values
func (b *Binding) live() *Binding {
	components := make([]Component, len(b.Components))
	for i, c := range b.Components {
		if c.Param != nil {
			p := *c.Param
			components[i] = Component{Param: &p}
			continue
		}
		components[i] = c
	}
	return &Binding{BeanType: b.BeanType, Path: b.Path, Components: components, Suffix: b.Suffix}
}
