package controller

import (
	"fmt"
	"sort"

	"github.com/stripes-go/stripes/internal/errors"
	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/expr"
	"github.com/stripes-go/stripes/pkg/stripes/validation"
)

// chain returns d and its bases, outermost base first
func chain(d *action.Descriptor) ([]*action.Descriptor, error) {
	var levels []*action.Descriptor
	seen := make(map[*action.Descriptor]bool)
	for cur := d; cur != nil; cur = cur.Base {
		if seen[cur] {
			return nil, fmt.Errorf("descriptor %s has a cyclic base chain", d.Name)
		}
		seen[cur] = true
		levels = append([]*action.Descriptor{cur}, levels...)
	}
	return levels, nil
}

// merge flattens a descriptor chain into a Bean. Entries of a descriptor
// override same-keyed entries of its bases: handlers by event, validation
// rules by property, validation methods and hooks by name.
func merge(d *action.Descriptor) (*Bean, error) {
	levels, err := chain(d)
	if err != nil {
		return nil, err
	}

	flat := &action.Descriptor{Name: d.Name, New: d.New}
	b := &Bean{
		handlers: make(map[string]*action.Handler),
		metadata: make(map[string]*validation.Metadata),
	}
	methods := make(map[string]action.ValidationMethod)
	var before, after []action.Hook

	for _, level := range levels {
		if err := b.mergeHandlers(level); err != nil {
			return nil, err
		}
		for i := range level.Validations {
			m := level.Validations[i]
			if m.Property == "" {
				return nil, fmt.Errorf("descriptor %s declares validation rules without a property", level.Name)
			}
			b.metadata[m.Property] = &m
		}
		for _, m := range level.ValidationMethods {
			methods[m.Name] = m
		}
		before = overrideHooks(before, level.Before)
		after = overrideHooks(after, level.After)

		if level.Binding != "" {
			flat.Binding = level.Binding
		}
		if level.Strict != nil {
			flat.Strict = level.Strict
		}
		if level.Wizard != nil {
			flat.Wizard = level.Wizard
		}
		flat.REST = flat.REST || level.REST
		flat.SessionScoped = flat.SessionScoped || level.SessionScoped
	}

	for _, event := range b.events {
		flat.Handlers = append(flat.Handlers, *b.handlers[event])
	}
	for _, m := range b.metadata {
		if err := m.Prepare(); err != nil {
			return nil, errors.Wrapf(errors.ConfigurationErrorCode, err, "bean %s", d.Name)
		}
		if m.Expression != "" {
			if _, err := expr.Compile(m.Expression); err != nil {
				return nil, err
			}
		}
		flat.Validations = append(flat.Validations, *m)
	}
	sort.Slice(flat.Validations, func(i, j int) bool {
		return flat.Validations[i].Property < flat.Validations[j].Property
	})

	for _, m := range methods {
		if err := validation.ValidateOn(m.On); err != nil {
			return nil, fmt.Errorf("validation method %s: %w", m.Name, err)
		}
		b.methods = append(b.methods, m)
	}
	sort.SliceStable(b.methods, func(i, j int) bool {
		if b.methods[i].Priority != b.methods[j].Priority {
			return b.methods[i].Priority < b.methods[j].Priority
		}
		return b.methods[i].Name < b.methods[j].Name
	})
	flat.ValidationMethods = b.ValidationMethods()
	flat.Before, flat.After = before, after
	b.before, b.after = before, after

	b.Descriptor = flat
	return b, nil
}

// mergeHandlers adds one level's handlers. Within a level an event may be
// handled once and only one handler may be the default.
func (b *Bean) mergeHandlers(level *action.Descriptor) error {
	declared := make(map[string]bool)
	var levelDefault *action.Handler

	for i := range level.Handlers {
		h := level.Handlers[i]
		if h.Event == "" {
			return fmt.Errorf("descriptor %s declares a handler without an event name", level.Name)
		}
		if h.Func == nil {
			return fmt.Errorf("handler %q on %s has no function", h.Event, level.Name)
		}
		if declared[h.Event] {
			return fmt.Errorf("descriptor %s declares multiple handlers for event %q", level.Name, h.Event)
		}
		declared[h.Event] = true

		if _, exists := b.handlers[h.Event]; !exists {
			b.events = append(b.events, h.Event)
		}
		b.handlers[h.Event] = &h

		if h.Default {
			if levelDefault != nil {
				return fmt.Errorf("descriptor %s declares multiple default handlers (%s, %s)", level.Name, levelDefault.Event, h.Event)
			}
			levelDefault = &h
		}
	}

	if levelDefault != nil {
		b.defaultHandler = levelDefault
	} else if b.defaultHandler != nil && declared[b.defaultHandler.Event] {
		// the override replaced the base default; keep the new function
		b.defaultHandler = b.handlers[b.defaultHandler.Event]
	}
	return nil
}

func overrideHooks(hooks, overrides []action.Hook) []action.Hook {
	out := append([]action.Hook(nil), hooks...)
	for _, h := range overrides {
		replaced := false
		for i := range out {
			if out[i].Name == h.Name && h.Name != "" {
				out[i] = h
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, h)
		}
	}
	return out
}
