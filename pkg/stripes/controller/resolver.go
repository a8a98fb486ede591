package controller

import (
	"strings"

	"github.com/stripes-go/stripes/internal/errors"
	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/param"
)

// EventNameAttribute is a request attribute that, when set, names the event
// outright. Forwarded requests use it when the original parameters would
// otherwise pick a different event.
const EventNameAttribute = "__stripes_event_name"

// EventName determines which event req fires on b, trying in order: the
// EventNameAttribute attribute, the first declared event present as a
// parameter (or as an image button "event.x"), the path segment following
// the binding's literal path, and a single-valued _eventName parameter. It
// returns "" when none applies.
func (r *Registry) EventName(b *Bean, req *action.Request) string {
	if event, ok := req.Attribute(EventNameAttribute).(string); ok && event != "" {
		return event
	}
	if event := eventFromParams(b, req); event != "" {
		return event
	}
	if event := eventFromPath(b, req.Path()); event != "" {
		return event
	}
	if event := eventFromEventNameParam(b, req); event != "" {
		return event
	}
	return ""
}

func eventFromParams(b *Bean, req *action.Request) string {
	for _, event := range b.events {
		if req.HasParam(event) || req.HasParam(event+".x") {
			return event
		}
	}
	return ""
}

func eventFromPath(b *Bean, path string) string {
	prefix := b.Binding.Path
	if !strings.HasPrefix(path, prefix+"/") {
		return ""
	}
	extra := path[len(prefix)+1:]
	if i := strings.Index(extra, "/"); i >= 0 {
		extra = extra[:i]
	}
	if extra != "" && b.Handles(extra) {
		return extra
	}
	return ""
}

func eventFromEventNameParam(b *Bean, req *action.Request) string {
	values := req.Params(param.EventName)
	if len(values) == 1 && b.Handles(values[0]) {
		return values[0]
	}
	return ""
}

// Handler returns the handler for event
func (r *Registry) Handler(b *Bean, event string) (*action.Handler, error) {
	if h, ok := b.handlers[event]; ok {
		return h, nil
	}
	return nil, errors.HandlerNotFound(b.Name, event)
}

// DefaultHandler returns the bean's sole handler, else the one flagged as
// default
func (r *Registry) DefaultHandler(b *Bean) (*action.Handler, error) {
	if len(b.handlers) == 1 {
		return b.handlers[b.events[0]], nil
	}
	if b.defaultHandler != nil {
		return b.defaultHandler, nil
	}
	return nil, errors.HandlerNotFound(b.Name, "")
}

// ResolveHandler combines EventName with handler lookup: a named event must
// have a handler, no event falls back to the default handler. REST beans
// use the lower-cased HTTP method when no event is named.
func (r *Registry) ResolveHandler(b *Bean, req *action.Request) (string, *action.Handler, error) {
	event := r.EventName(b, req)
	if event == "" && b.REST() {
		event = strings.ToLower(req.Method())
		h, err := r.Handler(b, event)
		if err != nil {
			return event, nil, errors.MethodNotAllowed(b.Name, event, req.Method())
		}
		return event, h, nil
	}
	if event != "" {
		h, err := r.Handler(b, event)
		return event, h, err
	}
	h, err := r.DefaultHandler(b)
	if err != nil {
		return "", nil, err
	}
	return h.Event, h, nil
}
