package action

import (
	"context"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"

	"github.com/stripes-go/stripes/internal/errors"
	"github.com/stripes-go/stripes/pkg/stripes/urlbinding"
)

// Multipart exposes a parsed multipart body
type Multipart interface {
	ParameterNames() []string
	ParameterValues(name string) []string
	FileParameterNames() []string
	File(name string) *multipart.FileHeader
}

// Request wraps an *http.Request with a merged parameter map (query, form,
// multipart and URI parameters) and request-scoped attributes.
type Request struct {
	HTTP *http.Request

	params     url.Values
	attributes map[string]interface{}
	multipart  Multipart
}

// NewRequest wraps r. When mp is nil the urlencoded form is parsed.
func NewRequest(r *http.Request, mp Multipart) (*Request, error) {
	req := &Request{
		HTTP:       r,
		params:     url.Values{},
		attributes: make(map[string]interface{}),
		multipart:  mp,
	}

	if mp == nil {
		if err := r.ParseForm(); err != nil {
			return nil, errors.Wrap(errors.InfrastructureErrorCode, "failed to parse request parameters", err)
		}
		for name, values := range r.Form {
			req.params[name] = append([]string(nil), values...)
		}
		return req, nil
	}

	for name, values := range r.URL.Query() {
		req.params[name] = append([]string(nil), values...)
	}
	for _, name := range mp.ParameterNames() {
		req.params[name] = append(req.params[name], mp.ParameterValues(name)...)
	}
	return req, nil
}

// MergeURIParameters folds a bound URL's parameters into the parameter map.
// URI values come before request values; an {$event} value v becomes the
// parameter v="" so the event resolver sees it; a parameter without a value
// falls back to its default only when the request lacks that parameter.
func (r *Request) MergeURIParameters(b *urlbinding.Binding) {
	if b == nil {
		return
	}

	uri := url.Values{}
	for _, p := range b.Parameters() {
		name, value := p.Name, p.Value
		if name == urlbinding.EventParameter {
			if value == "" {
				continue
			}
			name, value = value, ""
			uri[name] = append(uri[name], value)
			continue
		}
		if value == "" && len(r.params[name]) == 0 {
			value = p.Default
		}
		if value != "" {
			uri[name] = append(uri[name], value)
		}
	}

	for name, values := range uri {
		r.params[name] = append(values, r.params[name]...)
	}
}

// Param returns the first value of a parameter
func (r *Request) Param(name string) string {
	return r.params.Get(name)
}

// Params returns every value of a parameter
func (r *Request) Params(name string) []string {
	return r.params[name]
}

// HasParam reports whether the parameter was submitted
func (r *Request) HasParam(name string) bool {
	_, ok := r.params[name]
	return ok
}

// ParamNames returns the parameter names in sorted order
func (r *Request) ParamNames() []string {
	names := make([]string, 0, len(r.params))
	for name := range r.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parameters returns the merged parameter map. Callers must not modify it.
func (r *Request) Parameters() url.Values {
	return r.params
}

// SetParam replaces a parameter's values
func (r *Request) SetParam(name string, values ...string) {
	r.params[name] = values
}

// Attribute returns a request attribute
func (r *Request) Attribute(name string) interface{} {
	return r.attributes[name]
}

// SetAttribute stores a request attribute; a nil value removes it
func (r *Request) SetAttribute(name string, value interface{}) {
	if value == nil {
		delete(r.attributes, name)
		return
	}
	r.attributes[name] = value
}

// Attributes returns a copy of the request attributes
func (r *Request) Attributes() map[string]interface{} {
	out := make(map[string]interface{}, len(r.attributes))
	for k, v := range r.attributes {
		out[k] = v
	}
	return out
}

// Multipart returns the multipart body, or nil
func (r *Request) Multipart() Multipart {
	return r.multipart
}

// Method returns the HTTP method
func (r *Request) Method() string {
	return r.HTTP.Method
}

// Path returns the request path
func (r *Request) Path() string {
	return r.HTTP.URL.Path
}

// Detached returns a copy that outlives the request: parameters and
// attributes are copied, the body and multipart parts are dropped.
func (r *Request) Detached() *Request {
	params := make(url.Values, len(r.params))
	for k, v := range r.params {
		params[k] = append([]string(nil), v...)
	}

	httpReq := r.HTTP.Clone(context.Background())
	httpReq.Body = http.NoBody
	httpReq.MultipartForm = nil

	return &Request{
		HTTP:       httpReq,
		params:     params,
		attributes: r.Attributes(),
	}
}
