package action

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/stripes-go/stripes/pkg/stripes/param"
	"github.com/stripes-go/stripes/pkg/stripes/validation"
)

// Resolution is what a handler returns: something that writes the response
type Resolution interface {
	Execute(w http.ResponseWriter, r *http.Request) error
}

// ResolutionFunc adapts a function to Resolution
type ResolutionFunc func(w http.ResponseWriter, r *http.Request) error

// Execute implements Resolution
func (f ResolutionFunc) Execute(w http.ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// ForwardResolution renders a view with the request's bean, errors,
// messages and attributes
type ForwardResolution struct {
	Path   string
	Status int
}

// Forward renders the view at path
func Forward(path string) *ForwardResolution {
	return &ForwardResolution{Path: path, Status: http.StatusOK}
}

// Execute implements Resolution
func (f *ForwardResolution) Execute(w http.ResponseWriter, r *http.Request) error {
	c := FromContext(r.Context())
	if c == nil || c.Renderer == nil {
		return fmt.Errorf("cannot forward to %s: no renderer configured", f.Path)
	}

	data := c.Request.Attributes()
	data[BeanAttribute] = c.Bean
	data["errors"] = c.Errors
	data["messages"] = c.Messages()
	data["context"] = c

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if f.Status != 0 {
		w.WriteHeader(f.Status)
	}
	return c.Renderer.Render(w, f.Path, data)
}

// RedirectResolution sends the client to another URL. When the request has
// a flash scope its id is appended so the next request can claim it.
type RedirectResolution struct {
	URL       string
	Params    url.Values
	Permanent bool
}

// Redirect redirects to target
func Redirect(target string) *RedirectResolution {
	return &RedirectResolution{URL: target, Params: url.Values{}}
}

// With adds a query parameter
func (r *RedirectResolution) With(name string, values ...interface{}) *RedirectResolution {
	for _, v := range values {
		r.Params.Add(name, fmt.Sprint(v))
	}
	return r
}

// Location returns the final URL, without the flash key
func (r *RedirectResolution) Location() string {
	if len(r.Params) == 0 {
		return r.URL
	}
	sep := "?"
	if strings.Contains(r.URL, "?") {
		sep = "&"
	}
	return r.URL + sep + r.Params.Encode()
}

// Execute implements Resolution
func (r *RedirectResolution) Execute(w http.ResponseWriter, req *http.Request) error {
	if c := FromContext(req.Context()); c != nil {
		if scope, _ := c.CurrentFlashScope(false); scope != nil {
			r.Params.Set(param.FlashScopeKey, scope.ID)
		}
	}

	status := http.StatusFound
	if r.Permanent {
		status = http.StatusMovedPermanently
	}
	http.Redirect(w, req, r.Location(), status)
	return nil
}

// StreamingResolution copies a reader to the response, optionally as an
// attachment
type StreamingResolution struct {
	ContentType string
	Filename    string
	Length      int64
	Reader      io.Reader
}

// Stream streams reader with the given content type
func Stream(contentType string, reader io.Reader) *StreamingResolution {
	return &StreamingResolution{ContentType: contentType, Reader: reader, Length: -1}
}

// Attachment marks the stream as a download named filename
func (s *StreamingResolution) Attachment(filename string) *StreamingResolution {
	s.Filename = filename
	return s
}

// Execute implements Resolution
func (s *StreamingResolution) Execute(w http.ResponseWriter, _ *http.Request) error {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	if s.Filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": s.Filename}))
	}
	if s.Length >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(s.Length, 10))
	}
	if closer, ok := s.Reader.(io.Closer); ok {
		defer closer.Close()
	}
	_, err := io.Copy(w, s.Reader)
	return err
}

// JSONResolution writes a JSON body with a status code
type JSONResolution struct {
	// StatusCode is the HTTP status code to return (e.g., 200, 201, 404, 500)
	StatusCode int
	// Body is JSON-encoded; nil writes no body
	Body interface{}
}

// JSON creates a JSON resolution
func JSON(statusCode int, body interface{}) *JSONResolution {
	return &JSONResolution{StatusCode: statusCode, Body: body}
}

// OK creates a 200 OK response with the given body
func OK(body interface{}) *JSONResolution {
	return JSON(http.StatusOK, body)
}

// Created creates a 201 Created response with the given body
func Created(body interface{}) *JSONResolution {
	return JSON(http.StatusCreated, body)
}

// NoContent creates a 204 No Content response
func NoContent() *JSONResolution {
	return JSON(http.StatusNoContent, nil)
}

// Execute implements Resolution
func (j *JSONResolution) Execute(w http.ResponseWriter, _ *http.Request) error {
	if j.Body == nil {
		w.WriteHeader(j.StatusCode)
		return nil
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.StatusCode)
	return json.NewEncoder(w).Encode(j.Body)
}

// ValidationErrorBody is the JSON shape of validation errors for REST beans
type ValidationErrorBody struct {
	GlobalErrors []string           `json:"globalErrors"`
	FieldErrors  []FieldErrorReport `json:"fieldErrors"`
}

// FieldErrorReport lists the messages for one field
type FieldErrorReport struct {
	FieldName     string   `json:"fieldName"`
	FieldValue    string   `json:"fieldValue"`
	ErrorMessages []string `json:"errorMessages"`
}

// ValidationErrorsJSON renders errs as a 400 response with localized
// messages
func ValidationErrorsJSON(errs *validation.Errors, loc validation.Localizer, locale string) *JSONResolution {
	body := ValidationErrorBody{GlobalErrors: []string{}, FieldErrors: []FieldErrorReport{}}
	for _, e := range errs.Global() {
		body.GlobalErrors = append(body.GlobalErrors, e.Localize(loc, locale))
	}
	for _, field := range errs.Fields() {
		report := FieldErrorReport{FieldName: field, ErrorMessages: []string{}}
		for _, e := range errs.Get(field) {
			if report.FieldValue == "" {
				report.FieldValue = e.FieldValue
			}
			report.ErrorMessages = append(report.ErrorMessages, e.Localize(loc, locale))
		}
		body.FieldErrors = append(body.FieldErrors, report)
	}
	return JSON(http.StatusBadRequest, body)
}
