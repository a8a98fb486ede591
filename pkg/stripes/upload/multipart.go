// Package upload parses multipart requests and hands uploaded files to beans
// as FileBeans that can be saved to disk or to object storage.
package upload

import (
	"errors"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
)

// DefaultMaxMemory is how much of a multipart body is held in memory before
// parts spill to temporary files
const DefaultMaxMemory = 32 << 20

// ErrTooLarge is returned when the request body exceeds the size limit
var ErrTooLarge = errors.New("upload: request too large")

// Multipart is a parsed multipart/form-data request
type Multipart struct {
	form *multipart.Form
}

// IsMultipart reports whether r carries a multipart/form-data body
func IsMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// FromRequest parses r's multipart body. maxSize caps the whole body; zero
// means no cap. Requests that are not multipart return (nil, nil).
func FromRequest(w http.ResponseWriter, r *http.Request, maxSize int64) (*Multipart, error) {
	if !IsMultipart(r) {
		return nil, nil
	}
	if maxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	}
	if err := r.ParseMultipartForm(DefaultMaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, ErrTooLarge
		}
		return nil, err
	}
	return &Multipart{form: r.MultipartForm}, nil
}

// ParameterNames returns the names of the non-file fields, sorted
func (m *Multipart) ParameterNames() []string {
	return sortedKeys(m.form.Value)
}

// ParameterValues returns every value of a non-file field
func (m *Multipart) ParameterValues(name string) []string {
	return m.form.Value[name]
}

// FileParameterNames returns the names of the file fields, sorted
func (m *Multipart) FileParameterNames() []string {
	return sortedKeys(m.form.File)
}

// File returns the first file submitted under name, or nil
func (m *Multipart) File(name string) *multipart.FileHeader {
	files := m.form.File[name]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

// Cleanup removes any temporary files created while parsing
func (m *Multipart) Cleanup() error {
	return m.form.RemoveAll()
}

func sortedKeys[V any](values map[string]V) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
