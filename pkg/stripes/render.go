package stripes

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
)

// TemplateRenderer renders forward targets with html/template. Templates
// are parsed from the file system on first use and cached by name.
type TemplateRenderer struct {
	fsys  fs.FS
	funcs template.FuncMap

	mutex     sync.RWMutex
	templates map[string]*template.Template
}

// NewTemplateRenderer creates a renderer reading templates from fsys
func NewTemplateRenderer(fsys fs.FS, funcs template.FuncMap) *TemplateRenderer {
	return &TemplateRenderer{fsys: fsys, funcs: funcs, templates: make(map[string]*template.Template)}
}

// Render implements action.Renderer. A leading slash in name is ignored.
func (r *TemplateRenderer) Render(w io.Writer, name string, data interface{}) error {
	t, err := r.lookup(name)
	if err != nil {
		return err
	}
	return t.Execute(w, data)
}

func (r *TemplateRenderer) lookup(name string) (*template.Template, error) {
	r.mutex.RLock()
	t, ok := r.templates[name]
	r.mutex.RUnlock()
	if ok {
		return t, nil
	}

	file := strings.TrimLeft(name, "/")
	t, err := template.New(path.Base(file)).Funcs(r.funcs).ParseFS(r.fsys, file)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}

	r.mutex.Lock()
	r.templates[name] = t
	r.mutex.Unlock()
	return t, nil
}
