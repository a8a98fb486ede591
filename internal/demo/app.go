package demo

import (
	"embed"
	"html/template"
	"io/fs"
	"log/slog"

	"github.com/stripes-go/stripes/pkg/stripes"
	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/binder"
	"github.com/stripes-go/stripes/pkg/stripes/controller"
	"github.com/stripes-go/stripes/pkg/stripes/crypto"
	"github.com/stripes-go/stripes/pkg/stripes/upload"
)

//go:embed templates
var templates embed.FS

// Templates returns the views the demo beans forward to
func Templates() fs.FS {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// TemplateFuncs returns the helpers the demo views use to emit the
// encrypted _sourcePage and __fp form fields
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"sourcePage": func(codec *crypto.Codec, page string) (string, error) {
			return codec.Encrypt(page)
		},
		"fieldsPresent": func(codec *crypto.Codec, names ...string) (string, error) {
			return binder.EncodeFieldsPresent(codec, names)
		},
	}
}

// App wires the demo beans to their collaborators
type App struct {
	Catalog *Catalog
	// Uploads receives report attachments; nil keeps them on local disk
	Uploads   upload.Saver
	UploadDir string

	dispatcher *stripes.Dispatcher
}

// NewApp creates the demo application around catalog
func NewApp(catalog *Catalog) *App {
	if catalog == nil {
		catalog = NewCatalog(
			Widget{Name: "Sprocket", Price: 4.5, Tags: []string{"metal"}},
			Widget{Name: "Flange", Price: 12},
		)
	}
	return &App{Catalog: catalog}
}

// Descriptors returns every demo bean
func (a *App) Descriptors() []*action.Descriptor {
	return []*action.Descriptor{
		a.widgetDescriptor(),
		a.reportDescriptor(),
		a.signupDescriptor(),
		a.itemsDescriptor(),
	}
}

// Register adds the demo beans to registry
func (a *App) Register(registry *controller.Registry) error {
	return registry.Register(a.Descriptors()...)
}

// NewDispatcher registers the demo beans in a fresh registry and returns a
// dispatcher rendering the demo views. opts are applied after the defaults.
func (a *App) NewDispatcher(logger *slog.Logger, opts ...stripes.Option) (*stripes.Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry := controller.NewRegistry(logger)
	if err := a.Register(registry); err != nil {
		return nil, err
	}

	defaults := []stripes.Option{
		stripes.WithLogger(logger),
		stripes.WithRenderer(stripes.NewTemplateRenderer(Templates(), TemplateFuncs())),
		stripes.WithLocalizer(Messages()),
	}
	d := stripes.NewDispatcher(registry, append(defaults, opts...)...)
	a.Attach(d)
	return d, nil
}

// Attach lets handlers build redirects through d
func (a *App) Attach(d *stripes.Dispatcher) {
	a.dispatcher = d
}

// redirectTo sends the client to bean's binding, flashing the bean when a
// dispatcher is attached
func (a *App) redirectTo(bean action.ActionBean, values map[string]string, fallback string) (action.Resolution, error) {
	if a.dispatcher == nil {
		return action.Redirect(fallback), nil
	}
	return a.dispatcher.RedirectTo(bean, values)
}
