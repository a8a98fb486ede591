// Package stripes is the request dispatcher: it resolves the action bean
// bound to a URL, picks the event handler, binds and validates request
// parameters, invokes the handler and executes the resolution it returns,
// running every stage through the configured interceptors.
package stripes

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/stripes-go/stripes/internal/errors"
	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/binder"
	"github.com/stripes-go/stripes/pkg/stripes/controller"
	"github.com/stripes-go/stripes/pkg/stripes/crypto"
	"github.com/stripes-go/stripes/pkg/stripes/flash"
	"github.com/stripes-go/stripes/pkg/stripes/interceptors"
	"github.com/stripes-go/stripes/pkg/stripes/lifecycle"
	"github.com/stripes-go/stripes/pkg/stripes/upload"
	"github.com/stripes-go/stripes/pkg/stripes/validation"
)

// Dispatcher is an http.Handler serving every registered action bean
type Dispatcher struct {
	logger     *slog.Logger
	beans      *controller.Registry
	binder     *binder.Binder
	stacks     *lifecycle.Stacks
	flash      flash.Store
	codec      *crypto.Codec
	renderer   action.Renderer
	localizer  validation.Localizer
	exceptions ExceptionHandler

	alwaysInvokeValidate bool
	maxUploadSize        int64
	sessionCookie        string
	newSessionID         func() string
	sessions             *sessionBeans
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithBinder replaces the property binder
func WithBinder(b *binder.Binder) Option {
	return func(d *Dispatcher) { d.binder = b }
}

// WithStacks sets the interceptor stacks. The default runs bean
// before/after hooks on every stage.
func WithStacks(s *lifecycle.Stacks) Option {
	return func(d *Dispatcher) { d.stacks = s }
}

// WithFlashStore sets the flash store; nil disables flash scopes
func WithFlashStore(s flash.Store) Option {
	return func(d *Dispatcher) { d.flash = s }
}

// WithCodec sets the codec for the fields-present manifest, the source page
// and encrypted parameters
func WithCodec(c *crypto.Codec) Option {
	return func(d *Dispatcher) { d.codec = c }
}

// WithRenderer sets the view renderer used by forward resolutions
func WithRenderer(r action.Renderer) Option {
	return func(d *Dispatcher) { d.renderer = r }
}

// WithLocalizer sets the message bundle for validation errors
func WithLocalizer(l validation.Localizer) Option {
	return func(d *Dispatcher) { d.localizer = l }
}

// WithExceptionHandler sets the handler for fatal request errors
func WithExceptionHandler(h ExceptionHandler) Option {
	return func(d *Dispatcher) { d.exceptions = h }
}

// WithAlwaysInvokeValidate makes validation methods with the default When
// run even when errors exist
func WithAlwaysInvokeValidate(always bool) Option {
	return func(d *Dispatcher) { d.alwaysInvokeValidate = always }
}

// WithMaxUploadSize caps multipart request bodies; zero means no cap
func WithMaxUploadSize(n int64) Option {
	return func(d *Dispatcher) { d.maxUploadSize = n }
}

// WithSessionCookie sets the name of the session id cookie
func WithSessionCookie(name string) Option {
	return func(d *Dispatcher) { d.sessionCookie = name }
}

// NewDispatcher creates a dispatcher for the beans in registry
func NewDispatcher(registry *controller.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger:        slog.Default(),
		beans:         registry,
		flash:         flash.NewMemoryStore(),
		localizer:     validation.DefaultBundle,
		sessionCookie: DefaultSessionCookie,
		newSessionID:  uuid.NewString,
		sessions:      newSessionBeans(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.binder == nil {
		d.binder = binder.New(binder.WithLogger(d.logger))
	}
	if d.stacks == nil {
		d.stacks = lifecycle.NewStacks(d.logger).Add(interceptors.NewBeforeAfter())
	}
	if d.exceptions == nil {
		d.exceptions = NewDefaultExceptionHandler(d.logger)
	}
	if d.codec == nil {
		codec, err := crypto.NewCodec("")
		if err != nil {
			d.logger.Error("could not create a codec; tokens are not encrypted", "error", err)
		}
		d.codec = codec
	}
	return d
}

// Beans returns the bean registry
func (d *Dispatcher) Beans() *controller.Registry { return d.beans }

// Codec returns the codec used for tamper-evident tokens
func (d *Dispatcher) Codec() *crypto.Codec { return d.codec }

// ServeHTTP implements http.Handler
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mp, err := upload.FromRequest(w, r, d.maxUploadSize)
	if err != nil {
		d.exceptions.HandleException(w, r, err)
		return
	}
	var multipart action.Multipart
	if mp != nil {
		multipart = mp
		defer func() {
			if err := mp.Cleanup(); err != nil {
				d.logger.Warn("could not remove upload temporary files", "error", err)
			}
		}()
	}

	req, err := action.NewRequest(r, multipart)
	if err != nil {
		d.exceptions.HandleException(w, r, err)
		return
	}

	ctx := action.NewContext(req, w)
	ctx.ActionPath = r.URL.Path
	ctx.Flash = d.flash
	ctx.Session = d.sessionID(w, r)
	ctx.Codec = d.codec
	ctx.Renderer = d.renderer
	ctx.Localizer = d.localizer
	ctx.Locale = locale(r)
	req.HTTP = r.WithContext(action.WithContext(r.Context(), ctx))

	ec := lifecycle.NewExecutionContext(ctx)
	err = d.dispatch(ec)
	d.requestComplete(ec)
	if err != nil {
		d.exceptions.HandleException(w, req.HTTP, err)
	}
}

// dispatch runs the stages in order. A stage returning a resolution skips
// straight to resolution execution.
func (d *Dispatcher) dispatch(ec *lifecycle.ExecutionContext) error {
	stages := []struct {
		stage  lifecycle.Stage
		target lifecycle.Target
	}{
		{lifecycle.RequestInit, d.requestInit},
		{lifecycle.ActionBeanResolution, d.resolveActionBean},
		{lifecycle.HandlerResolution, d.resolveHandler},
		{lifecycle.BindingAndValidation, d.bindAndValidate},
		{lifecycle.CustomValidation, d.customValidation},
	}

	for _, s := range stages {
		res, err := d.stacks.Run(ec, s.stage, s.target)
		if err != nil {
			return err
		}
		if res != nil {
			return d.executeResolution(ec, res, false)
		}
	}

	res, err := d.handleValidationErrors(ec)
	if err != nil {
		return err
	}
	if res != nil {
		return d.executeResolution(ec, res, false)
	}

	res, err = d.stacks.Run(ec, lifecycle.EventHandling, d.handleEvent)
	if err != nil {
		return err
	}
	return d.executeResolution(ec, res, true)
}

// requestInit promotes the values of a flash scope named by __fsk
func (d *Dispatcher) requestInit(ec *lifecycle.ExecutionContext) (action.Resolution, error) {
	return nil, d.promoteFlash(ec.Context)
}

func (d *Dispatcher) resolveActionBean(ec *lifecycle.ExecutionContext) (action.Resolution, error) {
	ctx := ec.Context
	req := ctx.Request

	def, binding, err := d.beans.Bind(req.Path())
	if err != nil {
		return nil, err
	}
	ec.Definition = def
	ctx.ActionPath = def.Binding.Path
	req.MergeURIParameters(binding)

	bean := d.beanFor(ctx, def)
	bean.SetContext(ctx)
	ctx.Bean = bean
	req.SetAttribute(def.Binding.Path, bean)
	req.SetAttribute(action.BeanAttribute, bean)

	d.logger.Debug("resolved action bean", "path", req.Path(), "bean", def.Name)
	return nil, nil
}

// beanFor reuses a bean flashed from the previous request or held in the
// session, and otherwise creates one
func (d *Dispatcher) beanFor(ctx *action.Context, def *controller.Bean) action.ActionBean {
	if flashed, ok := ctx.Request.Attribute(def.Binding.Path).(action.ActionBean); ok && def.Type == typeOf(flashed) {
		return flashed
	}
	if def.SessionScoped() {
		return d.sessions.get(ctx.Session, def)
	}
	return def.New()
}

func (d *Dispatcher) resolveHandler(ec *lifecycle.ExecutionContext) (action.Resolution, error) {
	ctx := ec.Context
	event, h, err := d.beans.ResolveHandler(ec.Definition, ctx.Request)
	if err != nil {
		return nil, err
	}
	if !h.Allows(ctx.Request.Method()) && !strings.EqualFold(event, ctx.Request.Method()) {
		return nil, errors.MethodNotAllowed(ec.Definition.Name, event, ctx.Request.Method())
	}
	ctx.EventName = event
	ec.Handler = h
	d.logger.Debug("resolved event", "bean", ec.Definition.Name, "event", event)
	return nil, nil
}

func (d *Dispatcher) bindAndValidate(ec *lifecycle.ExecutionContext) (action.Resolution, error) {
	if ec.Handler.DontBind {
		return nil, nil
	}
	_, err := d.binder.Bind(ec.Context, ec.Definition, !ec.Handler.DontValidate)
	return nil, err
}

func (d *Dispatcher) customValidation(ec *lifecycle.ExecutionContext) (action.Resolution, error) {
	if ec.Handler.DontValidate {
		return nil, nil
	}
	ctx := ec.Context
	return nil, lifecycle.RunValidationMethods(ec.Definition.ValidationMethods(), ctx.Bean, ctx.Errors, ctx.EventName, d.alwaysInvokeValidate)
}

// handleValidationErrors picks the resolution for a request with errors:
// the bean's own choice, a JSON body for REST beans, otherwise the source
// page
func (d *Dispatcher) handleValidationErrors(ec *lifecycle.ExecutionContext) (action.Resolution, error) {
	ctx := ec.Context
	if ctx.Errors.Empty() || (ec.Handler.DontValidate && ec.Handler.IgnoreBindingErrors) {
		return nil, nil
	}

	beanType := typeOf(ctx.Bean)
	ctx.Errors.Each(func(_ string, e *validation.FieldError) {
		e.Enrich(ctx.ActionPath, beanType)
	})

	if h, ok := ctx.Bean.(action.ValidationErrorHandler); ok {
		res, err := h.HandleValidationErrors(ctx.Errors)
		if err != nil || res != nil {
			return res, err
		}
	}
	if ec.Definition.REST() {
		return action.ValidationErrorsJSON(ctx.Errors, ctx.Localizer, ctx.Locale), nil
	}
	return ctx.SourcePageResolution()
}

func (d *Dispatcher) handleEvent(ec *lifecycle.ExecutionContext) (action.Resolution, error) {
	res, err := ec.Handler.Func(ec.Context.Bean)
	if err != nil {
		// a returned HttpError is a response, not a failure
		var httpErr *action.HttpError
		if errors.As(err, &httpErr) {
			return httpErr, nil
		}
		return nil, err
	}
	return res, nil
}

func (d *Dispatcher) executeResolution(ec *lifecycle.ExecutionContext, res action.Resolution, fromHandler bool) error {
	ec.Resolution = res
	ec.ResolutionFromHandler = fromHandler
	_, err := d.stacks.Run(ec, lifecycle.ResolutionExecution, func(ec *lifecycle.ExecutionContext) (action.Resolution, error) {
		if ec.Resolution == nil {
			return nil, nil
		}
		ctx := ec.Context
		if err := ec.Resolution.Execute(ctx.Response, ctx.Request.HTTP); err != nil {
			return nil, errors.Infrastructure("execute resolution", err)
		}
		return ec.Resolution, nil
	})
	return err
}

// requestComplete always runs. It starts the request's flash scope and
// stores session-scoped beans.
func (d *Dispatcher) requestComplete(ec *lifecycle.ExecutionContext) {
	res, err := d.stacks.Run(ec, lifecycle.RequestComplete, func(ec *lifecycle.ExecutionContext) (action.Resolution, error) {
		ctx := ec.Context
		if ec.Definition != nil && ctx.Bean != nil && ec.Definition.SessionScoped() {
			d.sessions.put(ctx.Session, ec.Definition, ctx.Bean)
		}
		scope, err := ctx.CurrentFlashScope(false)
		if err != nil || scope == nil || d.flash == nil {
			return nil, err
		}
		return nil, d.flash.Complete(ctx.Ctx(), scope)
	})
	if err != nil {
		d.logger.Error("request completion failed", "path", ec.Context.Request.Path(), "error", err)
	}
	if res != nil {
		d.logger.Warn("resolution returned from RequestComplete is ignored", "path", ec.Context.Request.Path())
	}
}

// locale picks the first language of Accept-Language
func locale(r *http.Request) string {
	tag := r.Header.Get("Accept-Language")
	if i := strings.IndexAny(tag, ",;"); i >= 0 {
		tag = tag[:i]
	}
	return strings.TrimSpace(tag)
}
