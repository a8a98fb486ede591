package action

import (
	"context"
	"io"
	"net/http"

	"github.com/stripes-go/stripes/internal/errors"
	"github.com/stripes-go/stripes/pkg/stripes/crypto"
	"github.com/stripes-go/stripes/pkg/stripes/flash"
	"github.com/stripes-go/stripes/pkg/stripes/param"
	"github.com/stripes-go/stripes/pkg/stripes/validation"
)

const (
	// BeanAttribute holds the request's action bean
	BeanAttribute = flash.BeanKey
	// MessagesAttribute holds the user messages shown on the next page
	MessagesAttribute = "__stripes_messages"
	// FlashScopeAttribute holds the id of the request's own flash scope
	FlashScopeAttribute = "__stripes_flash_scope"
)

// Renderer renders a named view, e.g. an html/template set
type Renderer interface {
	Render(w io.Writer, name string, data interface{}) error
}

// Context carries everything a bean knows about the request it serves
type Context struct {
	Request    *Request
	Response   http.ResponseWriter
	Errors     *validation.Errors
	EventName  string
	ActionPath string
	Locale     string
	Bean       ActionBean

	Flash     flash.Store
	Session   string
	Codec     *crypto.Codec
	Renderer  Renderer
	Localizer validation.Localizer

	scope *flash.Scope
}

// NewContext creates a context for req
func NewContext(req *Request, w http.ResponseWriter) *Context {
	return &Context{
		Request:   req,
		Response:  w,
		Errors:    validation.NewErrors(),
		Localizer: validation.DefaultBundle,
	}
}

type contextKey struct{}

// WithContext attaches c to ctx so resolutions can reach it
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the action context attached to ctx, or nil
func FromContext(ctx context.Context) *Context {
	c, _ := ctx.Value(contextKey{}).(*Context)
	return c
}

// Ctx returns the request's context.Context
func (c *Context) Ctx() context.Context {
	if c.Request == nil || c.Request.HTTP == nil {
		return context.Background()
	}
	return c.Request.HTTP.Context()
}

// CurrentFlashScope returns the scope filled by this request, creating it
// when create is set. Without a flash store it returns nil.
func (c *Context) CurrentFlashScope(create bool) (*flash.Scope, error) {
	if c.scope != nil || !create || c.Flash == nil {
		return c.scope, nil
	}
	scope, err := c.Flash.Create(c.Ctx(), c.Session)
	if err != nil {
		return nil, err
	}
	c.scope = scope
	c.Request.SetAttribute(FlashScopeAttribute, scope.ID)
	return scope, nil
}

// FlashValue stores a value for the next request. It is visible to the rest
// of this request as an attribute too.
func (c *Context) FlashValue(name string, value interface{}) error {
	scope, err := c.CurrentFlashScope(true)
	if err != nil {
		return err
	}
	if scope == nil {
		return errors.New(errors.ConfigurationErrorCode, "no flash store configured")
	}
	scope.Put(name, value)
	c.Request.SetAttribute(name, value)
	return nil
}

// FlashBean flashes a bean under its URL binding, and under BeanAttribute
// when it is the request's own bean
func (c *Context) FlashBean(binding string, bean ActionBean) error {
	if err := c.FlashValue(binding, bean); err != nil {
		return err
	}
	if bean == c.Bean {
		return c.FlashValue(BeanAttribute, bean)
	}
	return nil
}

// AddMessage queues a message for display, surviving one redirect
func (c *Context) AddMessage(message string) error {
	messages := append(c.Messages(), message)
	if c.Flash == nil {
		c.Request.SetAttribute(MessagesAttribute, messages)
		return nil
	}
	return c.FlashValue(MessagesAttribute, messages)
}

// Messages returns the queued messages
func (c *Context) Messages() []string {
	switch m := c.Request.Attribute(MessagesAttribute).(type) {
	case []string:
		return append([]string(nil), m...)
	case []interface{}:
		out := make([]string, 0, len(m))
		for _, v := range m {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// SourcePage returns the decrypted _sourcePage parameter
func (c *Context) SourcePage() (string, error) {
	raw := c.Request.Param(param.SourcePage)
	if raw == "" || c.Codec == nil {
		return raw, nil
	}
	return c.Codec.Decrypt(raw)
}

// SourcePageResolution forwards back to the page that submitted the form
func (c *Context) SourcePageResolution() (Resolution, error) {
	page, err := c.SourcePage()
	if err != nil {
		return nil, err
	}
	if page == "" {
		return nil, ErrBadRequest("validation failed and the request carries no " + param.SourcePage)
	}
	return Forward(page), nil
}

// Message localizes a field error for this request
func (c *Context) Message(err *validation.FieldError) string {
	return err.Localize(c.Localizer, c.Locale)
}

// Detached returns a snapshot that is safe to keep after the request ends.
// Writes to its response are discarded.
func (c *Context) Detached() *Context {
	d := *c
	if c.Request != nil {
		d.Request = c.Request.Detached()
	}
	d.Response = &detachedResponse{header: http.Header{}}
	d.scope = nil
	return &d
}

type detachedResponse struct {
	header http.Header
}

func (r *detachedResponse) Header() http.Header         { return r.header }
func (r *detachedResponse) Write(b []byte) (int, error) { return len(b), nil }
func (r *detachedResponse) WriteHeader(int)             {}
