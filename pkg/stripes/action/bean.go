// Package action holds the model shared by every dispatch component: action
// beans and their context, the wrapped request, resolutions and the
// descriptors beans are registered with.
package action

import (
	"github.com/stripes-go/stripes/pkg/stripes/validation"
)

// ActionBean is the per-request object that receives bound parameters and
// whose handlers respond to events
type ActionBean interface {
	Context() *Context
	SetContext(ctx *Context)
}

// BaseAction implements ActionBean; embed it in bean structs
type BaseAction struct {
	ctx *Context
}

// Context returns the bean's context
func (b *BaseAction) Context() *Context {
	return b.ctx
}

// SetContext sets the bean's context
func (b *BaseAction) SetContext(ctx *Context) {
	b.ctx = ctx
}

// Detach swaps the live context for a snapshot once the request is over, so
// a flashed bean holds no reference to the finished request
func (b *BaseAction) Detach() {
	if b.ctx != nil {
		b.ctx = b.ctx.Detached()
	}
}

// ValidationErrorHandler lets a bean choose the resolution used when binding
// or validation fails. Returning nil falls back to the default.
type ValidationErrorHandler interface {
	HandleValidationErrors(errs *validation.Errors) (Resolution, error)
}
