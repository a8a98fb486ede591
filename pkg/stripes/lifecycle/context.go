// Package lifecycle runs each request stage through an ordered chain of
// interceptors, ending with the stage's own logic.
package lifecycle

import (
	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/controller"
)

// Stage is one step of the request lifecycle
type Stage = action.Stage

const (
	RequestInit          = action.RequestInit
	ActionBeanResolution = action.ActionBeanResolution
	HandlerResolution    = action.HandlerResolution
	BindingAndValidation = action.BindingAndValidation
	CustomValidation     = action.CustomValidation
	EventHandling        = action.EventHandling
	ResolutionExecution  = action.ResolutionExecution
	RequestComplete      = action.RequestComplete
)

// Interceptor wraps a stage. It either calls ec.Proceed to continue the
// chain or returns its own resolution to short-circuit the request.
type Interceptor interface {
	Intercept(ec *ExecutionContext) (action.Resolution, error)
}

// InterceptorFunc adapts a function to Interceptor
type InterceptorFunc func(ec *ExecutionContext) (action.Resolution, error)

// Intercept calls f(ec)
func (f InterceptorFunc) Intercept(ec *ExecutionContext) (action.Resolution, error) {
	return f(ec)
}

// Target is a stage's own logic, run after every interceptor proceeded
type Target func(ec *ExecutionContext) (action.Resolution, error)

// ExecutionContext is the per-request state handed to interceptors. It is
// never shared between requests.
type ExecutionContext struct {
	Stage   Stage
	Context *action.Context
	// Definition is the registered bean, set once ActionBeanResolution ran
	Definition *controller.Bean
	// Handler is set once HandlerResolution ran
	Handler *action.Handler
	// Resolution is the resolution about to be executed
	Resolution            action.Resolution
	ResolutionFromHandler bool

	chain  []Interceptor
	next   int
	target Target
	done   bool
	result action.Resolution
	err    error
}

// NewExecutionContext creates the execution context for one request
func NewExecutionContext(ctx *action.Context) *ExecutionContext {
	return &ExecutionContext{Context: ctx}
}

// Bean returns the request's action bean, nil before ActionBeanResolution
func (ec *ExecutionContext) Bean() action.ActionBean {
	if ec.Context == nil {
		return nil
	}
	return ec.Context.Bean
}

// Wrap starts a new stage: chain runs in order and target runs last
func (ec *ExecutionContext) Wrap(stage Stage, chain []Interceptor, target Target) (action.Resolution, error) {
	ec.Stage = stage
	ec.chain = chain
	ec.next = 0
	ec.target = target
	ec.done = false
	ec.result, ec.err = nil, nil
	return ec.Proceed()
}

// Proceed runs the next interceptor, or the stage target once the chain is
// exhausted. The target runs at most once per stage; later calls return its
// first result.
func (ec *ExecutionContext) Proceed() (action.Resolution, error) {
	if ec.next < len(ec.chain) {
		i := ec.chain[ec.next]
		ec.next++
		return i.Intercept(ec)
	}
	if ec.done {
		return ec.result, ec.err
	}
	ec.done = true
	if ec.target != nil {
		ec.result, ec.err = ec.target(ec)
	}
	return ec.result, ec.err
}
