package interceptors

import (
	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/lifecycle"
)

// BeforeAfter runs a bean's Before hooks ahead of a stage and its After
// hooks once the stage finished. A hook returning a resolution ends the
// stage with it.
type BeforeAfter struct{}

// NewBeforeAfter creates the hook interceptor
func NewBeforeAfter() *BeforeAfter { return &BeforeAfter{} }

// Name implements lifecycle.Named
func (*BeforeAfter) Name() string { return "beforeAfter" }

// Intercept implements lifecycle.Interceptor
func (*BeforeAfter) Intercept(ec *lifecycle.ExecutionContext) (action.Resolution, error) {
	if ec.Definition != nil && ec.Bean() != nil {
		if res, err := runHooks(ec, ec.Definition.Before()); res != nil || err != nil {
			return res, err
		}
	}

	res, err := ec.Proceed()
	if err != nil {
		return res, err
	}

	// the event may only be known now, after HandlerResolution
	if ec.Definition != nil && ec.Bean() != nil {
		if override, err := runHooks(ec, ec.Definition.After()); override != nil || err != nil {
			return override, err
		}
	}
	return res, nil
}

func runHooks(ec *lifecycle.ExecutionContext, hooks []action.Hook) (action.Resolution, error) {
	event := ec.Context.EventName
	for _, h := range hooks {
		if !h.Applies(ec.Stage, event) {
			continue
		}
		res, err := h.Func(ec.Bean())
		if err != nil || res != nil {
			return res, err
		}
	}
	return nil, nil
}
