package lifecycle

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/stripes-go/stripes/pkg/stripes/action"
)

// Named interceptors report a stable identity used for duplicate detection
// and logging
type Named interface {
	Name() string
}

// Stacks holds the interceptor list of every stage
type Stacks struct {
	logger *slog.Logger
	stacks map[Stage][]Interceptor
}

// NewStacks creates empty stacks. A nil logger uses slog.Default.
func NewStacks(logger *slog.Logger) *Stacks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stacks{logger: logger, stacks: make(map[Stage][]Interceptor)}
}

// Add appends i to the stack of each stage, or of every stage when none are
// given. An interceptor already present is logged and added again.
func (s *Stacks) Add(i Interceptor, stages ...Stage) *Stacks {
	if len(stages) == 0 {
		stages = action.Stages()
	}
	for _, stage := range stages {
		for _, existing := range s.stacks[stage] {
			if same(existing, i) {
				s.logger.Warn("interceptor listed more than once for a stage", "interceptor", identity(i), "stage", stage.String())
				break
			}
		}
		s.stacks[stage] = append(s.stacks[stage], i)
	}
	return s
}

// For returns the interceptors of stage in order
func (s *Stacks) For(stage Stage) []Interceptor {
	return s.stacks[stage]
}

// Run executes stage through its interceptors, then target
func (s *Stacks) Run(ec *ExecutionContext, stage Stage, target Target) (action.Resolution, error) {
	return ec.Wrap(stage, s.stacks[stage], target)
}

// Describe lists the interceptor names of every non-empty stage in order
func (s *Stacks) Describe() map[string][]string {
	out := make(map[string][]string)
	for _, stage := range action.Stages() {
		for _, i := range s.stacks[stage] {
			out[stage.String()] = append(out[stage.String()], identity(i))
		}
	}
	return out
}

func identity(i Interceptor) string {
	if n, ok := i.(Named); ok {
		return n.Name()
	}
	if v := reflect.ValueOf(i); v.Kind() == reflect.Pointer {
		return fmt.Sprintf("%T@%x", i, v.Pointer())
	}
	return fmt.Sprintf("%T", i)
}

// same reports whether a and b are the same interceptor. Functions never
// compare equal, not even to themselves.
func same(a, b Interceptor) bool {
	an, aNamed := a.(Named)
	bn, bNamed := b.(Named)
	if aNamed || bNamed {
		return aNamed && bNamed && an.Name() == bn.Name()
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if !av.IsValid() || !bv.IsValid() || av.Type() != bv.Type() || !av.Comparable() || !bv.Comparable() {
		return false
	}
	return a == b
}
