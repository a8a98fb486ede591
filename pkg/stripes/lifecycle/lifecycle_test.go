package lifecycle

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stripes-go/stripes/internal/errors"
	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/validation"
)

type recorder struct {
	name  string
	calls *[]string
	stop  action.Resolution
}

func (r recorder) Name() string { return r.name }

func (r recorder) Intercept(ec *ExecutionContext) (action.Resolution, error) {
	*r.calls = append(*r.calls, r.name+":before")
	if r.stop != nil {
		return r.stop, nil
	}
	res, err := ec.Proceed()
	*r.calls = append(*r.calls, r.name+":after")
	return res, err
}

func target(calls *[]string, res action.Resolution) Target {
	return func(ec *ExecutionContext) (action.Resolution, error) {
		*calls = append(*calls, "target:"+ec.Stage.String())
		return res, nil
	}
}

func TestExecutionContextChain(t *testing.T) {
	var calls []string
	done := action.Forward("/done.html")
	ec := NewExecutionContext(nil)

	res, err := ec.Wrap(EventHandling, []Interceptor{
		recorder{name: "a", calls: &calls},
		recorder{name: "b", calls: &calls},
	}, target(&calls, done))
	require.NoError(t, err)
	assert.Same(t, done, res)
	assert.Equal(t, []string{"a:before", "b:before", "target:EventHandling", "b:after", "a:after"}, calls)
	assert.Nil(t, ec.Bean())
}

func TestExecutionContextShortCircuit(t *testing.T) {
	var calls []string
	stop := action.Redirect("/login")
	ec := NewExecutionContext(nil)

	res, err := ec.Wrap(HandlerResolution, []Interceptor{
		recorder{name: "a", calls: &calls},
		recorder{name: "guard", calls: &calls, stop: stop},
		recorder{name: "c", calls: &calls},
	}, target(&calls, nil))
	require.NoError(t, err)
	assert.Same(t, stop, res)
	assert.Equal(t, []string{"a:before", "guard:before", "a:after"}, calls)
}

func TestExecutionContextTargetRunsOnce(t *testing.T) {
	runs := 0
	twice := InterceptorFunc(func(ec *ExecutionContext) (action.Resolution, error) {
		_, _ = ec.Proceed()
		return ec.Proceed()
	})
	ec := NewExecutionContext(nil)

	_, err := ec.Wrap(CustomValidation, []Interceptor{twice}, func(*ExecutionContext) (action.Resolution, error) {
		runs++
		return nil, fmt.Errorf("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, runs)

	_, err = ec.Wrap(EventHandling, nil, func(*ExecutionContext) (action.Resolution, error) {
		runs++
		return nil, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, runs)
}

func TestStacksDuplicatesLoggedAndKept(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	var calls []string
	a := recorder{name: "a", calls: &calls}

	stacks := NewStacks(logger).
		Add(a, BindingAndValidation).
		Add(a, BindingAndValidation)

	assert.Len(t, stacks.For(BindingAndValidation), 2)
	assert.Contains(t, buf.String(), "interceptor listed more than once")

	_, err := stacks.Run(NewExecutionContext(nil), BindingAndValidation, target(&calls, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"a:before", "a:before", "target:BindingAndValidation", "a:after", "a:after"}, calls)
}

func TestStacksDistinctClosuresNotDuplicates(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	var calls []string
	tagged := func(tag string) Interceptor {
		return InterceptorFunc(func(ec *ExecutionContext) (action.Resolution, error) {
			calls = append(calls, tag)
			return ec.Proceed()
		})
	}

	stacks := NewStacks(logger).
		Add(tagged("x"), EventHandling).
		Add(tagged("y"), EventHandling)

	assert.Len(t, stacks.For(EventHandling), 2)
	assert.NotContains(t, buf.String(), "interceptor listed more than once")

	_, err := stacks.Run(NewExecutionContext(nil), EventHandling, target(&calls, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "target:EventHandling"}, calls)
}

func TestStacksSamePointerIsDuplicate(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	counter := &countingInterceptor{}

	stacks := NewStacks(logger).
		Add(counter, RequestComplete).
		Add(&countingInterceptor{}, RequestComplete)
	assert.NotContains(t, buf.String(), "interceptor listed more than once")

	stacks.Add(counter, RequestComplete)
	assert.Contains(t, buf.String(), "interceptor listed more than once")
	assert.Len(t, stacks.For(RequestComplete), 3)
}

type countingInterceptor struct{ n int }

func (c *countingInterceptor) Intercept(ec *ExecutionContext) (action.Resolution, error) {
	c.n++
	return ec.Proceed()
}

func TestStacksAddAllStages(t *testing.T) {
	f := InterceptorFunc(func(ec *ExecutionContext) (action.Resolution, error) { return ec.Proceed() })
	stacks := NewStacks(nil).Add(f)

	for _, stage := range action.Stages() {
		assert.Len(t, stacks.For(stage), 1, stage.String())
	}
	assert.Len(t, stacks.Describe(), len(action.Stages()))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	var calls []string
	require.NoError(t, r.Register("audit", recorder{name: "audit", calls: &calls}))

	err := r.Register("audit", recorder{name: "audit", calls: &calls})
	assert.Equal(t, errors.RegistrationErrorCode, errors.CodeOf(err))
	assert.Error(t, r.Register("", recorder{}))
	assert.Error(t, r.Register("nil", nil))

	_, ok := r.Get("audit")
	assert.True(t, ok)
	assert.Equal(t, []string{"audit"}, r.Names())

	assert.NoError(t, r.Validate([]string{"audit", " "}))
	err = r.Validate([]string{"audit", "missing", "gone"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing, gone")
	assert.Equal(t, errors.ConfigurationErrorCode, errors.CodeOf(err))
}

func TestBuildFromYAML(t *testing.T) {
	var calls []string
	r := NewRegistry()
	require.NoError(t, r.Register("logging", recorder{name: "logging", calls: &calls}))
	require.NoError(t, r.Register("metrics", recorder{name: "metrics", calls: &calls}))

	cfg, err := LoadStackConfig(strings.NewReader(`
stacks:
  all: [logging]
  bindingAndValidation: [metrics]
`))
	require.NoError(t, err)

	stacks, err := r.Build(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"logging", "metrics"}, stacks.Describe()["BindingAndValidation"])
	assert.Equal(t, []string{"logging"}, stacks.Describe()["EventHandling"])

	_, err = stacks.Run(NewExecutionContext(nil), BindingAndValidation, target(&calls, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"logging:before", "metrics:before", "target:BindingAndValidation", "metrics:after", "logging:after"}, calls)
}

func TestBuildErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("logging", InterceptorFunc(func(ec *ExecutionContext) (action.Resolution, error) {
		return ec.Proceed()
	})))

	testCases := []struct {
		name string
		yaml string
	}{
		{name: "unknown interceptor", yaml: "stacks:\n  all: [tracing]\n"},
		{name: "unknown stage", yaml: "stacks:\n  Rendering: [logging]\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadStackConfig(strings.NewReader(tc.yaml))
			require.NoError(t, err)
			_, err = r.Build(cfg, nil)
			assert.Equal(t, errors.ConfigurationErrorCode, errors.CodeOf(err))
		})
	}

	_, err := LoadStackConfig(strings.NewReader("stacks: [oops"))
	assert.Error(t, err)

	stacks, err := r.Build(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, stacks.Describe())
}

func TestLoadStackConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interceptors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stacks:\n  EventHandling: [logging]\n"), 0o600))

	cfg, err := LoadStackConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"EventHandling": {"logging"}}, cfg.Stacks)

	_, err = LoadStackConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunValidationMethods(t *testing.T) {
	var calls []string
	method := func(name string, when action.When, on ...string) action.ValidationMethod {
		return action.ValidationMethod{
			Name: name,
			When: when,
			On:   on,
			Func: func(_ action.ActionBean, errs *validation.Errors) error {
				calls = append(calls, name)
				if name == "fail" {
					errs.Add("name", validation.NewSimpleError("bad"))
				}
				return nil
			},
		}
	}
	methods := []action.ValidationMethod{
		method("fail", action.WhenDefault),
		method("always", action.WhenAlways),
		method("noErrors", action.WhenNoErrors),
		method("default", action.WhenDefault),
		method("deleteOnly", action.WhenAlways, "delete"),
	}

	require.NoError(t, RunValidationMethods(methods, nil, validation.NewErrors(), "save", false))
	assert.Equal(t, []string{"fail", "always"}, calls)

	calls = nil
	require.NoError(t, RunValidationMethods(methods, nil, validation.NewErrors(), "save", true))
	assert.Equal(t, []string{"fail", "always", "default"}, calls)

	calls = nil
	aborting := []action.ValidationMethod{
		{Name: "boom", Func: func(action.ActionBean, *validation.Errors) error { return fmt.Errorf("boom") }},
		method("after", action.WhenAlways),
	}
	assert.EqualError(t, RunValidationMethods(aborting, nil, validation.NewErrors(), "save", false), "boom")
	assert.Empty(t, calls)
}
