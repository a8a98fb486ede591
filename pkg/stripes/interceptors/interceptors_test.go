package interceptors

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/controller"
	"github.com/stripes-go/stripes/pkg/stripes/lifecycle"
)

type auditAction struct {
	action.BaseAction
	calls []string
	block bool
}

func auditDescriptor() *action.Descriptor {
	record := func(name string, res action.Resolution) func(*auditAction) (action.Resolution, error) {
		return func(a *auditAction) (action.Resolution, error) {
			a.calls = append(a.calls, name)
			if name == "guard" && !a.block {
				return nil, nil
			}
			return res, nil
		}
	}
	return &action.Descriptor{
		Name:    "audit",
		Binding: "/audit/{$event}",
		New:     func() action.ActionBean { return &auditAction{} },
		Handlers: []action.Handler{
			action.Handle("view", func(*auditAction) (action.Resolution, error) { return action.Forward("/audit.html"), nil }).AsDefault(),
		},
		Before: []action.Hook{
			action.NewHook("guard", record("guard", action.Redirect("/login"))),
			action.NewHook("load", record("load", nil), lifecycle.EventHandling, lifecycle.BindingAndValidation),
			action.NewHook("saveOnly", record("saveOnly", nil)),
		},
		After: []action.Hook{
			action.NewHook("cleanup", record("cleanup", nil)),
		},
	}
}

func newExecution(t *testing.T, event string) (*lifecycle.ExecutionContext, *auditAction) {
	t.Helper()
	desc := auditDescriptor()
	desc.Before[2].On = []string{"save"}

	registry := controller.NewRegistry(nil)
	require.NoError(t, registry.Register(desc))
	def, ok := registry.Named("audit")
	require.True(t, ok)

	req, err := action.NewRequest(httptest.NewRequest(http.MethodGet, "/audit/"+event, nil), nil)
	require.NoError(t, err)
	ctx := action.NewContext(req, httptest.NewRecorder())
	bean := def.New().(*auditAction)
	bean.SetContext(ctx)
	ctx.Bean = bean
	ctx.EventName = event

	ec := lifecycle.NewExecutionContext(ctx)
	ec.Definition = def
	return ec, bean
}

func proceedTo(res action.Resolution, err error) lifecycle.Target {
	return func(*lifecycle.ExecutionContext) (action.Resolution, error) { return res, err }
}

func TestBeforeAfter(t *testing.T) {
	done := action.Forward("/done.html")

	t.Run("hooks wrap the stage", func(t *testing.T) {
		ec, bean := newExecution(t, "view")
		res, err := ec.Wrap(lifecycle.EventHandling, []lifecycle.Interceptor{NewBeforeAfter()}, func(*lifecycle.ExecutionContext) (action.Resolution, error) {
			bean.calls = append(bean.calls, "handler")
			return done, nil
		})
		require.NoError(t, err)
		assert.Same(t, done, res)
		assert.Equal(t, []string{"guard", "load", "handler", "cleanup"}, bean.calls)
	})

	t.Run("other stages only run their hooks", func(t *testing.T) {
		ec, bean := newExecution(t, "save")
		_, err := ec.Wrap(lifecycle.BindingAndValidation, []lifecycle.Interceptor{NewBeforeAfter()}, proceedTo(nil, nil))
		require.NoError(t, err)
		assert.Equal(t, []string{"load"}, bean.calls)
	})

	t.Run("before hook short-circuits", func(t *testing.T) {
		ec, bean := newExecution(t, "view")
		bean.block = true
		res, err := ec.Wrap(lifecycle.EventHandling, []lifecycle.Interceptor{NewBeforeAfter()}, proceedTo(done, nil))
		require.NoError(t, err)
		assert.Equal(t, "/login", res.(*action.RedirectResolution).Location())
		assert.Equal(t, []string{"guard"}, bean.calls)
	})

	t.Run("errors skip after hooks", func(t *testing.T) {
		ec, bean := newExecution(t, "view")
		_, err := ec.Wrap(lifecycle.EventHandling, []lifecycle.Interceptor{NewBeforeAfter()}, proceedTo(nil, fmt.Errorf("boom")))
		assert.EqualError(t, err, "boom")
		assert.Equal(t, []string{"guard", "load"}, bean.calls)
	})

	t.Run("no bean yet", func(t *testing.T) {
		ec := lifecycle.NewExecutionContext(nil)
		res, err := ec.Wrap(lifecycle.ActionBeanResolution, []lifecycle.Interceptor{NewBeforeAfter()}, proceedTo(done, nil))
		require.NoError(t, err)
		assert.Same(t, done, res)
	})
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogging(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	l.newID = func() string { return "req-1" }

	ec, _ := newExecution(t, "view")
	_, err := ec.Wrap(lifecycle.HandlerResolution, []lifecycle.Interceptor{l}, proceedTo(nil, nil))
	require.NoError(t, err)
	_, err = ec.Wrap(lifecycle.EventHandling, []lifecycle.Interceptor{l}, proceedTo(nil, fmt.Errorf("boom")))
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "stage complete")
	assert.Contains(t, out, "request_id=req-1")
	assert.Contains(t, out, "stage=HandlerResolution")
	assert.Contains(t, out, "bean=audit")
	assert.Contains(t, out, "stage failed")
	assert.Equal(t, "req-1", ec.Context.Request.Attribute(RequestIDAttribute))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithNamespace("test"), WithBuckets([]float64{0.1, 1}))

	ec, _ := newExecution(t, "view")
	stacks := lifecycle.NewStacks(nil).Add(m)

	_, err := stacks.Run(ec, lifecycle.HandlerResolution, proceedTo(action.Redirect("/x"), nil))
	require.NoError(t, err)
	_, err = stacks.Run(ec, lifecycle.EventHandling, proceedTo(action.Forward("/y"), nil))
	require.NoError(t, err)
	_, err = stacks.Run(ec, lifecycle.CustomValidation, proceedTo(nil, fmt.Errorf("boom")))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.stages.WithLabelValues("HandlerResolution", "short_circuit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stages.WithLabelValues("EventHandling", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stages.WithLabelValues("CustomValidation", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("audit", "view")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.duration))
}

type recordingProvider struct {
	noop.TracerProvider
	spans *[]string
}

func (p recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return recordingTracer{spans: p.spans}
}

type recordingTracer struct {
	noop.Tracer
	spans *[]string
}

func (r recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	*r.spans = append(*r.spans, name)
	return context.WithValue(ctx, r, name), noop.Span{}
}

func TestTracing(t *testing.T) {
	var spans []string
	tr := NewTracing(WithTracerProvider(recordingProvider{spans: &spans}), WithTracerName("test"))
	assert.Equal(t, "tracing", tr.Name())

	ec, _ := newExecution(t, "view")
	original := ec.Context.Request.HTTP

	var inside context.Context
	_, err := ec.Wrap(lifecycle.EventHandling, []lifecycle.Interceptor{tr}, func(ec *lifecycle.ExecutionContext) (action.Resolution, error) {
		inside = ec.Context.Ctx()
		return nil, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"stripes.EventHandling"}, spans)
	assert.NotEqual(t, original.Context(), inside)
	assert.Same(t, original, ec.Context.Request.HTTP)

	_, err = lifecycle.NewExecutionContext(nil).Wrap(lifecycle.RequestInit, []lifecycle.Interceptor{tr}, proceedTo(nil, nil))
	require.NoError(t, err)
	assert.Len(t, spans, 1)
}
