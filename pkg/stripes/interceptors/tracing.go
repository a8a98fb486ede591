package interceptors

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/lifecycle"
)

const defaultTracerName = "stripes"

// TracingOption configures the tracing interceptor
type TracingOption func(*Tracing)

// WithTracerProvider uses tp instead of the global provider
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(t *Tracing) { t.provider = tp }
}

// WithTracerName sets the tracer name
func WithTracerName(name string) TracingOption {
	return func(t *Tracing) { t.name = name }
}

// Tracing opens a span per stage. The span context is installed on the
// request for the duration of the stage so handlers can start child spans
// from ctx.Ctx().
type Tracing struct {
	provider trace.TracerProvider
	name     string
	tracer   trace.Tracer
}

// NewTracing creates the tracing interceptor
func NewTracing(opts ...TracingOption) *Tracing {
	t := &Tracing{name: defaultTracerName}
	for _, opt := range opts {
		opt(t)
	}
	if t.provider == nil {
		t.provider = otel.GetTracerProvider()
	}
	t.tracer = t.provider.Tracer(t.name)
	return t
}

// Name implements lifecycle.Named
func (t *Tracing) Name() string { return "tracing" }

// Intercept implements lifecycle.Interceptor
func (t *Tracing) Intercept(ec *lifecycle.ExecutionContext) (action.Resolution, error) {
	ctx := ec.Context
	if ctx == nil || ctx.Request == nil || ctx.Request.HTTP == nil {
		return ec.Proceed()
	}

	attrs := []attribute.KeyValue{
		attribute.String("stripes.stage", ec.Stage.String()),
		attribute.String("stripes.path", ctx.Request.Path()),
	}
	if ctx.EventName != "" {
		attrs = append(attrs, attribute.String("stripes.event", ctx.EventName))
	}
	if ec.Definition != nil {
		attrs = append(attrs, attribute.String("stripes.bean", ec.Definition.Name))
	}

	original := ctx.Request.HTTP
	spanCtx, span := t.tracer.Start(original.Context(), "stripes."+ec.Stage.String(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	ctx.Request.HTTP = original.WithContext(spanCtx)
	res, err := ec.Proceed()
	ctx.Request.HTTP = original

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.Bool("stripes.resolution", res != nil))
	return res, err
}
