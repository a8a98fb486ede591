// Package interceptors holds the built-in lifecycle interceptors: request
// logging, Prometheus metrics, OpenTelemetry spans and bean before/after
// hooks.
package interceptors

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/lifecycle"
)

// RequestIDAttribute holds the id the logging interceptor assigns to a
// request
const RequestIDAttribute = "__stripes_request_id"

// Logging logs one line per stage with the request id, the stage outcome
// and its duration
type Logging struct {
	logger *slog.Logger
	newID  func() string
}

// NewLogging creates a logging interceptor. A nil logger uses slog.Default.
func NewLogging(logger *slog.Logger) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{logger: logger, newID: uuid.NewString}
}

// Name implements lifecycle.Named
func (l *Logging) Name() string { return "logging" }

// Intercept implements lifecycle.Interceptor
func (l *Logging) Intercept(ec *lifecycle.ExecutionContext) (action.Resolution, error) {
	id := l.requestID(ec)
	start := time.Now()

	res, err := ec.Proceed()

	attrs := []any{
		"request_id", id,
		"stage", ec.Stage.String(),
		"duration", time.Since(start),
	}
	if ctx := ec.Context; ctx != nil {
		attrs = append(attrs, "path", ctx.Request.Path(), "event", ctx.EventName)
	}
	if ec.Definition != nil {
		attrs = append(attrs, "bean", ec.Definition.Name)
	}

	switch {
	case err != nil:
		l.logger.Error("stage failed", append(attrs, "error", err)...)
	case res != nil && ec.Stage != lifecycle.ResolutionExecution:
		l.logger.Info("stage returned a resolution", attrs...)
	default:
		l.logger.Debug("stage complete", attrs...)
	}
	return res, err
}

func (l *Logging) requestID(ec *lifecycle.ExecutionContext) string {
	if ec.Context == nil || ec.Context.Request == nil {
		return ""
	}
	req := ec.Context.Request
	if id, ok := req.Attribute(RequestIDAttribute).(string); ok {
		return id
	}
	id := l.newID()
	req.SetAttribute(RequestIDAttribute, id)
	return id
}
