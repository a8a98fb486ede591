package stripes

import (
	"log/slog"
	"net/http"

	"github.com/stripes-go/stripes/internal/errors"
	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/upload"
)

// Sentinels for matching dispatcher failures with errors.Is
var (
	ErrParse            = errors.Sentinel(errors.ParseErrorCode)
	ErrBindingConflict  = errors.Sentinel(errors.BindingConflictErrorCode)
	ErrActionNotFound   = errors.Sentinel(errors.ActionNotFoundErrorCode)
	ErrHandlerNotFound  = errors.Sentinel(errors.HandlerNotFoundErrorCode)
	ErrMethodNotAllowed = errors.Sentinel(errors.MethodNotAllowedErrorCode)
	ErrTamper           = errors.Sentinel(errors.TamperErrorCode)
	ErrInfrastructure   = errors.Sentinel(errors.InfrastructureErrorCode)
)

// ExceptionHandler writes the response for a request that failed with err
type ExceptionHandler interface {
	HandleException(w http.ResponseWriter, r *http.Request, err error)
}

// ExceptionHandlerFunc adapts a function to ExceptionHandler
type ExceptionHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)

// HandleException implements ExceptionHandler
func (f ExceptionHandlerFunc) HandleException(w http.ResponseWriter, r *http.Request, err error) {
	f(w, r, err)
}

// DefaultExceptionHandler maps error codes to HTTP statuses and answers
// with an HttpError body. Internal failures are not described to clients.
type DefaultExceptionHandler struct {
	logger *slog.Logger
}

// NewDefaultExceptionHandler creates the default handler
func NewDefaultExceptionHandler(logger *slog.Logger) *DefaultExceptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultExceptionHandler{logger: logger}
}

// HandleException implements ExceptionHandler
func (h *DefaultExceptionHandler) HandleException(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := StatusError(err)
	attrs := []any{"path", r.URL.Path, "status", httpErr.StatusCode, "error", err}
	if httpErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Error("request failed", attrs...)
	} else {
		h.logger.Warn("request rejected", attrs...)
	}
	if werr := httpErr.Execute(w, r); werr != nil {
		h.logger.Error("could not write error response", "error", werr)
	}
}

// StatusError converts err into the HttpError sent to the client
func StatusError(err error) *action.HttpError {
	var httpErr *action.HttpError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	if errors.Is(err, upload.ErrTooLarge) {
		return action.NewHttpError(http.StatusRequestEntityTooLarge, "request too large")
	}

	switch errors.CodeOf(err) {
	case errors.ActionNotFoundErrorCode, errors.HandlerNotFoundErrorCode:
		return action.ErrNotFound(err.Error())
	case errors.MethodNotAllowedErrorCode:
		return action.ErrMethodNotAllowed(err.Error())
	case errors.BindingConflictErrorCode:
		return action.ErrConflict(err.Error())
	case errors.TamperErrorCode:
		return action.ErrBadRequest("request parameters were tampered with")
	default:
		return action.ErrInternalServerError("internal server error")
	}
}
