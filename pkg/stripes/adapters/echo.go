package adapters

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// EchoAdapter mounts handlers on Echo v4
type EchoAdapter struct {
	engine *echo.Echo
}

// NewEchoAdapter creates a new Echo adapter
func NewEchoAdapter(e *echo.Echo) *EchoAdapter {
	return &EchoAdapter{engine: e}
}

// NewDefaultEchoAdapter creates a new Echo adapter with default Echo instance
func NewDefaultEchoAdapter() *EchoAdapter {
	e := echo.New()
	e.HideBanner = true
	return &EchoAdapter{engine: e}
}

// Mount implements Router
func (ea *EchoAdapter) Mount(prefix string, h http.Handler) {
	handler := echo.WrapHandler(h)
	base := routeBase(prefix)
	if base != "" {
		ea.engine.Any(base, handler)
	}
	ea.engine.Any(base+"/*", handler)
}

// Start starts the server
func (ea *EchoAdapter) Start(addr string) error {
	return ea.engine.Start(addr)
}

// Stop stops the server
func (ea *EchoAdapter) Stop(ctx context.Context) error {
	return ea.engine.Shutdown(ctx)
}

// Name returns the adapter name
func (ea *EchoAdapter) Name() string {
	return "Echo"
}

// Engine returns the underlying Echo instance
func (ea *EchoAdapter) Engine() *echo.Echo {
	return ea.engine
}
