package adapters

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// FiberAdapter mounts handlers on a Fiber app. Requests cross from fasthttp
// to net/http through the adaptor middleware.
type FiberAdapter struct {
	app *fiber.App
}

// NewFiberAdapter creates a new Fiber adapter
func NewFiberAdapter(app *fiber.App) *FiberAdapter {
	return &FiberAdapter{app: app}
}

// NewDefaultFiberAdapter creates a new Fiber adapter with default config
func NewDefaultFiberAdapter() *FiberAdapter {
	return &FiberAdapter{app: fiber.New(fiber.Config{DisableStartupMessage: true})}
}

// Mount implements Router
func (fa *FiberAdapter) Mount(prefix string, h http.Handler) {
	handler := adaptor.HTTPHandler(h)
	base := routeBase(prefix)
	if base != "" {
		fa.app.All(base, handler)
	}
	fa.app.All(base+"/*", handler)
}

// Start starts the Fiber server
func (fa *FiberAdapter) Start(addr string) error {
	return fa.app.Listen(addr)
}

// Stop stops the Fiber server
func (fa *FiberAdapter) Stop(ctx context.Context) error {
	return fa.app.ShutdownWithContext(ctx)
}

// Name returns the adapter name
func (fa *FiberAdapter) Name() string {
	return "Fiber"
}

// App returns the underlying Fiber app
func (fa *FiberAdapter) App() *fiber.App {
	return fa.app
}
