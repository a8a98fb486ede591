package adapters

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ChiAdapter mounts handlers on a chi router
type ChiAdapter struct {
	router chi.Router
	server *http.Server
}

// NewChiAdapter creates a new chi adapter
func NewChiAdapter(r chi.Router) *ChiAdapter {
	return &ChiAdapter{router: r}
}

// NewDefaultChiAdapter creates a new chi adapter with a fresh mux
func NewDefaultChiAdapter() *ChiAdapter {
	return &ChiAdapter{router: chi.NewRouter()}
}

// Mount implements Router
func (ca *ChiAdapter) Mount(prefix string, h http.Handler) {
	base := routeBase(prefix)
	if base != "" {
		ca.router.Handle(base, h)
	}
	ca.router.Handle(base+"/*", h)
}

// Start starts the server
func (ca *ChiAdapter) Start(addr string) error {
	ca.server = &http.Server{Addr: addr, Handler: ca.router}
	return ca.server.ListenAndServe()
}

// Stop stops the server
func (ca *ChiAdapter) Stop(ctx context.Context) error {
	if ca.server == nil {
		return nil
	}
	return ca.server.Shutdown(ctx)
}

// Name returns the adapter name
func (ca *ChiAdapter) Name() string {
	return "Chi"
}

// Router returns the underlying chi router
func (ca *ChiAdapter) Router() chi.Router {
	return ca.router
}
