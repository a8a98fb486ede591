package adapters

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinAdapter mounts handlers on a Gin engine
type GinAdapter struct {
	engine *gin.Engine
	server *http.Server
}

// NewGinAdapter creates a new Gin adapter
func NewGinAdapter(g *gin.Engine) *GinAdapter {
	return &GinAdapter{engine: g}
}

// NewDefaultGinAdapter creates a new Gin adapter with a bare engine
func NewDefaultGinAdapter() *GinAdapter {
	return &GinAdapter{engine: gin.New()}
}

// Mount implements Router. Gin rejects a catch-all next to sibling routes,
// so nested binding prefixes must be mounted through a common parent.
func (ga *GinAdapter) Mount(prefix string, h http.Handler) {
	handler := gin.WrapH(h)
	base := routeBase(prefix)
	if base != "" {
		ga.engine.Any(base, handler)
	}
	ga.engine.Any(base+"/*path", handler)
}

// Start starts the server
func (ga *GinAdapter) Start(addr string) error {
	ga.server = &http.Server{Addr: addr, Handler: ga.engine}
	return ga.server.ListenAndServe()
}

// Stop stops the server
func (ga *GinAdapter) Stop(ctx context.Context) error {
	if ga.server == nil {
		return nil
	}
	return ga.server.Shutdown(ctx)
}

// Name returns the adapter name
func (ga *GinAdapter) Name() string {
	return "Gin"
}

// GetEngine returns the underlying Gin engine
func (ga *GinAdapter) GetEngine() *gin.Engine {
	return ga.engine
}
