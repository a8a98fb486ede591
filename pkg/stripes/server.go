package stripes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// ServerConfig holds configuration for the dispatcher's HTTP server
type ServerConfig struct {
	// Port is the port to listen on (default: 8080)
	Port string

	// Host is the host to bind to (default: "")
	Host string

	// EnableCORS enables CORS middleware (default: false)
	EnableCORS bool

	// EnableLogger enables request logging middleware (default: true)
	EnableLogger bool

	// EnableRecover enables panic recovery middleware (default: true)
	EnableRecover bool

	// ShutdownTimeout is the timeout for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns a server configuration with sensible defaults
func DefaultServerConfig() *ServerConfig {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return &ServerConfig{
		Port:            port,
		EnableLogger:    true,
		EnableRecover:   true,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Address returns host:port
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Server hosts a Dispatcher on Echo. Every path not claimed by an extra
// route reaches the dispatcher.
type Server struct {
	echo       *echo.Echo
	config     *ServerConfig
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewServer creates a server for d
func NewServer(d *Dispatcher, config *ServerConfig) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if config.EnableRecover {
		e.Use(middleware.Recover())
	}
	if config.EnableLogger {
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogMethod:  true,
			LogURIPath: true,
			LogStatus:  true,
			LogLatency: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				d.logger.Info("request",
					"method", v.Method,
					"path", v.URIPath,
					"status", v.Status,
					"latency", v.Latency,
				)
				return nil
			},
		}))
	}
	if config.EnableCORS {
		e.Use(middleware.CORS())
	}

	s := &Server{echo: e, config: config, dispatcher: d, logger: d.logger}
	e.Any("/*", echo.WrapHandler(d))
	e.Any("/", echo.WrapHandler(d))
	return s
}

// Echo returns the underlying Echo instance for advanced configuration
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Handle mounts h on path ahead of the dispatcher, e.g. a metrics endpoint
func (s *Server) Handle(path string, h http.Handler) {
	s.echo.Any(path, echo.WrapHandler(h))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start serves until ctx is cancelled or the process receives SIGINT or
// SIGTERM, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		addr := s.config.Address()
		s.logger.Info("starting server", "address", addr)
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}
