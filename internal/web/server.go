// Package web runs the bot's HTTP surface: the prometheus /metrics endpoint
// and, in webhook mode, the Telegram webhook route.
package web

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/dmitrijs2005/supplierbot/internal/logging"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsPath is where prometheus metrics are served.
const MetricsPath = "/metrics"

var shutdownTimeout = 5 * time.Second

type Server struct {
	app    *fiber.App
	addr   string
	logger logging.Logger
}

// New builds a server listening on addr. HTTP metrics are registered on reg,
// which also serves /metrics when it is a prometheus.Gatherer.
func New(addr string, reg prometheus.Registerer, logger logging.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "supplierbot",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             1 << 20,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())

	prom := fiberprometheus.NewWithRegistry(reg, "supplierbot", "http", "", nil)
	prom.RegisterAt(app, MetricsPath)
	app.Use(prom.Middleware)

	return &Server{app: app, addr: addr, logger: logger}
}

// Handle mounts a POST route.
func (s *Server) Handle(path string, h fiber.Handler) {
	s.app.Post(path, h)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server started", "addr", ln.Addr().String())
		errCh <- s.app.Listener(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error(ctx, "http server shutdown failed", "error", err)
		return err
	}
	s.logger.Info(ctx, "http server stopped")
	return nil
}
