// Package web serves the operational status API: live state, tool
// catalog, manual tool triggering and a websocket event stream. It is a
// debug surface, not a user-facing UI.
package web

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/hearthlabs/hearth/pkg/agent"
	"github.com/hearthlabs/hearth/pkg/tools"
)

// Transport reports device-subsystem connectivity for the status page.
type Transport interface {
	Ready() bool
	Unavailable() bool
}

// Server is the status/debug HTTP server.
type Server struct {
	app       *fiber.App
	agent     *agent.Agent
	registry  *tools.Registry
	executor  *tools.Executor
	transport Transport
	logger    *slog.Logger
}

// NewServer creates the server. transport may be nil when the device
// subsystem is not configured.
func NewServer(a *agent.Agent, registry *tools.Registry, executor *tools.Executor, transport Transport, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		agent:     a,
		registry:  registry,
		executor:  executor,
		transport: transport,
		logger:    logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Hearth Status",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/tools", s.handleListTools)
	api.Post("/tools/:name", s.handleTriggerTool)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Start blocks serving on addr (e.g. ":8090").
func (s *Server) Start(addr string) error {
	s.logger.Info("status server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(2 * time.Second)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }
