// Package httpapi exposes the portal over HTTP: login, the work-item
// board, chat sessions, the resource catalog and the admin surfaces.
package httpapi

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/erezmus/crewdesk/internal/identity"
	"github.com/erezmus/crewdesk/internal/metrics"
	"github.com/erezmus/crewdesk/internal/requestid"
)

// ServerConfig holds configuration for the portal API server.
type ServerConfig struct {
	ListenAddr  string
	CORSOrigins string
}

// Server is the portal Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
}

// NewServer creates and configures the portal API server.
func NewServer(
	cfg ServerConfig,
	handlers *Handlers,
	issuer *TokenIssuer,
	directory *identity.Directory,
	metricsCollector *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	s := &Server{
		app:      app,
		handlers: handlers,
		logger:   logger.With().Str("component", "api_server").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg, issuer, directory, metricsCollector, logger)
	s.setupRoutes(handlers, metricsCollector)

	return s
}

func (s *Server) setupMiddleware(
	cfg ServerConfig,
	issuer *TokenIssuer,
	directory *identity.Directory,
	metricsCollector *metrics.Metrics,
	logger zerolog.Logger,
) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware
	s.app.Use(func(c *fiber.Ctx) error {
		_, reqID := requestid.New(c.Context())
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
			AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
		}))
	}

	s.app.Use(NewAuthMiddleware(issuer, directory, logger))

	// Request log + metrics middleware
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		metricsCollector.RecordRequest(route, statusText(c.Response().StatusCode()))
		metricsCollector.ObserveDuration(route, time.Since(start).Seconds())

		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Int("status", c.Response().StatusCode()).
			Str("ip", c.IP()).
			Str("request_id", c.Locals("request_id").(string)).
			Msg("api request")

		return err
	})
}

func statusText(code int) string {
	switch {
	case code < 400:
		return "ok"
	case code < 500:
		return "client_error"
	default:
		return "server_error"
	}
}

func (s *Server) setupRoutes(h *Handlers, metricsCollector *metrics.Metrics) {
	// Probe endpoints (no auth required — handled in auth middleware)
	s.app.Get("/healthz", h.Liveness)
	s.app.Get("/readyz", h.Readiness)
	s.app.Get("/metrics", adaptor.HTTPHandler(metricsCollector.Handler()))

	v1 := s.app.Group("/api/v1")

	// Auth
	v1.Post("/login", h.Login)
	v1.Get("/me", h.Me)

	// Work items
	v1.Get("/items", h.ListItems)
	v1.Post("/items", requireRole(identity.RoleManager), h.CreateItem)
	v1.Get("/items/:id", h.GetItem)
	v1.Put("/items/:id", h.UpdateItem)
	v1.Delete("/items/:id", h.DeleteItem)
	v1.Post("/items/:id/toggle", h.ToggleItem)
	v1.Post("/items/:id/read", h.MarkItemRead)
	v1.Post("/items/:id/complete", h.MarkItemCompleted)
	v1.Get("/items/:id/comments", h.ListComments)
	v1.Post("/items/:id/comments", h.AddComment)

	// Chats
	v1.Get("/chats", h.ListChats)
	v1.Post("/chats", h.CreateChat)
	v1.Post("/chats/:id/messages", h.PostMessage)
	v1.Post("/chats/:id/freeze", h.ToggleFreeze)
	v1.Post("/chats/:id/hide", h.HideChat)
	v1.Post("/chats/:id/unhide", h.UnhideChat)
	v1.Delete("/chats/:id", h.DeleteChat)

	// Resources & dashboard
	v1.Get("/resources", h.ListResources)
	v1.Post("/resources", requireRole(identity.RoleAdmin), h.CreateResource)
	v1.Delete("/resources/:id", requireRole(identity.RoleAdmin), h.DeleteResource)
	v1.Get("/shortcuts", h.ListShortcuts)

	// Admin surfaces
	admin := v1.Group("/admin", requireRole(identity.RoleAdmin))
	admin.Get("/items", h.ListAllItems)
	admin.Get("/audit", h.ListAudit)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Info().Str("addr", addr).Msg("portal API server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("portal API server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		if code == fiber.StatusInternalServerError {
			detail = "An internal error occurred"
		}

		return c.Status(code).JSON(ProblemDetail{
			Type:     "internal_error",
			Title:    "Internal Server Error",
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		})
	}
}
