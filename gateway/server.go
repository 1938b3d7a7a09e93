// Package gateway is the thin pass-through proxy between the UI and the RAG
// backend. Every route relays its request unchanged; any transport failure
// against the backend is reported uniformly as 502 {"detail": "Backend
// unreachable"}, which the client side relies on.
package gateway

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
)

const backendUnreachable = "Backend unreachable"

// Server wraps the Fiber app and the backend it forwards to.
type Server struct {
	app        *fiber.App
	backendURL string
	httpc      *http.Client
	validate   *validator.Validate
	log        *zap.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithHTTPClient replaces the forwarding http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(s *Server) { s.httpc = h }
}

// WithLogger attaches a zap logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New creates the proxy for the backend at backendURL (no trailing slash).
func New(backendURL string, opts ...Option) *Server {
	s := &Server{
		backendURL: backendURL,
		// No overall timeout: the query route streams for as long as the
		// backend keeps generating.
		httpc:    &http.Client{},
		validate: validator.New(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             50 * 1024 * 1024, // 50MB uploads
		DisableStartupMessage: true,
	})

	app.Use(cors.New())
	app.Use(s.requestLogger)

	api := app.Group("/api")
	api.Get("/health", s.health)

	v1 := api.Group("/v1")
	v1.Post("/upload", s.upload)
	v1.Post("/index", s.index)
	v1.Get("/documents", s.documents)
	v1.Delete("/documents/:filename", s.deleteDocument)
	v1.Post("/query", s.query)

	s.app = app
	return s
}

// App exposes the Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts serving on addr.
func (s *Server) Listen(addr string) error {
	s.log.Info("gateway listening", zap.String("addr", addr), zap.String("backend", s.backendURL))
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.Info("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("took", time.Since(start)))
	return err
}
