// Package httpapi serves the extraction pipeline over HTTP with fiber.
package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/storage/memory/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/ironsheep/chatscan/internal/cache"
	"github.com/ironsheep/chatscan/internal/config"
	"github.com/ironsheep/chatscan/internal/extract"
	"github.com/ironsheep/chatscan/internal/forward"
	"github.com/ironsheep/chatscan/internal/observability"
)

// Deps are the collaborators the server routes requests to. Extractor is
// required; the rest may be nil.
type Deps struct {
	Extractor *extract.Extractor
	Cache     *cache.ResultCache
	Forwarder *forward.Client
	Metrics   *observability.Metrics
	Gatherer  prometheus.Gatherer
	Version   string
}

// Server is the chatscan HTTP API.
type Server struct {
	app       *fiber.App
	cfg       config.ServerConfig
	extractor *extract.Extractor
	cache     *cache.ResultCache
	forwarder *forward.Client
	version   string
}

// NewServer builds the fiber app and registers every route.
func NewServer(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}

	app := fiber.New(fiber.Config{
		ServerHeader:          "chatscan",
		AppName:               "chatscan " + deps.Version,
		BodyLimit:             cfg.BodyLimit,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		app:       app,
		cfg:       cfg,
		extractor: deps.Extractor,
		cache:     deps.Cache,
		forwarder: deps.Forwarder,
		version:   deps.Version,
	}

	// Request ID middleware - must be first so every log line can carry it
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(deps.Metrics.MetricsMiddleware())
	app.Use(recover.New())

	app.Get("/health", s.handleHealth)
	if deps.Gatherer != nil {
		app.Get("/metrics", observability.Handler(deps.Gatherer))
	}

	v1 := app.Group("/v1")
	if cfg.RatePerMinute > 0 {
		v1.Use(newRateLimiter(cfg.RatePerMinute, time.Minute))
	}
	v1.Post("/extract", s.handleExtract)

	return s, nil
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	log.Info().Str("address", s.cfg.Address).Msg("HTTP API listening")
	return s.app.Listen(s.cfg.Address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// newRateLimiter limits requests per client IP over window.
func newRateLimiter(max int, window time.Duration) fiber.Handler {
	storage := memory.New(memory.Config{
		GCInterval: 10 * time.Minute,
	})

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Rate limit exceeded",
				"message":     fmt.Sprintf("Maximum %d requests per %s allowed.", max, window),
				"retry_after": int(window.Seconds()),
			})
		},
		Storage: storage,
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if code >= 500 {
		log.Error().Err(err).Str("path", c.Path()).Msg("Server error")
	}

	return c.Status(code).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}
