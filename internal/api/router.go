// Package api is the HTTP surface used by other services to trigger jobs.
package api

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
	"go.uber.org/zap"
)

type Config struct {
	SecretKey      string
	Posts          *handlers.PostHandler
	Health         *handlers.HealthHandler
	MetricsHandler http.Handler
	Logger         *zap.SugaredLogger
	// AccessLog enables fiber's request logger.
	AccessLog bool
}

func NewApp(cfg Config) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    64 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			cfg.Logger.Errorw("request failed", "path", c.Path(), "status", code, "error", err)
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	if cfg.AccessLog {
		app.Use(logger.New())
	}

	app.Get("/healthz", cfg.Health.Healthz)
	if cfg.MetricsHandler != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.MetricsHandler))
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.SecretKey, cfg.Logger)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	api.Post("/posts/:id/publish", cfg.Posts.Publish)
	api.Post("/posts/:id/metrics", cfg.Posts.CollectMetrics)
	api.Get("/posts/:id/attempts", cfg.Posts.ListAttempts)
	api.Post("/accounts/:id/analytics", cfg.Posts.AccountAnalytics)
	api.Post("/maintenance/refresh-tokens", cfg.Posts.RefreshTokens)

	return app
}
