package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/hifz-api/internal/config"
	"github.com/noah-isme/hifz-api/internal/handler"
	"github.com/noah-isme/hifz-api/internal/middleware"
	"github.com/noah-isme/hifz-api/internal/observability"
	"github.com/noah-isme/hifz-api/internal/policy"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler   *handler.AssignmentHandler
	HomeworkHandler     *handler.HomeworkHandler
	TargetHandler       *handler.TargetHandler
	NotificationHandler *handler.NotificationHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	// One limiter instance per concern so the budget is shared across its routes.
	transitions := middleware.RateLimit("transitions", cfg.RateLimitMax, window)
	uploads := middleware.RateLimit("attachments", cfg.RateLimitMax, window)

	secured := api.Group("", jwtMiddleware, middleware.RequireSubject())

	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(secured.Group("/assignments"), transitions,
			middleware.RequireRole(policy.RoleStudent), uploads)
	}

	if deps.HomeworkHandler != nil {
		deps.HomeworkHandler.Register(secured.Group("/homework"), transitions)
	}

	if deps.TargetHandler != nil {
		deps.TargetHandler.Register(secured.Group("/targets"), transitions)
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(secured.Group("/notifications"))
	}
}
