package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/returnflow/internal/api/http/handlers"
	"github.com/spec-kit/returnflow/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Sessions       *handlers.SessionsHandler
	Returns        *handlers.ReturnsHandler
	AuthMiddleware *auth.AuthMiddleware
	TurnLimiter    *TurnLimiter
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	sessions := app.Group("/sessions")
	sessions.Post("", cfg.Sessions.Start)
	sessions.Get("/:id", cfg.Sessions.Get)
	sessions.Delete("/:id", cfg.Sessions.End)
	sessions.Post("/:id/identify", cfg.Sessions.Identify)
	sessions.Post("/:id/turns", cfg.TurnLimiter.Handle, cfg.Sessions.Turn)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(auth.RoleAgent, auth.RoleSupervisor))
	admin.Get("/returns/:id", cfg.Returns.Get)
	admin.Get("/returns/:id/history", cfg.Returns.History)
	admin.Post("/returns/:id/status", cfg.Returns.UpdateStatus)
}
