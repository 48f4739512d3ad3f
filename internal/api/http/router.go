package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Triage         *handlers.TriageHandler
	External       *handlers.ExternalHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireRole())
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Tickets.DeleteTicket)
	tickets.Get("/:id/status-history", cfg.Tickets.StatusHistory)

	staffOnly := auth.RequireRole(domain.RoleAgent, domain.RoleAdmin)
	tickets.Post("/:id/triage-suggest", staffOnly, cfg.Triage.Suggest)
	tickets.Post("/:id/triage-accept", staffOnly, cfg.Triage.Accept)
	tickets.Post("/:id/triage-reject", staffOnly, cfg.Triage.Reject)

	app.Get("/external-data", cfg.AuthMiddleware.Handle, auth.RequireRole(), cfg.External.CurrentWeather)

	externalUsers := app.Group("/external-users", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	externalUsers.Get("", cfg.External.ListUsers)
	externalUsers.Post("/sync", cfg.External.SyncUsers)
}
