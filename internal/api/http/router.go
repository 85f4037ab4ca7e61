package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk-service/internal/api/http/handlers"
	"github.com/deskflow/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Triage         *handlers.TriageHandler
	Technicians    *handlers.TechniciansHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authn := cfg.AuthMiddleware.Handle

	tickets := app.Group("/tickets", authn)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/sla", cfg.Tickets.SLAStatus)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Post("/:id/status", cfg.Tickets.ChangeStatus)
	tickets.Get("/:id/rating", cfg.Tickets.Rating)
	tickets.Post("/:id/rating", cfg.Tickets.Rate)

	triage := app.Group("/triage", authn, auth.RequireAdmin())
	triage.Post("/pending", cfg.Triage.AssignPending)
	triage.Post("/tickets/:id/auto", cfg.Triage.AutoAssign)
	triage.Post("/tickets/:id/manual", cfg.Triage.ManualAssign)
	triage.Get("/tickets/:id/candidates", cfg.Triage.Candidates)

	technicians := app.Group("/technicians", authn, auth.RequireAdmin())
	technicians.Get("/", cfg.Technicians.List)
	technicians.Get("/:id", cfg.Technicians.Get)
	technicians.Post("/:id/workload/decrement", cfg.Technicians.DecrementWorkload)
	technicians.Put("/:id/availability", cfg.Technicians.SetAvailability)

	notifications := app.Group("/notifications", authn)
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/pending-count", cfg.Notifications.PendingCount)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)
}
