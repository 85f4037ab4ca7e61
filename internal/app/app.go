// Package app wires configuration, storage and services into one container
// shared by the HTTP server and the triagectl CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/auth"
	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/observability"
	"github.com/deskflow/helpdesk-service/internal/persistence"
	"github.com/deskflow/helpdesk-service/internal/repository"
	"github.com/deskflow/helpdesk-service/internal/service"
	"github.com/deskflow/helpdesk-service/internal/worker"
)

// Container holds the long-lived collaborators of the process.
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Postgres      *persistence.Postgres
	Redis         *persistence.Redis
	Store         repository.Store
	Dispatcher    events.Dispatcher
	Tokens        *auth.TokenManager
	Tickets       *service.TicketService
	Triage        *service.TriageService
	Technicians   *service.TechnicianService
	Notifications *service.NotificationService
}

// New connects to the configured backends and builds every service. Without
// a Postgres DSN the process runs on an in-memory store seeded with a small
// demo catalog.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{
		Config:     cfg,
		Logger:     logger,
		Metrics:    observability.NewMetrics(),
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Tokens:     auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.Postgres = pg

	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		c.Store = repository.NewStore(pg.Pool)
	} else {
		mem := repository.NewMemoryStore()
		seedDemo(mem)
		c.Store = mem
		logger.Warn("using in-memory store; data is lost on exit")
	}

	var (
		locker    service.Locker
		publisher service.Publisher
	)
	if cfg.Redis.Addr != "" {
		c.Redis = persistence.NewRedis(cfg.Redis, logger)
		locker = c.Redis
		publisher = c.Redis
	}

	storeTimeout := cfg.App.StoreCallTimeout()
	c.Triage = service.NewTriageService(service.TriageDependencies{
		Store:        c.Store,
		Dispatcher:   c.Dispatcher,
		Locker:       locker,
		Logger:       logger,
		Metrics:      c.Metrics,
		Config:       cfg.Triage,
		StoreTimeout: storeTimeout,
	})
	c.Tickets = service.NewTicketService(service.TicketDependencies{
		Store:        c.Store,
		Dispatcher:   c.Dispatcher,
		Triage:       c.Triage,
		AutoTriage:   cfg.Triage.AutoOnCreate,
		Logger:       logger,
		StoreTimeout: storeTimeout,
	})
	c.Technicians = service.NewTechnicianService(c.Store, logger, storeTimeout)
	c.Notifications = service.NewNotificationService(service.NotificationDependencies{
		Dispatcher:   c.Dispatcher,
		Store:        c.Store,
		Publisher:    publisher,
		Logger:       logger,
		Config:       cfg.Notification,
		StoreTimeout: storeTimeout,
	})
	c.Notifications.RegisterHandlers()

	return c, nil
}

// TriageWorker returns the periodic assignment worker; it is inert when the
// configured interval is zero.
func (c *Container) TriageWorker() *worker.TriageWorker {
	return worker.NewTriageWorker(c.Triage, c.Config.Triage.BatchInterval(), c.Logger)
}

// Close releases backend connections.
func (c *Container) Close() {
	if c.Redis != nil {
		c.Redis.Close()
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}
}

func seedDemo(store *repository.MemoryStore) {
	hardware := int64(1)
	network := int64(2)
	store.PutCategory(domain.Category{
		Name: "Hardware",
		SLA: &domain.SLA{
			ID:                1,
			Name:              "Standard",
			ResponseMinutes:   60,
			ResolutionMinutes: 120,
			Active:            true,
		},
		SLAID:        1,
		SpecialtyIDs: []int64{hardware},
		Criterion:    domain.CriterionPriorityScore,
		Active:       true,
	})
	store.PutCategory(domain.Category{
		Name: "Network",
		SLA: &domain.SLA{
			ID:                2,
			Name:              "Urgent",
			ResponseMinutes:   15,
			ResolutionMinutes: 60,
			Active:            true,
		},
		SLAID:        2,
		SpecialtyIDs: []int64{network},
		Criterion:    domain.CriterionLeastLoad,
		Active:       true,
	})
	store.PutTechnician(domain.Technician{
		UserID:        100,
		Name:          "Ana",
		Availability:  domain.AvailabilityAvailable,
		AverageRating: 4.5,
		SpecialtyIDs:  []int64{hardware, network},
	})
	store.PutTechnician(domain.Technician{
		UserID:        101,
		Name:          "Luis",
		Availability:  domain.AvailabilityAvailable,
		AverageRating: 4.0,
		SpecialtyIDs:  []int64{hardware},
	})
}
