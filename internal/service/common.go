package service

import (
	"context"
	"errors"
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/repository"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

const defaultStoreTimeout = 5 * time.Second

// storeError translates repository failures into domain errors.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict("record was modified concurrently, retry the operation", nil)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewUnavailable(err)
	}
	return apperrors.MapError(err)
}

// inTx runs fn in one transaction bounded by timeout.
func inTx(ctx context.Context, store repository.Store, timeout time.Duration, fn func(context.Context, repository.Store) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := store.WithTx(ctx, func(tx repository.Store) error {
		return fn(ctx, tx)
	})
	return storeError(err)
}

// bounded runs a read-only fn with timeout applied.
func bounded(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return storeError(fn(ctx))
}

func ticketNotFound(id int64) error {
	return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
}

func technicianNotFound(id int64) error {
	return apperrors.NewNotFound("technician", map[string]any{"technician_id": id})
}

func getTicket(ctx context.Context, repo repository.TicketRepository, id int64, forUpdate bool) (*domain.Ticket, error) {
	var (
		ticket *domain.Ticket
		err    error
	)
	if forUpdate {
		ticket, err = repo.GetForUpdate(ctx, id)
	} else {
		ticket, err = repo.Get(ctx, id)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ticketNotFound(id)
	}
	return ticket, err
}

func getTechnician(ctx context.Context, repo repository.TechnicianRepository, id int64, forUpdate bool) (*domain.Technician, error) {
	var (
		tech *domain.Technician
		err  error
	)
	if forUpdate {
		tech, err = repo.GetForUpdate(ctx, id)
	} else {
		tech, err = repo.Get(ctx, id)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, technicianNotFound(id)
	}
	return tech, err
}

// canView reports whether principal may read ticket.
func canView(p domain.Principal, ticket *domain.Ticket) bool {
	switch p.Role {
	case domain.RoleAdministrator:
		return true
	case domain.RoleTechnician:
		return p.TechnicianID != nil && ticket.AssignedTo(*p.TechnicianID)
	case domain.RoleClient:
		return ticket.RequesterID == p.UserID
	}
	return false
}

func requireAdmin(p domain.Principal) error {
	if !p.IsAdmin() {
		return apperrors.NewForbidden("administrator role required")
	}
	return nil
}

func orTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultStoreTimeout
	}
	return d
}

func systemClock() time.Time {
	return time.Now().UTC()
}
