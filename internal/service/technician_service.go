package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/repository"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// TechnicianService manages technician workload and availability.
type TechnicianService struct {
	store        repository.Store
	logger       *zap.Logger
	storeTimeout time.Duration
}

// NewTechnicianService creates the service.
func NewTechnicianService(store repository.Store, logger *zap.Logger, storeTimeout time.Duration) *TechnicianService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TechnicianService{store: store, logger: logger.Named("technicians"), storeTimeout: orTimeout(storeTimeout)}
}

// List returns every technician.
func (s *TechnicianService) List(ctx context.Context, actor domain.Principal) ([]domain.Technician, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var technicians []domain.Technician
	err := bounded(ctx, s.storeTimeout, func(ctx context.Context) error {
		var err error
		technicians, err = s.store.Technicians().List(ctx, repository.TechnicianFilter{})
		return err
	})
	if err != nil {
		return nil, err
	}
	if technicians == nil {
		technicians = []domain.Technician{}
	}
	return technicians, nil
}

// Get returns one technician to an administrator.
func (s *TechnicianService) Get(ctx context.Context, actor domain.Principal, id int64) (*domain.Technician, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var tech *domain.Technician
	err := bounded(ctx, s.storeTimeout, func(ctx context.Context) error {
		var err error
		tech, err = getTechnician(ctx, s.store.Technicians(), id, false)
		return err
	})
	return tech, err
}

// ForUser resolves the technician profile linked to a user account. It backs
// token minting, where the operator is trusted.
func (s *TechnicianService) ForUser(ctx context.Context, userID int64) (*domain.Technician, error) {
	var tech *domain.Technician
	err := bounded(ctx, s.storeTimeout, func(ctx context.Context) error {
		var err error
		tech, err = s.store.Technicians().GetByUserID(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("technician", map[string]any{"user_id": userID})
		}
		return err
	})
	return tech, err
}

// DecrementWorkload lowers the technician's active ticket count by one. The
// counter never drops below zero.
func (s *TechnicianService) DecrementWorkload(ctx context.Context, actor domain.Principal, id int64) (*domain.Technician, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var tech *domain.Technician
	err := inTx(ctx, s.store, s.storeTimeout, func(ctx context.Context, tx repository.Store) error {
		var err error
		tech, err = getTechnician(ctx, tx.Technicians(), id, true)
		if err != nil {
			return err
		}
		if tech.Workload == 0 {
			return nil
		}
		tech.Workload--
		return tx.Technicians().Update(ctx, tech)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("technician workload decremented", zap.Int64("technician_id", id), zap.Int("workload", tech.Workload))
	return tech, nil
}

// SetAvailability toggles whether the technician can receive new tickets.
func (s *TechnicianService) SetAvailability(ctx context.Context, actor domain.Principal, id int64, availability domain.Availability) (*domain.Technician, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var tech *domain.Technician
	err := inTx(ctx, s.store, s.storeTimeout, func(ctx context.Context, tx repository.Store) error {
		var err error
		tech, err = getTechnician(ctx, tx.Technicians(), id, true)
		if err != nil {
			return err
		}
		if tech.Availability == availability {
			return nil
		}
		tech.Availability = availability
		return tx.Technicians().Update(ctx, tech)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("technician availability updated", zap.Int64("technician_id", id), zap.String("availability", string(availability)))
	return tech, nil
}
