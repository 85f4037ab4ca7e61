package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/lifecycle"
	"github.com/deskflow/helpdesk-service/internal/repository"
	"github.com/deskflow/helpdesk-service/internal/sla"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

const (
	maxTitleLength   = 200
	maxCommentLength = 500
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	store        repository.Store
	dispatcher   events.Dispatcher
	triage       *TriageService
	autoTriage   bool
	logger       *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service. Triage is
// only consulted when AutoTriage is set.
type TicketDependencies struct {
	Store        repository.Store
	Dispatcher   events.Dispatcher
	Triage       *TriageService
	AutoTriage   bool
	Logger       *zap.Logger
	StoreTimeout time.Duration
	Now          func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	CategoryID  int64
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// StatusChangeInput is a requested lifecycle move.
type StatusChangeInput struct {
	Status   domain.TicketStatus
	Notes    string
	Evidence []domain.EvidenceImage
}

// RatingInput is a requester's score for a finished ticket.
type RatingInput struct {
	Score   int
	Comment string
}

// TicketListFilter describes listing filters; scoping by role is applied on top.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	CategoryID *int64
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketHistory is the audit trail of one ticket.
type TicketHistory struct {
	StateChanges []domain.StateChange
	Assignments  []domain.Assignment
}

// SLAView pairs a ticket's SLA with its current position against it.
type SLAView struct {
	TicketID int64
	SLA      domain.SLA
	Report   sla.Report
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = systemClock
	}
	return &TicketService{
		store:        deps.Store,
		dispatcher:   deps.Dispatcher,
		triage:       deps.Triage,
		autoTriage:   deps.AutoTriage,
		logger:       logger.Named("tickets"),
		storeTimeout: orTimeout(deps.StoreTimeout),
		now:          now,
	}
}

// CreateTicket opens a PENDING ticket on behalf of principal.
func (s *TicketService) CreateTicket(ctx context.Context, principal domain.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	if principal.Role != domain.RoleClient && principal.Role != domain.RoleAdministrator {
		return nil, apperrors.NewForbidden("only clients and administrators can open tickets")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}
	if len(title) > maxTitleLength {
		return nil, apperrors.NewValidationError("title is too long", map[string]any{"max_length": maxTitleLength})
	}
	if input.CategoryID <= 0 {
		return nil, apperrors.NewValidationError("category_id is required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	now := s.now()
	ticket := &domain.Ticket{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		RequesterID: principal.UserID,
		CategoryID:  input.CategoryID,
		Priority:    priority,
	}
	lifecycle.Open(ticket, now)

	var created *lifecycle.Outcome
	err := inTx(ctx, s.store, s.storeTimeout, func(ctx context.Context, tx repository.Store) error {
		category, err := tx.Categories().Get(ctx, input.CategoryID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError("unknown category", map[string]any{"category_id": input.CategoryID})
		}
		if err != nil {
			return err
		}
		if !category.Active {
			return apperrors.NewValidationError("category is inactive", map[string]any{"category_id": input.CategoryID})
		}

		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		created = lifecycle.Created(ticket, principal.UserID, now)
		if err := tx.History().AppendStateChange(ctx, &created.Record); err != nil {
			return err
		}
		return tx.History().AppendAssignment(ctx, &domain.Assignment{
			TicketID:   ticket.ID,
			Method:     domain.AssignmentMethodPending,
			AssignedAt: now,
			AssignedBy: principal.UserID,
			Rationale:  "awaiting assignment",
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.Int64("ticket_id", ticket.ID),
		zap.Int64("requester_id", ticket.RequesterID),
		zap.String("priority", string(ticket.Priority)),
	)
	s.publish(ctx, events.New(events.EventTicketCreated, ticket.ID, principal.UserID, now, created.Notifications,
		events.TicketCreatedPayload{CategoryID: ticket.CategoryID, Priority: ticket.Priority, Title: ticket.Title}))

	if s.autoTriage && s.triage != nil {
		result, err := s.triage.AutoAssign(ctx, ticket.ID, s.now())
		switch {
		case err != nil:
			s.logger.Warn("automatic triage after creation failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		case result.Success:
			if reloaded, err := s.store.Tickets().Get(ctx, ticket.ID); err == nil {
				ticket = reloaded
			}
		}
	}
	return ticket, nil
}

// ChangeStatus moves a ticket one step along its lifecycle.
func (s *TicketService) ChangeStatus(ctx context.Context, principal domain.Principal, ticketID int64, input StatusChangeInput) (*domain.Ticket, error) {
	if !input.Status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": input.Status})
	}
	if input.Status == domain.TicketStatusAssigned {
		return nil, apperrors.NewValidationError("tickets are assigned through triage", map[string]any{"ticket_id": ticketID})
	}

	now := s.now()
	var (
		ticket  *domain.Ticket
		outcome *lifecycle.Outcome
	)
	err := inTx(ctx, s.store, s.storeTimeout, func(ctx context.Context, tx repository.Store) error {
		var err error
		ticket, err = getTicket(ctx, tx.Tickets(), ticketID, true)
		if err != nil {
			return err
		}
		if err := authorizeStatusChange(principal, ticket, input.Status); err != nil {
			return err
		}

		var policy *domain.SLA
		if category, err := tx.Categories().Get(ctx, ticket.CategoryID); err == nil {
			policy = category.SLA
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		var technicianUserID *int64
		if ticket.TechnicianID != nil {
			tech, err := getTechnician(ctx, tx.Technicians(), *ticket.TechnicianID, false)
			if err != nil {
				return err
			}
			technicianUserID = &tech.UserID
		}

		outcome, err = lifecycle.Apply(ticket, policy, lifecycle.Request{
			To:               input.Status,
			ActorID:          principal.UserID,
			Notes:            input.Notes,
			Evidence:         input.Evidence,
			At:               now,
			TechnicianUserID: technicianUserID,
		})
		if err != nil {
			return err
		}
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		return tx.History().AppendStateChange(ctx, &outcome.Record)
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.Int64("ticket_id", ticket.ID),
		zap.String("from", string(outcome.From)),
		zap.String("to", string(ticket.Status)),
		zap.Int64("actor_id", principal.UserID),
	}
	if outcome.SLASkipped {
		s.logger.Warn("ticket has no SLA, compliance not recorded", fields...)
	} else {
		s.logger.Info("ticket status changed", fields...)
	}
	s.publish(ctx, events.New(events.EventTicketStatusChanged, ticket.ID, principal.UserID, now, outcome.Notifications,
		events.TicketStatusChangedPayload{OldStatus: outcome.From, NewStatus: ticket.Status, Notes: outcome.Record.Notes}))
	return ticket, nil
}

// authorizeStatusChange: administrators act on any ticket, technicians only on
// tickets assigned to them, clients may only close their own resolved ticket.
func authorizeStatusChange(p domain.Principal, ticket *domain.Ticket, to domain.TicketStatus) error {
	switch p.Role {
	case domain.RoleAdministrator:
		return nil
	case domain.RoleTechnician:
		if p.TechnicianID != nil && ticket.AssignedTo(*p.TechnicianID) {
			return nil
		}
		return apperrors.NewForbidden("ticket is not assigned to you")
	case domain.RoleClient:
		if ticket.RequesterID != p.UserID {
			return apperrors.NewForbidden("ticket belongs to another requester")
		}
		if to != domain.TicketStatusClosed {
			return apperrors.NewForbidden("requesters can only close a resolved ticket")
		}
		return nil
	}
	return apperrors.NewForbidden("unknown role")
}

// GetTicket returns a ticket visible to principal.
func (s *TicketService) GetTicket(ctx context.Context, principal domain.Principal, ticketID int64) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := bounded(ctx, s.storeTimeout, func(ctx context.Context) error {
		var err error
		ticket, err = getTicket(ctx, s.store.Tickets(), ticketID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !canView(principal, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// ListTickets lists the tickets principal may see.
func (s *TicketService) ListTickets(ctx context.Context, principal domain.Principal, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		CategoryID: filter.CategoryID,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	switch principal.Role {
	case domain.RoleAdministrator:
	case domain.RoleTechnician:
		if principal.TechnicianID == nil {
			return []domain.Ticket{}, nil
		}
		repoFilter.TechnicianID = principal.TechnicianID
	case domain.RoleClient:
		userID := principal.UserID
		repoFilter.RequesterID = &userID
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}

	var tickets []domain.Ticket
	err := bounded(ctx, s.storeTimeout, func(ctx context.Context) error {
		var err error
		tickets, err = s.store.Tickets().List(ctx, repoFilter)
		return err
	})
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// History returns the state changes and assignment records of a ticket.
func (s *TicketService) History(ctx context.Context, principal domain.Principal, ticketID int64) (*TicketHistory, error) {
	if _, err := s.GetTicket(ctx, principal, ticketID); err != nil {
		return nil, err
	}
	history := &TicketHistory{}
	err := bounded(ctx, s.storeTimeout, func(ctx context.Context) error {
		var err error
		if history.StateChanges, err = s.store.History().StateChanges(ctx, ticketID); err != nil {
			return err
		}
		history.Assignments, err = s.store.History().Assignments(ctx, ticketID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

// SLAStatus reports deadlines and compliance of a ticket at the current time.
func (s *TicketService) SLAStatus(ctx context.Context, principal domain.Principal, ticketID int64) (*SLAView, error) {
	ticket, err := s.GetTicket(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}
	var category *domain.Category
	err = bounded(ctx, s.storeTimeout, func(ctx context.Context) error {
		var err error
		category, err = s.store.Categories().Get(ctx, ticket.CategoryID)
		return err
	})
	if err != nil && !apperrors.HasCode(err, apperrors.CodeNotFound) {
		return nil, err
	}
	if category == nil || category.SLA == nil {
		return nil, apperrors.NewPrecondition("ticket category has no SLA configured", map[string]any{"ticket_id": ticketID})
	}
	clock := sla.NewClock(ticket.CreatedAt, *category.SLA)
	return &SLAView{TicketID: ticket.ID, SLA: *category.SLA, Report: clock.Status(ticket, s.now())}, nil
}

// Rate records the requester's one-time rating of a resolved or closed ticket
// and refreshes the handling technician's average.
func (s *TicketService) Rate(ctx context.Context, principal domain.Principal, ticketID int64, input RatingInput) (*domain.Rating, error) {
	if input.Score < domain.MinRatingScore || input.Score > domain.MaxRatingScore {
		return nil, apperrors.NewValidationError("score must be between 1 and 5", map[string]any{"score": input.Score})
	}
	comment := strings.TrimSpace(input.Comment)
	if len(comment) > maxCommentLength {
		return nil, apperrors.NewValidationError("comment is too long", map[string]any{"max_length": maxCommentLength})
	}

	rating := &domain.Rating{
		TicketID:    ticketID,
		RequesterID: principal.UserID,
		Score:       input.Score,
		Comment:     comment,
		CreatedAt:   s.now(),
	}
	var average float64
	err := inTx(ctx, s.store, s.storeTimeout, func(ctx context.Context, tx repository.Store) error {
		ticket, err := getTicket(ctx, tx.Tickets(), ticketID, true)
		if err != nil {
			return err
		}
		if ticket.RequesterID != principal.UserID {
			return apperrors.NewForbidden("only the requester can rate a ticket")
		}
		if ticket.Status != domain.TicketStatusResolved && ticket.Status != domain.TicketStatusClosed {
			return apperrors.NewPrecondition("only resolved or closed tickets can be rated",
				map[string]any{"ticket_id": ticketID, "status": ticket.Status})
		}
		if ticket.TechnicianID == nil {
			return apperrors.NewPrecondition("ticket has no technician to rate", map[string]any{"ticket_id": ticketID})
		}
		rating.TechnicianID = *ticket.TechnicianID

		if err := tx.Ratings().Create(ctx, rating); err != nil {
			if errors.Is(err, repository.ErrAlreadyRated) {
				return apperrors.NewPrecondition("ticket already rated", map[string]any{"ticket_id": ticketID})
			}
			return err
		}
		average, err = tx.Ratings().TechnicianAverage(ctx, rating.TechnicianID)
		if err != nil {
			return err
		}
		tech, err := getTechnician(ctx, tx.Technicians(), rating.TechnicianID, true)
		if err != nil {
			return err
		}
		tech.AverageRating = math.Round(average*100) / 100
		return tx.Technicians().Update(ctx, tech)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket rated",
		zap.Int64("ticket_id", ticketID),
		zap.Int64("technician_id", rating.TechnicianID),
		zap.Int("score", rating.Score),
		zap.Float64("average_rating", average),
	)
	return rating, nil
}

// Rating returns the rating of a ticket visible to principal.
func (s *TicketService) Rating(ctx context.Context, principal domain.Principal, ticketID int64) (*domain.Rating, error) {
	if _, err := s.GetTicket(ctx, principal, ticketID); err != nil {
		return nil, err
	}
	var rating *domain.Rating
	err := bounded(ctx, s.storeTimeout, func(ctx context.Context) error {
		var err error
		rating, err = s.store.Ratings().GetByTicket(ctx, ticketID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("rating", map[string]any{"ticket_id": ticketID})
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return rating, nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("ticket notifications not dispatched",
			zap.Int64("ticket_id", event.TicketID),
			zap.String("event", string(event.Type)),
			zap.Error(apperrors.NewDependencyError("event dispatch", err)),
		)
	}
}
