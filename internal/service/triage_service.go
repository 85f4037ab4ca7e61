package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/lifecycle"
	"github.com/deskflow/helpdesk-service/internal/observability"
	"github.com/deskflow/helpdesk-service/internal/persistence"
	"github.com/deskflow/helpdesk-service/internal/repository"
	"github.com/deskflow/helpdesk-service/internal/sla"
	"github.com/deskflow/helpdesk-service/internal/triage"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

const batchPageSize = 1000

// Locker grants short-lived exclusive locks. persistence.Redis implements it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error)
}

// AssignmentResult reports the outcome of one assignment attempt.
type AssignmentResult struct {
	TicketID     int64  `json:"ticket_id"`
	Success      bool   `json:"success"`
	TechnicianID *int64 `json:"technician_id,omitempty"`
	Score        *int   `json:"score,omitempty"`
	Rationale    string `json:"rationale,omitempty"`
	Error        string `json:"error,omitempty"`
	Err          error  `json:"-"`
}

// CandidatePreview is the ranked technician list for a ticket, without side effects.
type CandidatePreview struct {
	TicketID         int64                      `json:"ticket_id"`
	Criterion        domain.AssignmentCriterion `json:"criterion"`
	PriorityWeight   int                        `json:"priority_weight"`
	RemainingMinutes int                        `json:"remaining_minutes"`
	Candidates       []triage.Candidate         `json:"candidates"`
}

// TriageService assigns pending tickets to technicians.
type TriageService struct {
	store        repository.Store
	dispatcher   events.Dispatcher
	locker       Locker
	scorer       *triage.Scorer
	logger       *zap.Logger
	metrics      *observability.Metrics
	cfg          config.TriageConfig
	storeTimeout time.Duration
}

// TriageDependencies bundles collaborators. Locker and Metrics are optional.
type TriageDependencies struct {
	Store        repository.Store
	Dispatcher   events.Dispatcher
	Locker       Locker
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Config       config.TriageConfig
	StoreTimeout time.Duration
}

// NewTriageService creates the service.
func NewTriageService(deps TriageDependencies) *TriageService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TriageService{
		store:        deps.Store,
		dispatcher:   deps.Dispatcher,
		locker:       deps.Locker,
		scorer:       triage.NewScorer(deps.Config.HonorCategoryCriterion),
		logger:       logger.Named("triage"),
		metrics:      deps.Metrics,
		cfg:          deps.Config,
		storeTimeout: orTimeout(deps.StoreTimeout),
	}
}

// AutoAssign picks the best technician for a PENDING ticket and assigns it.
// Business rule failures come back as an unsuccessful result with a nil error;
// the error is reserved for infrastructure failures.
func (s *TriageService) AutoAssign(ctx context.Context, ticketID int64, now time.Time) (AssignmentResult, error) {
	result := AssignmentResult{TicketID: ticketID}

	release, err := s.lock(ctx, ticketID)
	if err != nil {
		return s.failed(result, err), nil
	}
	defer release(context.WithoutCancel(ctx))

	var (
		committed *committedAssignment
		selection triage.Selection
	)
	err = inTx(ctx, s.store, s.storeTimeout, func(ctx context.Context, tx repository.Store) error {
		ticket, err := getTicket(ctx, tx.Tickets(), ticketID, true)
		if err != nil {
			return err
		}
		if ticket.Status != domain.TicketStatusPending {
			return apperrors.NewPrecondition(
				fmt.Sprintf("ticket is %s, only PENDING tickets can be assigned automatically", ticket.Status),
				map[string]any{"ticket_id": ticketID, "status": ticket.Status},
			)
		}

		category, technicians, err := s.eligibleTechnicians(ctx, tx, ticket)
		if err != nil {
			return err
		}

		var ok bool
		selection, ok = s.scorer.Select(triage.Input{
			Ticket:              *ticket,
			SLA:                 *category.SLA,
			Now:                 now,
			Technicians:         technicians,
			RequiredSpecialties: category.SpecialtyIDs,
			Criterion:           category.Criterion,
		})
		if !ok {
			return noTechnician(ticketID)
		}

		score := selection.Score
		committed, err = s.commit(ctx, tx, assignmentRequest{
			ticket:       ticket,
			policy:       category.SLA,
			technicianID: selection.Technician.ID,
			method:       domain.AssignmentMethodAutomatic,
			score:        &score,
			rationale:    selection.Rationale,
			actorID:      s.cfg.SystemUserID,
			now:          now,
		})
		return err
	})
	if err != nil {
		if isBusinessFailure(err) {
			return s.failed(result, err), nil
		}
		s.metrics.RecordTriage("error")
		s.logger.Error("automatic assignment failed", zap.Int64("ticket_id", ticketID), zap.Error(err))
		result.Error = err.Error()
		result.Err = err
		return result, err
	}

	s.publish(ctx, committed, now)
	s.metrics.RecordTriage("assigned")
	s.logger.Info("ticket assigned automatically",
		zap.Int64("ticket_id", ticketID),
		zap.Int64("technician_id", selection.Technician.ID),
		zap.Int("score", selection.Score),
		zap.Int("remaining_minutes", selection.RemainingMinutes),
		zap.String("criterion", string(selection.Criterion)),
	)

	technicianID := selection.Technician.ID
	score := selection.Score
	result.Success = true
	result.TechnicianID = &technicianID
	result.Score = &score
	result.Rationale = selection.Rationale
	return result, nil
}

// BatchAutoAssign runs AutoAssign over every PENDING ticket, oldest first.
// A failing ticket is reported in its own result and never stops the batch.
func (s *TriageService) BatchAutoAssign(ctx context.Context, now time.Time) ([]AssignmentResult, error) {
	pending, err := s.pendingTickets(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]AssignmentResult, len(pending))
	var g errgroup.Group
	g.SetLimit(max(1, s.cfg.BatchConcurrency))
	for i, ticket := range pending {
		i, ticket := i, ticket
		g.Go(func() error {
			res, err := s.AutoAssign(ctx, ticket.ID, now)
			if err != nil {
				res.Success = false
				res.Error = err.Error()
				res.Err = err
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	assigned := 0
	for _, res := range results {
		if res.Success {
			assigned++
		}
	}
	s.logger.Info("batch assignment finished", zap.Int("pending", len(pending)), zap.Int("assigned", assigned))
	return results, nil
}

// pendingTickets pages through every PENDING ticket, oldest first. The whole
// set is read before any assignment so the pages do not shift underneath.
func (s *TriageService) pendingTickets(ctx context.Context) ([]domain.Ticket, error) {
	var pending []domain.Ticket
	for offset := 0; ; offset += batchPageSize {
		var page []domain.Ticket
		err := bounded(ctx, s.storeTimeout, func(ctx context.Context) error {
			var err error
			page, err = s.store.Tickets().List(ctx, repository.TicketFilter{
				Statuses:    []domain.TicketStatus{domain.TicketStatusPending},
				OldestFirst: true,
				Limit:       batchPageSize,
				Offset:      offset,
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		pending = append(pending, page...)
		if len(page) < batchPageSize {
			return pending, nil
		}
	}
}

// ManualAssign lets an administrator assign a PENDING ticket to a chosen technician.
func (s *TriageService) ManualAssign(ctx context.Context, actor domain.Principal, ticketID, technicianID int64, now time.Time) (AssignmentResult, error) {
	result := AssignmentResult{TicketID: ticketID}
	if err := requireAdmin(actor); err != nil {
		return s.failed(result, err), nil
	}

	release, err := s.lock(ctx, ticketID)
	if err != nil {
		return s.failed(result, err), nil
	}
	defer release(context.WithoutCancel(ctx))

	var committed *committedAssignment
	err = inTx(ctx, s.store, s.storeTimeout, func(ctx context.Context, tx repository.Store) error {
		ticket, err := getTicket(ctx, tx.Tickets(), ticketID, true)
		if err != nil {
			return err
		}
		if ticket.Status != domain.TicketStatusPending {
			return apperrors.NewPrecondition(
				fmt.Sprintf("ticket is %s, only PENDING tickets can be assigned", ticket.Status),
				map[string]any{"ticket_id": ticketID, "status": ticket.Status},
			)
		}
		var policy *domain.SLA
		if category, err := tx.Categories().Get(ctx, ticket.CategoryID); err == nil {
			policy = category.SLA
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		committed, err = s.commit(ctx, tx, assignmentRequest{
			ticket:       ticket,
			policy:       policy,
			technicianID: technicianID,
			method:       domain.AssignmentMethodManual,
			rationale:    fmt.Sprintf("manually assigned by user %d", actor.UserID),
			actorID:      actor.UserID,
			now:          now,
		})
		return err
	})
	if err != nil {
		if isBusinessFailure(err) {
			return s.failed(result, err), nil
		}
		s.logger.Error("manual assignment failed", zap.Int64("ticket_id", ticketID), zap.Error(err))
		result.Error = err.Error()
		result.Err = err
		return result, err
	}

	s.publish(ctx, committed, now)
	s.metrics.RecordTriage("assigned_manual")
	s.logger.Info("ticket assigned manually",
		zap.Int64("ticket_id", ticketID),
		zap.Int64("technician_id", technicianID),
		zap.Int64("actor_id", actor.UserID),
	)

	result.Success = true
	result.TechnicianID = &technicianID
	result.Rationale = committed.assignment.Rationale
	return result, nil
}

// Candidates ranks the eligible technicians for a ticket without assigning it.
func (s *TriageService) Candidates(ctx context.Context, actor domain.Principal, ticketID int64, now time.Time) (*CandidatePreview, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var preview *CandidatePreview
	err := bounded(ctx, s.storeTimeout, func(ctx context.Context) error {
		ticket, err := getTicket(ctx, s.store.Tickets(), ticketID, false)
		if err != nil {
			return err
		}
		category, technicians, err := s.eligibleTechnicians(ctx, s.store, ticket)
		if err != nil {
			return err
		}
		in := triage.Input{
			Ticket:              *ticket,
			SLA:                 *category.SLA,
			Now:                 now,
			Technicians:         technicians,
			RequiredSpecialties: category.SpecialtyIDs,
			Criterion:           category.Criterion,
		}
		preview = &CandidatePreview{
			TicketID:         ticketID,
			Criterion:        s.scorer.Criterion(category.Criterion),
			PriorityWeight:   triage.PriorityWeight(ticket.Priority),
			RemainingMinutes: remainingMinutes(ticket, category.SLA, now),
			Candidates:       s.scorer.Rank(in),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return preview, nil
}

// eligibleTechnicians loads the category and filters technicians for ticket.
// The category is guaranteed to carry an SLA and at least one specialty.
func (s *TriageService) eligibleTechnicians(ctx context.Context, store repository.Store, ticket *domain.Ticket) (*domain.Category, []domain.Technician, error) {
	category, err := store.Categories().Get(ctx, ticket.CategoryID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, apperrors.NewPrecondition("ticket category not found", map[string]any{"ticket_id": ticket.ID, "category_id": ticket.CategoryID})
	}
	if err != nil {
		return nil, nil, err
	}
	if category.SLA == nil {
		return nil, nil, apperrors.NewPrecondition("ticket category has no SLA configured", map[string]any{"ticket_id": ticket.ID, "category_id": category.ID})
	}
	if len(category.SpecialtyIDs) == 0 {
		return nil, nil, apperrors.NewPrecondition("ticket category has no required specialties", map[string]any{"ticket_id": ticket.ID, "category_id": category.ID})
	}

	available := domain.AvailabilityAvailable
	technicians, err := store.Technicians().List(ctx, repository.TechnicianFilter{
		Availability: &available,
		SpecialtyIDs: category.SpecialtyIDs,
	})
	if err != nil {
		return nil, nil, err
	}
	eligible := triage.Eligible(technicians, category.SpecialtyIDs)
	if len(eligible) == 0 {
		return nil, nil, noTechnician(ticket.ID)
	}
	return category, eligible, nil
}

type assignmentRequest struct {
	ticket       *domain.Ticket
	policy       *domain.SLA
	technicianID int64
	method       domain.AssignmentMethod
	score        *int
	rationale    string
	actorID      int64
	now          time.Time
}

type committedAssignment struct {
	ticket     *domain.Ticket
	technician *domain.Technician
	assignment domain.Assignment
	outcome    *lifecycle.Outcome
}

// commit moves the ticket to ASSIGNED, appends the audit records and bumps the
// technician workload, all on tx.
func (s *TriageService) commit(ctx context.Context, tx repository.Store, req assignmentRequest) (*committedAssignment, error) {
	tech, err := getTechnician(ctx, tx.Technicians(), req.technicianID, true)
	if err != nil {
		return nil, err
	}

	notes := fmt.Sprintf("assigned to %s (%s)", tech.Name, req.method)
	if req.score != nil {
		notes = fmt.Sprintf("automatically assigned to %s with score %d", tech.Name, *req.score)
	}
	outcome, err := lifecycle.Apply(req.ticket, req.policy, lifecycle.Request{
		To:               domain.TicketStatusAssigned,
		ActorID:          req.actorID,
		Notes:            notes,
		At:               req.now,
		System:           true,
		TechnicianID:     &tech.ID,
		TechnicianUserID: &tech.UserID,
	})
	if err != nil {
		return nil, err
	}
	if outcome.SLASkipped {
		s.logger.Warn("ticket has no SLA, compliance not recorded", zap.Int64("ticket_id", req.ticket.ID))
	}
	if err := tx.Tickets().Update(ctx, req.ticket); err != nil {
		return nil, err
	}

	assignment := domain.Assignment{
		TicketID:     req.ticket.ID,
		TechnicianID: &tech.ID,
		Method:       req.method,
		AssignedAt:   req.now,
		AssignedBy:   req.actorID,
		Score:        req.score,
		Rationale:    req.rationale,
	}
	if err := tx.History().AppendAssignment(ctx, &assignment); err != nil {
		return nil, err
	}
	if err := tx.History().AppendStateChange(ctx, &outcome.Record); err != nil {
		return nil, err
	}

	tech.Workload++
	if err := tx.Technicians().Update(ctx, tech); err != nil {
		return nil, err
	}

	return &committedAssignment{ticket: req.ticket, technician: tech, assignment: assignment, outcome: outcome}, nil
}

func (s *TriageService) publish(ctx context.Context, c *committedAssignment, now time.Time) {
	if s.dispatcher == nil || c == nil {
		return
	}
	err := s.dispatcher.Publish(ctx, events.New(
		events.EventTicketAssigned,
		c.ticket.ID,
		c.assignment.AssignedBy,
		now,
		c.outcome.Notifications,
		events.TicketAssignedPayload{TechnicianID: c.technician.ID, Method: c.assignment.Method, Score: c.assignment.Score},
	))
	if err != nil {
		s.logger.Warn("assignment notifications not dispatched",
			zap.Int64("ticket_id", c.ticket.ID),
			zap.Error(apperrors.NewDependencyError("event dispatch", err)),
		)
	}
}

// lock takes the per-ticket triage lock. An unreachable Redis is tolerated:
// the row lock taken inside the transaction still serializes writers.
func (s *TriageService) lock(ctx context.Context, ticketID int64) (func(context.Context), error) {
	noop := func(context.Context) {}
	if s.locker == nil {
		return noop, nil
	}
	release, err := s.locker.TryLock(ctx, fmt.Sprintf("triage:ticket:%d", ticketID), s.cfg.LockTTL())
	switch {
	case err == nil:
		return release, nil
	case errors.Is(err, persistence.ErrLockHeld):
		return nil, apperrors.NewPrecondition("assignment already in progress for this ticket", map[string]any{"ticket_id": ticketID})
	}
	s.logger.Warn("triage lock unavailable, relying on row lock", zap.Int64("ticket_id", ticketID), zap.Error(err))
	return noop, nil
}

func (s *TriageService) failed(result AssignmentResult, err error) AssignmentResult {
	s.metrics.RecordTriage("rejected")
	s.logger.Info("assignment rejected", zap.Int64("ticket_id", result.TicketID), zap.Error(err))
	result.Success = false
	result.Error = err.Error()
	result.Err = err
	return result
}

func noTechnician(ticketID int64) error {
	return apperrors.NewPrecondition("no technician available", map[string]any{"ticket_id": ticketID})
}

func isBusinessFailure(err error) bool {
	for _, code := range []string{
		apperrors.CodeNotFound,
		apperrors.CodePrecondition,
		apperrors.CodeValidation,
		apperrors.CodeInvalidTransition,
		apperrors.CodeConflict,
		apperrors.CodeForbidden,
	} {
		if apperrors.HasCode(err, code) {
			return true
		}
	}
	return false
}

func remainingMinutes(ticket *domain.Ticket, policy *domain.SLA, now time.Time) int {
	return sla.NewClock(ticket.CreatedAt, *policy).RemainingMinutes(now)
}
