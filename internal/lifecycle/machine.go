// Package lifecycle validates and applies ticket status transitions.
package lifecycle

import (
	"strings"
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/sla"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// Next returns the statuses reachable from current in one step.
func Next(current domain.TicketStatus) []domain.TicketStatus {
	switch current {
	case domain.TicketStatusPending:
		return []domain.TicketStatus{domain.TicketStatusAssigned}
	case domain.TicketStatusAssigned:
		return []domain.TicketStatus{domain.TicketStatusInProgress}
	case domain.TicketStatusInProgress:
		return []domain.TicketStatus{domain.TicketStatusResolved}
	case domain.TicketStatusResolved:
		return []domain.TicketStatus{domain.TicketStatusClosed}
	case domain.TicketStatusClosed:
		return nil
	}
	return nil
}

// CanTransition reports whether current may move to next.
func CanTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range Next(current) {
		if candidate == next {
			return true
		}
	}
	return false
}

// Request describes a status change.
type Request struct {
	To       domain.TicketStatus
	ActorID  int64
	Notes    string
	Evidence []domain.EvidenceImage
	At       time.Time

	// System marks changes initiated by the service itself (triage), which
	// carry a generated note and no evidence.
	System bool

	// TechnicianID must be set when moving to ASSIGNED.
	TechnicianID *int64
	// TechnicianUserID addresses the technician notification, when known.
	TechnicianUserID *int64
}

// Outcome is what a successful transition produced. The caller persists
// Record and delivers Notifications once its transaction has committed.
type Outcome struct {
	From          domain.TicketStatus
	Record        domain.StateChange
	Notifications []domain.NotificationIntent
	SLASkipped    bool
}

// Open initializes a new ticket as PENDING, the only initial state.
func Open(t *domain.Ticket, at time.Time) {
	t.Status = domain.TicketStatusPending
	t.TechnicianID = nil
	if t.CreatedAt.IsZero() {
		t.CreatedAt = at
	}
}

// Created returns the system-generated creation record for a persisted ticket.
func Created(t *domain.Ticket, actorID int64, at time.Time) *Outcome {
	return &Outcome{
		Record: domain.StateChange{
			TicketID:  t.ID,
			ToStatus:  domain.TicketStatusPending,
			ActorID:   actorID,
			Notes:     "ticket created by requester",
			ChangedAt: at,
		},
		Notifications: Notifications(t, domain.TicketStatusPending, nil),
	}
}

// Apply validates req against t and, when valid, mutates t in place. policy may
// be nil when the ticket's category has no SLA; compliance stamping is then
// skipped. Validation failures leave t untouched.
func Apply(t *domain.Ticket, policy *domain.SLA, req Request) (*Outcome, error) {
	from := t.Status
	if !CanTransition(from, req.To) {
		return nil, apperrors.NewInvalidTransition(string(from), string(req.To))
	}
	notes := strings.TrimSpace(req.Notes)
	if !req.System {
		if notes == "" {
			return nil, apperrors.NewValidationError("notes are required for a status change", map[string]any{"ticket_id": t.ID})
		}
		if len(req.Evidence) == 0 {
			return nil, apperrors.NewValidationError("at least one evidence image is required for a status change", map[string]any{"ticket_id": t.ID})
		}
	}
	if req.To == domain.TicketStatusAssigned && req.TechnicianID == nil {
		return nil, apperrors.NewValidationError("a technician is required to assign a ticket", map[string]any{"ticket_id": t.ID})
	}

	t.Status = req.To
	if req.To == domain.TicketStatusAssigned {
		technicianID := *req.TechnicianID
		t.TechnicianID = &technicianID
	}

	outcome := &Outcome{From: from}
	if policy != nil {
		clock := sla.NewClock(t.CreatedAt, *policy)
		if req.To != domain.TicketStatusPending {
			clock.StampFirstResponse(t, req.At)
		}
		if req.To == domain.TicketStatusResolved {
			clock.StampResolution(t, req.At)
		}
		if req.To == domain.TicketStatusClosed {
			// closing without passing through RESOLVED still records a resolution
			clock.StampResolution(t, req.At)
		}
	} else {
		outcome.SLASkipped = true
	}
	if req.To == domain.TicketStatusClosed {
		sla.StampClosure(t, req.At)
	}

	previous := from
	outcome.Record = domain.StateChange{
		TicketID:   t.ID,
		FromStatus: &previous,
		ToStatus:   req.To,
		ActorID:    req.ActorID,
		Notes:      notes,
		ChangedAt:  req.At,
		Evidence:   req.Evidence,
	}
	outcome.Notifications = Notifications(t, req.To, req.TechnicianUserID)
	return outcome, nil
}
