package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
)

// Event represents a domain event emitted by services after their
// transaction committed.
type Event struct {
	ID            string                      `json:"id"`
	Type          EventType                   `json:"type"`
	TicketID      int64                       `json:"ticket_id"`
	ActorID       int64                       `json:"actor_id"`
	Timestamp     time.Time                   `json:"timestamp"`
	Notifications []domain.NotificationIntent `json:"-"`
	Payload       interface{}                 `json:"payload"`
}

// New stamps an event with a fresh id.
func New(eventType EventType, ticketID, actorID int64, at time.Time, intents []domain.NotificationIntent, payload interface{}) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		TicketID:      ticketID,
		ActorID:       actorID,
		Timestamp:     at,
		Notifications: intents,
		Payload:       payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CategoryID int64                 `json:"category_id"`
	Priority   domain.TicketPriority `json:"priority"`
	Title      string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Notes     string              `json:"notes,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	TechnicianID int64                   `json:"technician_id"`
	Method       domain.AssignmentMethod `json:"method"`
	Score        *int                    `json:"score,omitempty"`
}
