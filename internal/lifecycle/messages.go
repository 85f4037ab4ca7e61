package lifecycle

import (
	"fmt"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// RequesterMessage is the requester-facing text for a ticket entering status.
func RequesterMessage(t *domain.Ticket, status domain.TicketStatus) string {
	switch status {
	case domain.TicketStatusPending:
		return fmt.Sprintf("Your ticket #%d '%s' was created and is pending assignment", t.ID, t.Title)
	case domain.TicketStatusAssigned:
		return fmt.Sprintf("Your ticket #%d '%s' was assigned to a technician", t.ID, t.Title)
	case domain.TicketStatusInProgress:
		return fmt.Sprintf("Your ticket #%d '%s' is being worked on", t.ID, t.Title)
	case domain.TicketStatusResolved:
		return fmt.Sprintf("Your ticket #%d '%s' was resolved, please verify the solution", t.ID, t.Title)
	case domain.TicketStatusClosed:
		return fmt.Sprintf("Your ticket #%d '%s' was closed", t.ID, t.Title)
	}
	return fmt.Sprintf("Your ticket #%d '%s' changed to %s", t.ID, t.Title, status)
}

// TechnicianMessage is the technician-facing text for a ticket entering status.
// PENDING has no technician message.
func TechnicianMessage(t *domain.Ticket, status domain.TicketStatus) (string, bool) {
	switch status {
	case domain.TicketStatusPending:
		return "", false
	case domain.TicketStatusAssigned:
		return fmt.Sprintf("Ticket #%d '%s' was assigned to you", t.ID, t.Title), true
	case domain.TicketStatusInProgress:
		return fmt.Sprintf("Ticket #%d '%s' moved to In Progress", t.ID, t.Title), true
	case domain.TicketStatusResolved:
		return fmt.Sprintf("Ticket #%d '%s' was marked Resolved", t.ID, t.Title), true
	case domain.TicketStatusClosed:
		return fmt.Sprintf("Ticket #%d '%s' was closed", t.ID, t.Title), true
	}
	return "", false
}

// Notifications builds the intents for t entering status.
func Notifications(t *domain.Ticket, status domain.TicketStatus, technicianUserID *int64) []domain.NotificationIntent {
	ticketID := t.ID
	intents := []domain.NotificationIntent{{
		RecipientID: t.RequesterID,
		TicketID:    &ticketID,
		Type:        notificationType(status),
		Message:     RequesterMessage(t, status),
	}}
	if technicianUserID == nil {
		return intents
	}
	if msg, ok := TechnicianMessage(t, status); ok {
		intents = append(intents, domain.NotificationIntent{
			RecipientID: *technicianUserID,
			TicketID:    &ticketID,
			Type:        notificationType(status),
			Message:     msg,
		})
	}
	return intents
}

func notificationType(status domain.TicketStatus) domain.NotificationType {
	switch status {
	case domain.TicketStatusPending:
		return domain.NotificationTicketCreated
	case domain.TicketStatusAssigned:
		return domain.NotificationTicketAssigned
	}
	return domain.NotificationStatusChanged
}
