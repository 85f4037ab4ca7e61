package dto

import (
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// NotificationResponse is an inbox entry.
type NotificationResponse struct {
	ID        int64                     `json:"id"`
	TicketID  *int64                    `json:"ticket_id"`
	Type      domain.NotificationType   `json:"type"`
	Message   string                    `json:"message"`
	Status    domain.NotificationStatus `json:"status"`
	CreatedAt time.Time                 `json:"created_at"`
	ReadAt    *time.Time                `json:"read_at"`
}
