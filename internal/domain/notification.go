package domain

import "time"

// NotificationType classifies a notification.
type NotificationType string

const (
	NotificationTicketCreated  NotificationType = "TICKET_CREATED"
	NotificationTicketAssigned NotificationType = "TICKET_ASSIGNED"
	NotificationStatusChanged  NotificationType = "STATUS_CHANGED"
)

// NotificationStatus tracks whether the recipient has seen a notification.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusRead    NotificationStatus = "READ"
)

// NotificationIntent is a request to notify a user, produced by the core and
// delivered after the owning transaction commits.
type NotificationIntent struct {
	RecipientID int64
	TicketID    *int64
	Type        NotificationType
	Message     string
}

// Notification is a delivered intent as stored in the recipient's inbox.
type Notification struct {
	ID          int64
	RecipientID int64
	TicketID    *int64
	Type        NotificationType
	Message     string
	Status      NotificationStatus
	CreatedAt   time.Time
	ReadAt      *time.Time
}
