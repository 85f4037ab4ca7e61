package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusAssigned   TicketStatus = "ASSIGNED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketStatuses lists every status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusPending,
	TicketStatusAssigned,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Valid reports whether s is one of the known statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPending, TicketStatusAssigned, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// ParseTicketStatus normalizes user input into a TicketStatus.
func ParseTicketStatus(raw string) (TicketStatus, error) {
	s := TicketStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown ticket status %q", raw)
	}
	return s, nil
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// Valid reports whether p is one of the known priorities.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// ParseTicketPriority normalizes user input into a TicketPriority.
// An empty value yields MEDIUM.
func ParseTicketPriority(raw string) (TicketPriority, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TicketPriorityMedium, nil
	}
	p := TicketPriority(strings.ToUpper(trimmed))
	if !p.Valid() {
		return "", fmt.Errorf("unknown ticket priority %q", raw)
	}
	return p, nil
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                  int64
	Title               string
	Description         string
	RequesterID         int64
	CategoryID          int64
	TechnicianID        *int64
	Priority            TicketPriority
	Status              TicketStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ClosedAt            *time.Time
	FirstResponseAt     *time.Time
	ResolvedAt          *time.Time
	ResponseCompliant   *bool
	ResolutionCompliant *bool
	Version             int64
}

// AssignedTo reports whether the ticket is currently assigned to technicianID.
func (t *Ticket) AssignedTo(technicianID int64) bool {
	return t.TechnicianID != nil && *t.TechnicianID == technicianID
}
