package dto

import (
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CategoryID  int64  `json:"category_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// EvidenceRequest references an image uploaded elsewhere.
type EvidenceRequest struct {
	FileName    string `json:"file_name"`
	StoragePath string `json:"storage_path"`
}

// StatusChangeRequest payload for POST /tickets/:id/status.
type StatusChangeRequest struct {
	Status   string            `json:"status"`
	Notes    string            `json:"notes"`
	Evidence []EvidenceRequest `json:"evidence"`
}

// TicketResponse is the full ticket view.
type TicketResponse struct {
	ID                  int64                 `json:"id"`
	Title               string                `json:"title"`
	Description         string                `json:"description"`
	RequesterID         int64                 `json:"requester_id"`
	CategoryID          int64                 `json:"category_id"`
	TechnicianID        *int64                `json:"technician_id"`
	Priority            domain.TicketPriority `json:"priority"`
	Status              domain.TicketStatus   `json:"status"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
	FirstResponseAt     *time.Time            `json:"first_response_at"`
	ResolvedAt          *time.Time            `json:"resolved_at"`
	ClosedAt            *time.Time            `json:"closed_at"`
	ResponseCompliant   *bool                 `json:"response_compliant"`
	ResolutionCompliant *bool                 `json:"resolution_compliant"`
	Version             int64                 `json:"version"`
}

// EvidenceResponse is a stored evidence reference.
type EvidenceResponse struct {
	ID          int64  `json:"id"`
	FileName    string `json:"file_name"`
	StoragePath string `json:"storage_path"`
}

// StateChangeResponse is one audit trail entry.
type StateChangeResponse struct {
	ID         int64                `json:"id"`
	FromStatus *domain.TicketStatus `json:"from_status"`
	ToStatus   domain.TicketStatus  `json:"to_status"`
	ActorID    int64                `json:"actor_id"`
	Notes      string               `json:"notes"`
	ChangedAt  time.Time            `json:"changed_at"`
	Evidence   []EvidenceResponse   `json:"evidence"`
}

// AssignmentResponse is one assignment record.
type AssignmentResponse struct {
	ID           int64                   `json:"id"`
	TechnicianID *int64                  `json:"technician_id"`
	Method       domain.AssignmentMethod `json:"method"`
	AssignedAt   time.Time               `json:"assigned_at"`
	AssignedBy   int64                   `json:"assigned_by"`
	Score        *int                    `json:"score,omitempty"`
	Rationale    string                  `json:"rationale,omitempty"`
}

// TicketHistoryResponse bundles the audit trail of a ticket.
type TicketHistoryResponse struct {
	TicketID     int64                 `json:"ticket_id"`
	StateChanges []StateChangeResponse `json:"state_changes"`
	Assignments  []AssignmentResponse  `json:"assignments"`
}

// SLAStatusResponse reports deadlines and compliance.
type SLAStatusResponse struct {
	TicketID            int64     `json:"ticket_id"`
	SLAName             string    `json:"sla_name"`
	ResponseMinutes     int       `json:"response_minutes"`
	ResolutionMinutes   int       `json:"resolution_minutes"`
	ResponseDeadline    time.Time `json:"response_deadline"`
	ResolutionDeadline  time.Time `json:"resolution_deadline"`
	RemainingMinutes    int       `json:"remaining_minutes"`
	Breached            bool      `json:"breached"`
	ResponseCompliant   *bool     `json:"response_compliant"`
	ResolutionCompliant *bool     `json:"resolution_compliant"`
}

// RatingRequest payload for POST /tickets/:id/rating.
type RatingRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// RatingResponse is the stored rating of a ticket.
type RatingResponse struct {
	ID           int64     `json:"id"`
	TicketID     int64     `json:"ticket_id"`
	TechnicianID int64     `json:"technician_id"`
	RequesterID  int64     `json:"requester_id"`
	Score        int       `json:"score"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
