package domain

import "time"

// AssignmentMethod records how a technician was chosen.
type AssignmentMethod string

const (
	AssignmentMethodManual    AssignmentMethod = "MANUAL"
	AssignmentMethodAutomatic AssignmentMethod = "AUTOMATIC"
	AssignmentMethodPending   AssignmentMethod = "PENDING"
)

// Assignment is an append-only audit entry; the latest one per ticket is current.
type Assignment struct {
	ID           int64
	TicketID     int64
	TechnicianID *int64
	Method       AssignmentMethod
	AssignedAt   time.Time
	AssignedBy   int64
	Score        *int
	Rationale    string
}

// StateChange is an immutable audit trail entry written on every transition.
type StateChange struct {
	ID         int64
	TicketID   int64
	FromStatus *TicketStatus
	ToStatus   TicketStatus
	ActorID    int64
	Notes      string
	ChangedAt  time.Time
	Evidence   []EvidenceImage
}

// EvidenceImage references an image stored outside this service.
type EvidenceImage struct {
	ID            int64
	StateChangeID int64
	FileName      string
	StoragePath   string
}
