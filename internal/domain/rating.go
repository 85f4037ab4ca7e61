package domain

import "time"

// Rating bounds.
const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

// Rating is the requester's one-time score for the technician who handled a ticket.
type Rating struct {
	ID           int64
	TicketID     int64
	TechnicianID int64
	RequesterID  int64
	Score        int
	Comment      string
	CreatedAt    time.Time
}
