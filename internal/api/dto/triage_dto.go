package dto

import "github.com/deskflow/helpdesk-service/internal/domain"

// ManualAssignRequest payload.
type ManualAssignRequest struct {
	TechnicianID int64 `json:"technician_id"`
}

// CandidateResponse is one ranked technician.
type CandidateResponse struct {
	TechnicianID int64   `json:"technician_id"`
	Name         string  `json:"name"`
	Workload     int     `json:"workload"`
	Rating       float64 `json:"average_rating"`
	Matches      int     `json:"matching_specialties"`
	Score        int     `json:"score"`
}

// CandidatePreviewResponse lists candidates best first.
type CandidatePreviewResponse struct {
	TicketID         int64                      `json:"ticket_id"`
	Criterion        domain.AssignmentCriterion `json:"criterion"`
	PriorityWeight   int                        `json:"priority_weight"`
	RemainingMinutes int                        `json:"remaining_minutes"`
	Candidates       []CandidateResponse        `json:"candidates"`
}

// BatchAssignResponse summarizes an assign-pending run.
type BatchAssignResponse struct {
	Processed int `json:"processed"`
	Assigned  int `json:"assigned"`
	Failed    int `json:"failed"`
}
