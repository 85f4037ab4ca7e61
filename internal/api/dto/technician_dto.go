package dto

import (
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// TechnicianResponse describes a technician.
type TechnicianResponse struct {
	ID            int64               `json:"id"`
	UserID        int64               `json:"user_id"`
	Name          string              `json:"name"`
	Workload      int                 `json:"workload"`
	Availability  domain.Availability `json:"availability"`
	AverageRating float64             `json:"average_rating"`
	SpecialtyIDs  []int64             `json:"specialty_ids"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// AvailabilityRequest payload for PUT /technicians/:id/availability.
type AvailabilityRequest struct {
	Availability string `json:"availability"`
}
