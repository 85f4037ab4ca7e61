package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk-service/internal/api/dto"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/service"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// TechniciansHandler serves technician administration.
type TechniciansHandler struct {
	service *service.TechnicianService
}

// NewTechniciansHandler constructs handler.
func NewTechniciansHandler(technicianService *service.TechnicianService) *TechniciansHandler {
	return &TechniciansHandler{service: technicianService}
}

// List GET /technicians.
func (h *TechniciansHandler) List(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	techs, err := h.service.List(c.UserContext(), principal)
	if err != nil {
		return err
	}
	items := make([]dto.TechnicianResponse, 0, len(techs))
	for i := range techs {
		items = append(items, technicianResponse(&techs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /technicians/:id.
func (h *TechniciansHandler) Get(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	tech, err := h.service.Get(c.UserContext(), principal, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": technicianResponse(tech)})
}

// DecrementWorkload POST /technicians/:id/workload/decrement.
func (h *TechniciansHandler) DecrementWorkload(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	tech, err := h.service.DecrementWorkload(c.UserContext(), principal, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": technicianResponse(tech)})
}

// SetAvailability PUT /technicians/:id/availability.
func (h *TechniciansHandler) SetAvailability(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req dto.AvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	availability, err := domain.ParseAvailability(req.Availability)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"availability": req.Availability})
	}
	tech, err := h.service.SetAvailability(c.UserContext(), principal, id, availability)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": technicianResponse(tech)})
}

func technicianResponse(t *domain.Technician) dto.TechnicianResponse {
	specialties := t.SpecialtyIDs
	if specialties == nil {
		specialties = []int64{}
	}
	return dto.TechnicianResponse{
		ID:            t.ID,
		UserID:        t.UserID,
		Name:          t.Name,
		Workload:      t.Workload,
		Availability:  t.Availability,
		AverageRating: t.AverageRating,
		SpecialtyIDs:  specialties,
		UpdatedAt:     t.UpdatedAt,
	}
}
