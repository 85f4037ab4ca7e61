package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk-service/internal/api/dto"
	"github.com/deskflow/helpdesk-service/internal/service"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// TriageHandler exposes assignment operations to administrators.
type TriageHandler struct {
	service *service.TriageService
	now     func() time.Time
}

// NewTriageHandler constructs handler.
func NewTriageHandler(triageService *service.TriageService) *TriageHandler {
	return &TriageHandler{service: triageService, now: func() time.Time { return time.Now().UTC() }}
}

// AutoAssign POST /triage/tickets/:id/auto.
func (h *TriageHandler) AutoAssign(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	result, err := h.service.AutoAssign(c.UserContext(), id, h.now())
	if err != nil {
		return err
	}
	if !result.Success && result.Err != nil {
		return result.Err
	}
	return c.JSON(fiber.Map{"data": result})
}

// ManualAssign POST /triage/tickets/:id/manual.
func (h *TriageHandler) ManualAssign(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req dto.ManualAssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TechnicianID <= 0 {
		return apperrors.NewValidationError("technician_id is required", nil)
	}
	result, err := h.service.ManualAssign(c.UserContext(), principal, id, req.TechnicianID, h.now())
	if err != nil {
		return err
	}
	if !result.Success && result.Err != nil {
		return result.Err
	}
	return c.JSON(fiber.Map{"data": result})
}

// AssignPending POST /triage/pending. Per-ticket failures are reported in
// the body; the request itself only fails when the batch cannot start.
func (h *TriageHandler) AssignPending(c *fiber.Ctx) error {
	results, err := h.service.BatchAutoAssign(c.UserContext(), h.now())
	if err != nil {
		return err
	}
	summary := dto.BatchAssignResponse{Processed: len(results)}
	for _, res := range results {
		if res.Success {
			summary.Assigned++
		} else {
			summary.Failed++
		}
	}
	return c.JSON(fiber.Map{"data": results, "summary": summary})
}

// Candidates GET /triage/tickets/:id/candidates.
func (h *TriageHandler) Candidates(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	preview, err := h.service.Candidates(c.UserContext(), principal, id, h.now())
	if err != nil {
		return err
	}
	resp := dto.CandidatePreviewResponse{
		TicketID:         preview.TicketID,
		Criterion:        preview.Criterion,
		PriorityWeight:   preview.PriorityWeight,
		RemainingMinutes: preview.RemainingMinutes,
		Candidates:       make([]dto.CandidateResponse, 0, len(preview.Candidates)),
	}
	for _, cand := range preview.Candidates {
		resp.Candidates = append(resp.Candidates, dto.CandidateResponse{
			TechnicianID: cand.Technician.ID,
			Name:         cand.Technician.Name,
			Workload:     cand.Technician.Workload,
			Rating:       cand.Technician.AverageRating,
			Matches:      cand.Matches,
			Score:        cand.Score,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}
