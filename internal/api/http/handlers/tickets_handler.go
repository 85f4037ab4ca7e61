package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk-service/internal/api/dto"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/service"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints for every role.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	priority, err := domain.ParseTicketPriority(req.Priority)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"priority": req.Priority})
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), principal, service.TicketCreateInput{
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), principal, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), principal, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ChangeStatus POST /tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req dto.StatusChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status, err := domain.ParseTicketStatus(req.Status)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"status": req.Status})
	}
	evidence := make([]domain.EvidenceImage, 0, len(req.Evidence))
	for _, e := range req.Evidence {
		evidence = append(evidence, domain.EvidenceImage{FileName: e.FileName, StoragePath: e.StoragePath})
	}

	ticket, err := h.service.ChangeStatus(c.UserContext(), principal, id, service.StatusChangeInput{
		Status:   status,
		Notes:    req.Notes,
		Evidence: evidence,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Rate POST /tickets/:id/rating.
func (h *TicketsHandler) Rate(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req dto.RatingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rating, err := h.service.Rate(c.UserContext(), principal, id, service.RatingInput{Score: req.Score, Comment: req.Comment})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ratingResponse(rating)})
}

// Rating GET /tickets/:id/rating.
func (h *TicketsHandler) Rating(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	rating, err := h.service.Rating(c.UserContext(), principal, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ratingResponse(rating)})
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	history, err := h.service.History(c.UserContext(), principal, id)
	if err != nil {
		return err
	}
	resp := dto.TicketHistoryResponse{
		TicketID:     id,
		StateChanges: make([]dto.StateChangeResponse, 0, len(history.StateChanges)),
		Assignments:  make([]dto.AssignmentResponse, 0, len(history.Assignments)),
	}
	for _, sc := range history.StateChanges {
		resp.StateChanges = append(resp.StateChanges, stateChangeResponse(sc))
	}
	for _, a := range history.Assignments {
		resp.Assignments = append(resp.Assignments, dto.AssignmentResponse{
			ID:           a.ID,
			TechnicianID: a.TechnicianID,
			Method:       a.Method,
			AssignedAt:   a.AssignedAt,
			AssignedBy:   a.AssignedBy,
			Score:        a.Score,
			Rationale:    a.Rationale,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// SLAStatus GET /tickets/:id/sla.
func (h *TicketsHandler) SLAStatus(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	view, err := h.service.SLAStatus(c.UserContext(), principal, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SLAStatusResponse{
		TicketID:            view.TicketID,
		SLAName:             view.SLA.Name,
		ResponseMinutes:     view.SLA.ResponseMinutes,
		ResolutionMinutes:   view.SLA.ResolutionMinutes,
		ResponseDeadline:    view.Report.ResponseDeadline,
		ResolutionDeadline:  view.Report.ResolutionDeadline,
		RemainingMinutes:    view.Report.RemainingMinutes,
		Breached:            view.Report.Breached,
		ResponseCompliant:   view.Report.ResponseCompliant,
		ResolutionCompliant: view.Report.ResolutionCompliant,
	}})
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{}
	for _, raw := range splitList(c.Query("status")) {
		status, err := domain.ParseTicketStatus(raw)
		if err != nil {
			return filter, apperrors.NewValidationError(err.Error(), nil)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, raw := range splitList(c.Query("priority")) {
		priority, err := domain.ParseTicketPriority(raw)
		if err != nil {
			return filter, apperrors.NewValidationError(err.Error(), nil)
		}
		filter.Priorities = append(filter.Priorities, priority)
	}
	if raw := c.Query("category_id"); raw != "" {
		categoryID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, apperrors.NewValidationError("invalid category_id", nil)
		}
		filter.CategoryID = &categoryID
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}
	filter.Limit, filter.Offset = pagination(c)
	return filter, nil
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                  ticket.ID,
		Title:               ticket.Title,
		Description:         ticket.Description,
		RequesterID:         ticket.RequesterID,
		CategoryID:          ticket.CategoryID,
		TechnicianID:        ticket.TechnicianID,
		Priority:            ticket.Priority,
		Status:              ticket.Status,
		CreatedAt:           ticket.CreatedAt,
		UpdatedAt:           ticket.UpdatedAt,
		FirstResponseAt:     ticket.FirstResponseAt,
		ResolvedAt:          ticket.ResolvedAt,
		ClosedAt:            ticket.ClosedAt,
		ResponseCompliant:   ticket.ResponseCompliant,
		ResolutionCompliant: ticket.ResolutionCompliant,
		Version:             ticket.Version,
	}
}

func stateChangeResponse(sc domain.StateChange) dto.StateChangeResponse {
	evidence := make([]dto.EvidenceResponse, 0, len(sc.Evidence))
	for _, e := range sc.Evidence {
		evidence = append(evidence, dto.EvidenceResponse{ID: e.ID, FileName: e.FileName, StoragePath: e.StoragePath})
	}
	return dto.StateChangeResponse{
		ID:         sc.ID,
		FromStatus: sc.FromStatus,
		ToStatus:   sc.ToStatus,
		ActorID:    sc.ActorID,
		Notes:      sc.Notes,
		ChangedAt:  sc.ChangedAt,
		Evidence:   evidence,
	}
}

func ratingResponse(r *domain.Rating) dto.RatingResponse {
	return dto.RatingResponse{
		ID:           r.ID,
		TicketID:     r.TicketID,
		TechnicianID: r.TechnicianID,
		RequesterID:  r.RequesterID,
		Score:        r.Score,
		Comment:      r.Comment,
		CreatedAt:    r.CreatedAt,
	}
}
