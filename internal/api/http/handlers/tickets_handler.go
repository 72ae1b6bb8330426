package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/carebridge/support-service/internal/api/dto"
	"github.com/carebridge/support-service/internal/auth"
	"github.com/carebridge/support-service/internal/domain"
	"github.com/carebridge/support-service/internal/service"
	"github.com/carebridge/support-service/pkg/util"
)

// TicketsHandler manages support-request endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// Create POST /api/tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Create(c.UserContext(), *session, service.TicketCreateInput{
		Type:   req.Type,
		Phone:  req.Phone,
		Reason: req.Reason,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.ticketResponse(ticket)})
}

// List GET /api/tickets. Users see their household; staff may pass
// ?couple_id= to inspect any.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	coupleID := session.CoupleID
	if session.IsAdmin() {
		if q := c.Query("couple_id"); q != "" {
			coupleID = q
		}
	}
	limit := parseInt(c.Query("limit"), 50)
	offset := parseInt(c.Query("offset"), 0)
	tickets, err := h.service.ListByCouple(c.UserContext(), *session, coupleID, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, h.ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /api/tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	ticket, err := h.service.Get(c.UserContext(), *session, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(ticket)})
}

// Transition POST /api/tickets/:id/transition.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	var req dto.TransitionTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return util.NewValidationError("status required", nil)
	}
	ticket, err := h.service.Transition(c.UserContext(), *session, c.Params("id"), req.Status, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(ticket)})
}

// Cancel POST /api/tickets/:id/cancel.
func (h *TicketsHandler) Cancel(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	var req dto.CancelTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Cancel(c.UserContext(), *session, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(ticket)})
}

// IssueVideoLink POST /api/tickets/:id/video-link.
func (h *TicketsHandler) IssueVideoLink(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	url, err := h.service.IssueVideoLink(c.UserContext(), *session, c.Params("id"))
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(c.UserContext(), *session, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.VideoLinkResponse{URL: url, SentAt: ticket.VideoURLSentAt}})
}

// UpdatePhone PATCH /api/tickets/:id/phone.
func (h *TicketsHandler) UpdatePhone(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	var req dto.UpdatePhoneRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdatePhone(c.UserContext(), *session, c.Params("id"), req.Phone)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.ticketResponse(ticket)})
}

func (h *TicketsHandler) ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                ticket.ID,
		CoupleID:          ticket.CoupleID,
		UserID:            ticket.UserID,
		UserName:          ticket.UserName,
		UserGender:        ticket.UserGender,
		Type:              ticket.Type,
		Phone:             ticket.Phone,
		EditedPhone:       ticket.EditedPhone,
		DialURI:           h.service.DialURI(ticket),
		Reason:            ticket.Reason,
		Status:            ticket.Status,
		AssignedStaffID:   ticket.AssignedStaffID,
		AssignedStaffName: ticket.AssignedStaffName,
		VideoURL:          ticket.VideoURL,
		VideoURLSentAt:    ticket.VideoURLSentAt,
		ResolvedAt:        ticket.ResolvedAt,
		CancelledBy:       ticket.CancelledBy,
		CancelReason:      ticket.CancelReason,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
	}
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}
