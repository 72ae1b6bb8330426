package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/carebridge/support-service/internal/api/dto"
	"github.com/carebridge/support-service/internal/auth"
	"github.com/carebridge/support-service/internal/domain"
	"github.com/carebridge/support-service/internal/service"
	"github.com/carebridge/support-service/pkg/util"
)

// ChatHandler manages live chat endpoints.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler constructs handler.
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// OpenChannel POST /api/chat/channel. Lazily creates the caller's channel.
func (h *ChatHandler) OpenChannel(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	channel, err := h.chat.GetOrCreate(c.UserContext(), *session)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.channelResponse(c, channel, session.Role)})
}

// ListChannels GET /api/chat/channels. Staff inbox.
func (h *ChatHandler) ListChannels(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	channels, err := h.chat.ListChannels(c.UserContext(), *session)
	if err != nil {
		return err
	}
	items := make([]dto.ChannelResponse, 0, len(channels))
	for i := range channels {
		items = append(items, h.channelResponse(c, &channels[i], session.Role))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetChannel GET /api/chat/:id.
func (h *ChatHandler) GetChannel(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	channel, err := h.chat.GetChannel(c.UserContext(), *session, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.channelResponse(c, channel, session.Role)})
}

// ListMessages GET /api/chat/:id/messages.
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	msgs, err := h.chat.ListMessages(c.UserContext(), *session, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.MessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, messageResponse(&msgs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// SendMessage POST /api/chat/:id/messages.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	msg, err := h.chat.Send(c.UserContext(), *session, c.Params("id"), req.ClientKey, req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

// MarkRead POST /api/chat/:id/read.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	marked, err := h.chat.MarkRead(c.UserContext(), *session, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MarkReadResponse{Marked: marked}})
}

// DeleteMessage DELETE /api/chat/:id/messages/:messageId.
func (h *ChatHandler) DeleteMessage(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	if err := h.chat.DeleteMessage(c.UserContext(), *session, c.Params("id"), c.Params("messageId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// SetResolved POST /api/chat/:id/resolved.
func (h *ChatHandler) SetResolved(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	var req dto.ResolveChannelRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	channel, err := h.chat.SetResolved(c.UserContext(), *session, c.Params("id"), req.Resolved)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.channelResponse(c, channel, session.Role)})
}

// SetTyping POST /api/chat/:id/typing. Fire-and-forget.
func (h *ChatHandler) SetTyping(c *fiber.Ctx) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return util.NewUnauthorized("session required")
	}
	var req dto.TypingRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	h.chat.SetTyping(c.UserContext(), *session, c.Params("id"), req.IsTyping)
	return c.SendStatus(http.StatusAccepted)
}

func (h *ChatHandler) channelResponse(c *fiber.Ctx, channel *domain.ChatChannel, viewer domain.ParticipantRole) dto.ChannelResponse {
	typing := h.chat.TypingState(c.UserContext(), channel.ID)
	typingView := make(map[string]bool, len(typing))
	for role, val := range typing {
		typingView[string(role)] = val
	}
	return dto.ChannelResponse{
		ID:            channel.ID,
		CoupleID:      channel.CoupleID,
		UserID:        channel.UserID,
		UserName:      channel.UserName,
		UserGender:    channel.UserGender,
		Status:        channel.Status,
		Unread:        channel.UnreadFor(viewer),
		Typing:        typingView,
		LastMessageAt: channel.LastMessageAt,
		CreatedAt:     channel.CreatedAt,
	}
}

func messageResponse(msg *domain.ChatMessage) dto.MessageResponse {
	return dto.MessageResponse{
		ID:         msg.ID,
		ChannelID:  msg.ChannelID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		SenderType: msg.SenderType,
		Body:       msg.Body,
		CreatedAt:  msg.CreatedAt,
		ReadAt:     msg.ReadAt,
	}
}
