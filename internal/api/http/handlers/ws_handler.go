package handlers

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/carebridge/support-service/internal/auth"
	"github.com/carebridge/support-service/internal/domain"
	"github.com/carebridge/support-service/internal/service"
	"github.com/carebridge/support-service/internal/stream"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// WSHandler bridges live subscriptions onto websocket connections. The
// snapshot is written after the subscription attaches, so a client may see
// snapshot and deltas out of order but deltas themselves arrive in commit
// order.
type WSHandler struct {
	chat    *service.ChatService
	tickets *service.TicketService
	broker  *stream.Broker
	logger  *zap.Logger
}

// NewWSHandler constructs handler.
func NewWSHandler(chat *service.ChatService, tickets *service.TicketService, broker *stream.Broker, logger *zap.Logger) *WSHandler {
	return &WSHandler{chat: chat, tickets: tickets, broker: broker, logger: logger}
}

// wsFrame is the envelope written to clients.
type wsFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// wsClientFrame is the envelope read from clients on chat sockets.
type wsClientFrame struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing,omitempty"`
}

// ChatSocket GET /ws/chat/:id. Streams message and channel deltas and
// accepts typing frames. Typing state is cleared on teardown — the explicit
// cleanup step the tracker itself never performs.
func (h *WSHandler) ChatSocket(conn *websocket.Conn) {
	session, ok := auth.SessionFromLocals(conn.Locals(auth.SessionLocalsKey))
	if !ok {
		_ = conn.WriteJSON(wsFrame{Type: "error", Payload: "session required"})
		_ = conn.Close()
		return
	}
	channelID := conn.Params("id")
	ctx := context.Background()

	channel, err := h.chat.GetChannel(ctx, *session, channelID)
	if err != nil {
		_ = conn.WriteJSON(wsFrame{Type: "error", Payload: "channel unavailable"})
		_ = conn.Close()
		return
	}

	msgSub := h.broker.Subscribe(stream.MessagesTopic(channel.ID))
	chanSub := h.broker.Subscribe(stream.ChannelTopic(channel.ID))
	defer msgSub.Cancel()
	defer chanSub.Cancel()
	defer h.chat.ClearTyping(context.Background(), *session, channel.ID)

	if err := h.writeChatSnapshot(ctx, conn, *session, channel); err != nil {
		h.logger.Warn("ws snapshot write failed", zap.String("channel_id", channel.ID), zap.Error(err))
		_ = conn.Close()
		return
	}

	done := make(chan struct{})
	go h.readPump(conn, *session, channel.ID, done)
	h.writePump(conn, done, msgSub, chanSub)
}

func (h *WSHandler) writeChatSnapshot(ctx context.Context, conn *websocket.Conn, session domain.Session, channel *domain.ChatChannel) error {
	msgs, err := h.chat.ListMessages(ctx, session, channel.ID)
	if err != nil {
		return err
	}
	snapshot := struct {
		Channel  domain.ChatChannel              `json:"channel"`
		Messages []domain.ChatMessage            `json:"messages"`
		Typing   map[domain.ParticipantRole]bool `json:"typing"`
	}{
		Channel:  *channel,
		Messages: msgs,
		Typing:   h.chat.TypingState(ctx, channel.ID),
	}
	return conn.WriteJSON(wsFrame{Type: "snapshot", Payload: snapshot})
}

// readPump consumes client frames until the connection drops. Typing frames
// are applied fire-and-forget; everything else is ignored.
func (h *WSHandler) readPump(conn *websocket.Conn, session domain.Session, channelID string, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var frame wsClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Type == "typing" {
			h.chat.SetTyping(context.Background(), session, channelID, frame.IsTyping)
		}
	}
}

// writePump forwards broker deltas and keeps the connection alive with
// pings. A closed subscription channel means this consumer was evicted as
// too slow; the socket is dropped so the client reconnects for a fresh
// snapshot.
func (h *WSHandler) writePump(conn *websocket.Conn, done <-chan struct{}, subs ...*stream.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	merged := make(chan stream.Event, 1)
	stop := make(chan struct{})
	defer close(stop)
	for _, sub := range subs {
		go func(c <-chan stream.Event) {
			for ev := range c {
				select {
				case merged <- ev:
				case <-stop:
					return
				}
			}
			select {
			case merged <- stream.Event{Kind: "closed"}:
			case <-stop:
			}
		}(sub.C)
	}

	for {
		select {
		case <-done:
			return
		case ev := <-merged:
			if ev.Kind == "closed" {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(wsFrame{Type: ev.Kind, Payload: ev.Payload}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TicketSocket GET /ws/tickets/:id. Streams status and link deltas for a
// single ticket.
func (h *WSHandler) TicketSocket(conn *websocket.Conn) {
	session, ok := auth.SessionFromLocals(conn.Locals(auth.SessionLocalsKey))
	if !ok {
		_ = conn.WriteJSON(wsFrame{Type: "error", Payload: "session required"})
		_ = conn.Close()
		return
	}
	ticketID := conn.Params("id")
	ctx := context.Background()

	ticket, err := h.tickets.Get(ctx, *session, ticketID)
	if err != nil {
		_ = conn.WriteJSON(wsFrame{Type: "error", Payload: "ticket unavailable"})
		_ = conn.Close()
		return
	}

	sub := h.broker.Subscribe(stream.TicketTopic(ticket.ID))
	defer sub.Cancel()

	if err := conn.WriteJSON(wsFrame{Type: "snapshot", Payload: ticket}); err != nil {
		_ = conn.Close()
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	h.writePump(conn, done, sub)
}
