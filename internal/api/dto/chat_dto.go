package dto

import (
	"time"

	"github.com/carebridge/support-service/internal/domain"
)

// SendMessageRequest payload. ClientKey is the client-generated idempotency
// key; retried sends reuse it so the server never duplicates the insert.
type SendMessageRequest struct {
	ClientKey string `json:"client_key,omitempty"`
	Body      string `json:"body"`
}

// TypingRequest payload.
type TypingRequest struct {
	IsTyping bool `json:"is_typing"`
}

// ResolveChannelRequest payload.
type ResolveChannelRequest struct {
	Resolved bool `json:"resolved"`
}

// ChannelResponse mirrors the chat header the mobile client renders.
type ChannelResponse struct {
	ID            string               `json:"id"`
	CoupleID      string               `json:"couple_id"`
	UserID        string               `json:"user_id"`
	UserName      string               `json:"user_name"`
	UserGender    string               `json:"user_gender,omitempty"`
	Status        domain.ChannelStatus `json:"status"`
	Unread        int                  `json:"unread"`
	Typing        map[string]bool      `json:"typing"`
	LastMessageAt *time.Time           `json:"last_message_at,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// MessageResponse represents a chat message as one side sees it.
type MessageResponse struct {
	ID         string                 `json:"id"`
	ChannelID  string                 `json:"channel_id"`
	SenderID   string                 `json:"sender_id"`
	SenderName string                 `json:"sender_name"`
	SenderType domain.ParticipantRole `json:"sender_type"`
	Body       string                 `json:"body"`
	CreatedAt  time.Time              `json:"created_at"`
	ReadAt     *time.Time             `json:"read_at,omitempty"`
}

// MarkReadResponse reports how many messages gained a read receipt.
type MarkReadResponse struct {
	Marked int64 `json:"marked"`
}
