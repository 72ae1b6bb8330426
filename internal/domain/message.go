package domain

import "time"

// MaxBodyLength bounds chat message bodies.
const MaxBodyLength = 1000

// ChatMessage is a single entry in a channel's append-only log. Messages are
// totally ordered by (CreatedAt, ID) within a channel. Soft-delete flags are
// independent per side: a deleted message disappears from that side's view
// only and stays in storage until the retention horizon.
type ChatMessage struct {
	ID             string
	ChannelID      string
	ClientKey      string
	SenderID       string
	SenderName     string
	SenderType     ParticipantRole
	Body           string
	CreatedAt      time.Time
	ReadAt         *time.Time
	DeletedByUser  bool
	DeletedByAdmin bool
}

// DeletedFor reports whether the given side soft-deleted the message.
func (m *ChatMessage) DeletedFor(role ParticipantRole) bool {
	if role == RoleAdmin {
		return m.DeletedByAdmin
	}
	return m.DeletedByUser
}

// Before reports the channel-local ordering of two messages, breaking
// timestamp ties by id.
func (m *ChatMessage) Before(other *ChatMessage) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
