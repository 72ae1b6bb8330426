package events

import (
	"time"

	"github.com/carebridge/support-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventVideoLinkIssued     EventType = "video_link_issued"
	EventMessageSent         EventType = "message_sent"
	EventMessageRead         EventType = "message_read"
	EventMessageDeleted      EventType = "message_deleted"
	EventChannelResolved     EventType = "channel_resolved"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Role    domain.ParticipantRole `json:"role"`
	ActorID string                 `json:"actor_id"`
}

// Event represents a domain event emitted by services. EntityID names the
// ticket or channel the event concerns.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	EntityID  string      `json:"entity_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CoupleID string            `json:"couple_id"`
	Type     domain.TicketType `json:"type"`
	UserName string            `json:"user_name"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Reason    string              `json:"reason,omitempty"`
}

// VideoLinkIssuedPayload payload.
type VideoLinkIssuedPayload struct {
	URL    string    `json:"url"`
	SentAt time.Time `json:"sent_at"`
}

// MessageSentPayload payload.
type MessageSentPayload struct {
	MessageID   string                 `json:"message_id"`
	SenderType  domain.ParticipantRole `json:"sender_type"`
	BodyPreview string                 `json:"body_preview"`
}

// MessageReadPayload payload.
type MessageReadPayload struct {
	Reader domain.ParticipantRole `json:"reader"`
	Count  int64                  `json:"count"`
}

// MessageDeletedPayload payload.
type MessageDeletedPayload struct {
	MessageID string                 `json:"message_id"`
	DeletedBy domain.ParticipantRole `json:"deleted_by"`
}

// ChannelResolvedPayload payload.
type ChannelResolvedPayload struct {
	Resolved bool `json:"resolved"`
}
