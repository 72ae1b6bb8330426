package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebridge/support-service/internal/domain"
	"github.com/carebridge/support-service/internal/events"
	"github.com/carebridge/support-service/internal/presence"
	"github.com/carebridge/support-service/internal/repository"
	"github.com/carebridge/support-service/internal/stream"
	"github.com/carebridge/support-service/pkg/util"
)

// ChatService owns channel lifecycle and the message log. Channels are
// created lazily, one per user, and outlive individual tickets.
type ChatService struct {
	channels   repository.ChannelRepository
	messages   repository.MessageRepository
	presence   presence.Tracker
	dispatcher events.Dispatcher
	broker     *stream.Broker
	logger     *zap.Logger
	now        func() time.Time
}

// ChatDependencies bundles collaborators for the chat service.
type ChatDependencies struct {
	ChannelRepo repository.ChannelRepository
	MessageRepo repository.MessageRepository
	Presence    presence.Tracker
	Dispatcher  events.Dispatcher
	Broker      *stream.Broker
	Logger      *zap.Logger
	Now         func() time.Time
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		channels:   deps.ChannelRepo,
		messages:   deps.MessageRepo,
		presence:   deps.Presence,
		dispatcher: deps.Dispatcher,
		broker:     deps.Broker,
		logger:     logger,
		now:        now,
	}
}

// TypingPayload is the presence delta pushed to channel subscribers.
type TypingPayload struct {
	ChannelID string                 `json:"channel_id"`
	Role      domain.ParticipantRole `json:"role"`
	IsTyping  bool                   `json:"is_typing"`
}

// ReadPayload is the read-receipt delta pushed to message subscribers.
type ReadPayload struct {
	ChannelID string                 `json:"channel_id"`
	Reader    domain.ParticipantRole `json:"reader"`
	ReadAt    time.Time              `json:"read_at"`
	Count     int64                  `json:"count"`
}

// DeletePayload is the soft-delete delta pushed to message subscribers.
type DeletePayload struct {
	ChannelID string                 `json:"channel_id"`
	MessageID string                 `json:"message_id"`
	DeletedBy domain.ParticipantRole `json:"deleted_by"`
}

// GetOrCreate returns the session user's channel, creating it lazily on
// first open. Repeated calls for the same user return the same channel.
func (s *ChatService) GetOrCreate(ctx context.Context, session domain.Session) (*domain.ChatChannel, error) {
	if session.IsAdmin() {
		return nil, util.NewPermissionDenied("staff open existing channels by id")
	}
	channelID := domain.ChannelIDFor(session.ActorID)
	channel, err := s.channels.GetByID(ctx, channelID)
	if err == nil {
		return channel, nil
	}
	if !util.IsNotFound(err) {
		return nil, err
	}

	fresh := &domain.ChatChannel{
		ID:         channelID,
		CoupleID:   session.CoupleID,
		UserID:     session.ActorID,
		UserName:   session.ActorName,
		UserGender: session.Gender,
		Status:     domain.ChannelStatusOpen,
	}
	if err := s.channels.Create(ctx, fresh); err != nil {
		return nil, err
	}
	// A concurrent create may have won; re-read to return the stored row.
	return s.channels.GetByID(ctx, channelID)
}

// GetChannel fetches a channel for either side, scoping users to their own.
func (s *ChatService) GetChannel(ctx context.Context, session domain.Session, channelID string) (*domain.ChatChannel, error) {
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !session.IsAdmin() && channel.UserID != session.ActorID {
		return nil, util.NewPermissionDenied("channel belongs to another user")
	}
	return channel, nil
}

// ListChannels returns every conversation for the staff inbox.
func (s *ChatService) ListChannels(ctx context.Context, session domain.Session) ([]domain.ChatChannel, error) {
	if !session.IsAdmin() {
		return nil, util.NewPermissionDenied("staff required")
	}
	return s.channels.ListAll(ctx)
}

// Send appends a message to the channel log. Body validation happens before
// any storage call. ClientKey makes retried sends idempotent: a replay
// returns the original message and produces no counter bump or event.
func (s *ChatService) Send(ctx context.Context, session domain.Session, channelID, clientKey, body string) (*domain.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, util.NewInvalidMessage("message body is empty")
	}
	if utf8.RuneCountInString(body) > domain.MaxBodyLength {
		return nil, util.NewInvalidMessage(
			fmt.Sprintf("message body exceeds %d characters", domain.MaxBodyLength))
	}

	channel, err := s.GetChannel(ctx, session, channelID)
	if err != nil {
		return nil, err
	}
	if clientKey == "" {
		clientKey = uuid.NewString()
	}

	msg := &domain.ChatMessage{
		ID:         uuid.NewString(),
		ChannelID:  channel.ID,
		ClientKey:  clientKey,
		SenderID:   session.ActorID,
		SenderName: session.ActorName,
		SenderType: session.Role,
		Body:       body,
		CreatedAt:  s.now(),
	}
	created, err := s.messages.Create(ctx, msg)
	if err != nil {
		return nil, err
	}
	if !created {
		// Retry replay: the original insert already ran its side effects.
		return s.messages.GetByClientKey(ctx, channel.ID, clientKey)
	}

	if err := s.channels.RecordMessage(ctx, channel.ID, msg.CreatedAt, session.Role.Counterpart()); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventMessageSent,
		EntityID: channel.ID,
		Actor:    sessionActor(session),
		Payload: events.MessageSentPayload{
			MessageID:   msg.ID,
			SenderType:  msg.SenderType,
			BodyPreview: bodyPreview(msg.Body, 120),
		},
	})
	if s.broker != nil {
		s.broker.Publish(stream.MessagesTopic(channel.ID), stream.KindMessageCreated, *msg)
		s.broker.Publish(stream.ChannelTopic(channel.ID), stream.KindChannelUpdated, channelDelta(channel.ID, msg.CreatedAt, session.Role))
	}
	return msg, nil
}

type channelUpdate struct {
	ChannelID     string                 `json:"channel_id"`
	LastMessageAt time.Time              `json:"last_message_at"`
	From          domain.ParticipantRole `json:"from"`
}

func channelDelta(channelID string, at time.Time, from domain.ParticipantRole) channelUpdate {
	return channelUpdate{ChannelID: channelID, LastMessageAt: at, From: from}
}

// ListMessages returns the channel log as seen by the session's side:
// messages that side soft-deleted are filtered out. Ordering is
// (created_at, id); day-bucket grouping is a display concern.
func (s *ChatService) ListMessages(ctx context.Context, session domain.Session, channelID string) ([]domain.ChatMessage, error) {
	channel, err := s.GetChannel(ctx, session, channelID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByChannel(ctx, channel.ID)
	if err != nil {
		return nil, err
	}
	visible := make([]domain.ChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.DeletedFor(session.Role) {
			continue
		}
		visible = append(visible, msg)
	}
	return visible, nil
}

// MarkRead stamps read_at on every unread message authored by the
// counterparty and clears the session side's unread counter. Own sends are
// never touched, and an already-set read_at is never overwritten, so
// repeated calls are no-ops.
func (s *ChatService) MarkRead(ctx context.Context, session domain.Session, channelID string) (int64, error) {
	channel, err := s.GetChannel(ctx, session, channelID)
	if err != nil {
		return 0, err
	}
	readAt := s.now()
	count, err := s.messages.MarkReadBySender(ctx, channel.ID, session.Role.Counterpart(), readAt)
	if err != nil {
		return 0, err
	}
	if err := s.channels.ResetUnread(ctx, channel.ID, session.Role); err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventMessageRead,
		EntityID: channel.ID,
		Actor:    sessionActor(session),
		Payload: events.MessageReadPayload{
			Reader: session.Role,
			Count:  count,
		},
	})
	if s.broker != nil {
		s.broker.Publish(stream.MessagesTopic(channel.ID), stream.KindMessageRead, ReadPayload{
			ChannelID: channel.ID,
			Reader:    session.Role,
			ReadAt:    readAt,
			Count:     count,
		})
	}
	return count, nil
}

// DeleteMessage hides a message from the session side's view only. The
// other side keeps seeing it and storage keeps it until the retention
// horizon.
func (s *ChatService) DeleteMessage(ctx context.Context, session domain.Session, channelID, messageID string) error {
	channel, err := s.GetChannel(ctx, session, channelID)
	if err != nil {
		return err
	}
	if _, err := s.messages.GetByID(ctx, channel.ID, messageID); err != nil {
		return err
	}
	if err := s.messages.SetDeleted(ctx, channel.ID, messageID, session.Role); err != nil {
		return err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventMessageDeleted,
		EntityID: channel.ID,
		Actor:    sessionActor(session),
		Payload: events.MessageDeletedPayload{
			MessageID: messageID,
			DeletedBy: session.Role,
		},
	})
	if s.broker != nil {
		s.broker.Publish(stream.MessagesTopic(channel.ID), stream.KindMessageDeleted, DeletePayload{
			ChannelID: channel.ID,
			MessageID: messageID,
			DeletedBy: session.Role,
		})
	}
	return nil
}

// SetResolved flips the channel resolution flag. Orthogonal to ticket
// status.
func (s *ChatService) SetResolved(ctx context.Context, session domain.Session, channelID string, resolved bool) (*domain.ChatChannel, error) {
	if !session.IsAdmin() {
		return nil, util.NewPermissionDenied("staff required to resolve a channel")
	}
	status := domain.ChannelStatusOpen
	if resolved {
		status = domain.ChannelStatusResolved
	}
	if err := s.channels.SetStatus(ctx, channelID, status); err != nil {
		return nil, err
	}
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventChannelResolved,
		EntityID: channel.ID,
		Actor:    sessionActor(session),
		Payload:  events.ChannelResolvedPayload{Resolved: resolved},
	})
	if s.broker != nil {
		s.broker.Publish(stream.ChannelTopic(channel.ID), stream.KindChannelUpdated, *channel)
	}
	return channel, nil
}

// SetTyping records the typing flag and broadcasts it immediately. The call
// is fire-and-forget: tracker failures are logged, never surfaced, and
// debouncing is the caller's concern. Scope is checked without a storage
// read since the user's channel id is deterministic.
func (s *ChatService) SetTyping(ctx context.Context, session domain.Session, channelID string, isTyping bool) {
	if !s.allowPresence(session, channelID) {
		return
	}
	if err := s.presence.SetTyping(ctx, channelID, session.Role, isTyping); err != nil {
		s.logger.Warn("presence write failed",
			zap.String("channel_id", channelID),
			zap.Error(err))
	}
	if s.broker != nil {
		s.broker.Publish(stream.ChannelTopic(channelID), stream.KindTypingChanged, TypingPayload{
			ChannelID: channelID,
			Role:      session.Role,
			IsTyping:  isTyping,
		})
	}
}

// ClearTyping is the explicit teardown step a client runs on channel close.
// The tracker never clears state on its own when a subscriber vanishes.
func (s *ChatService) ClearTyping(ctx context.Context, session domain.Session, channelID string) {
	if !s.allowPresence(session, channelID) {
		return
	}
	if err := s.presence.Clear(ctx, channelID, session.Role); err != nil {
		s.logger.Warn("presence clear failed",
			zap.String("channel_id", channelID),
			zap.Error(err))
	}
	if s.broker != nil {
		s.broker.Publish(stream.ChannelTopic(channelID), stream.KindTypingChanged, TypingPayload{
			ChannelID: channelID,
			Role:      session.Role,
			IsTyping:  false,
		})
	}
}

// TypingState returns the current flags for a channel snapshot.
func (s *ChatService) TypingState(ctx context.Context, channelID string) map[domain.ParticipantRole]bool {
	state, err := s.presence.Typing(ctx, channelID)
	if err != nil {
		s.logger.Warn("presence read failed",
			zap.String("channel_id", channelID),
			zap.Error(err))
		return map[domain.ParticipantRole]bool{
			domain.RoleUser:  false,
			domain.RoleAdmin: false,
		}
	}
	return state
}

func (s *ChatService) allowPresence(session domain.Session, channelID string) bool {
	if session.IsAdmin() {
		return true
	}
	return channelID == domain.ChannelIDFor(session.ActorID)
}

func (s *ChatService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func bodyPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	return string(runes[:max-3]) + "..."
}
