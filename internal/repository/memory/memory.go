// Package memory provides in-process implementations of the repository
// interfaces. They back the service in development mode (no POSTGRES_DSN)
// and give unit tests a fake store with the same contract as the pgx
// repositories.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/support-service/internal/domain"
	"github.com/carebridge/support-service/pkg/util"
)

// TicketStore is an in-memory repository.TicketRepository.
type TicketStore struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
	now     func() time.Time
}

// NewTicketStore creates an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: make(map[string]domain.Ticket), now: time.Now}
}

// SetClock overrides the store clock, for tests.
func (s *TicketStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *TicketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	ts := s.now()
	ticket.CreatedAt = ts
	ticket.UpdatedAt = ts
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s *TicketStore) Update(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.ID]; !ok {
		return util.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
	}
	ticket.UpdatedAt = s.now()
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s *TicketStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return &ticket, nil
}

func (s *TicketStore) ListByCouple(ctx context.Context, coupleID string, limit, offset int) ([]domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Ticket
	for _, ticket := range s.tickets {
		if ticket.CoupleID == coupleID {
			result = append(result, ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if offset > 0 {
		if offset >= len(result) {
			return nil, nil
		}
		result = result[offset:]
	}
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// ChannelStore is an in-memory repository.ChannelRepository.
type ChannelStore struct {
	mu       sync.RWMutex
	channels map[string]domain.ChatChannel
	now      func() time.Time
}

// NewChannelStore creates an empty store.
func NewChannelStore() *ChannelStore {
	return &ChannelStore{channels: make(map[string]domain.ChatChannel), now: time.Now}
}

// SetClock overrides the store clock, for tests.
func (s *ChannelStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *ChannelStore) Create(ctx context.Context, channel *domain.ChatChannel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channel.ID]; ok {
		return nil
	}
	ts := s.now()
	channel.CreatedAt = ts
	channel.UpdatedAt = ts
	s.channels[channel.ID] = *channel
	return nil
}

func (s *ChannelStore) GetByID(ctx context.Context, id string) (*domain.ChatChannel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	channel, ok := s.channels[id]
	if !ok {
		return nil, util.NewNotFound("channel", map[string]any{"channel_id": id})
	}
	return &channel, nil
}

func (s *ChannelStore) RecordMessage(ctx context.Context, channelID string, at time.Time, counterparty domain.ParticipantRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	channel, ok := s.channels[channelID]
	if !ok {
		return util.NewNotFound("channel", map[string]any{"channel_id": channelID})
	}
	channel.LastMessageAt = &at
	if counterparty == domain.RoleAdmin {
		channel.UnreadAdmin++
	} else {
		channel.UnreadUser++
	}
	channel.UpdatedAt = s.now()
	s.channels[channelID] = channel
	return nil
}

func (s *ChannelStore) ResetUnread(ctx context.Context, channelID string, role domain.ParticipantRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	channel, ok := s.channels[channelID]
	if !ok {
		return util.NewNotFound("channel", map[string]any{"channel_id": channelID})
	}
	if role == domain.RoleAdmin {
		channel.UnreadAdmin = 0
	} else {
		channel.UnreadUser = 0
	}
	channel.UpdatedAt = s.now()
	s.channels[channelID] = channel
	return nil
}

func (s *ChannelStore) SetStatus(ctx context.Context, channelID string, status domain.ChannelStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	channel, ok := s.channels[channelID]
	if !ok {
		return util.NewNotFound("channel", map[string]any{"channel_id": channelID})
	}
	channel.Status = status
	channel.UpdatedAt = s.now()
	s.channels[channelID] = channel
	return nil
}

func (s *ChannelStore) ListAll(ctx context.Context) ([]domain.ChatChannel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.ChatChannel, 0, len(s.channels))
	for _, channel := range s.channels {
		result = append(result, channel)
	}
	sort.Slice(result, func(i, j int) bool {
		left, right := result[i].LastMessageAt, result[j].LastMessageAt
		switch {
		case left == nil:
			return false
		case right == nil:
			return true
		default:
			return left.After(*right)
		}
	})
	return result, nil
}

// MessageStore is an in-memory repository.MessageRepository.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[string][]domain.ChatMessage
	byKey    map[string]string
}

// NewMessageStore creates an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[string][]domain.ChatMessage),
		byKey:    make(map[string]string),
	}
}

func keyIndex(channelID, clientKey string) string {
	return channelID + "|" + clientKey
}

func (s *MessageStore) Create(ctx context.Context, msg *domain.ChatMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[keyIndex(msg.ChannelID, msg.ClientKey)]; exists {
		return false, nil
	}
	s.messages[msg.ChannelID] = append(s.messages[msg.ChannelID], *msg)
	s.sortLocked(msg.ChannelID)
	s.byKey[keyIndex(msg.ChannelID, msg.ClientKey)] = msg.ID
	return true, nil
}

func (s *MessageStore) GetByID(ctx context.Context, channelID, messageID string) (*domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, msg := range s.messages[channelID] {
		if msg.ID == messageID {
			found := msg
			return &found, nil
		}
	}
	return nil, util.NewNotFound("message", map[string]any{"message_id": messageID})
}

func (s *MessageStore) GetByClientKey(ctx context.Context, channelID, clientKey string) (*domain.ChatMessage, error) {
	s.mu.RLock()
	id, ok := s.byKey[keyIndex(channelID, clientKey)]
	s.mu.RUnlock()
	if !ok {
		return nil, util.NewNotFound("message", nil)
	}
	return s.GetByID(ctx, channelID, id)
}

func (s *MessageStore) ListByChannel(ctx context.Context, channelID string) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.ChatMessage, len(s.messages[channelID]))
	copy(result, s.messages[channelID])
	return result, nil
}

func (s *MessageStore) MarkReadBySender(ctx context.Context, channelID string, sender domain.ParticipantRole, readAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	msgs := s.messages[channelID]
	for i := range msgs {
		if msgs[i].SenderType == sender && msgs[i].ReadAt == nil {
			ts := readAt
			msgs[i].ReadAt = &ts
			count++
		}
	}
	return count, nil
}

func (s *MessageStore) SetDeleted(ctx context.Context, channelID, messageID string, role domain.ParticipantRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[channelID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			if role == domain.RoleAdmin {
				msgs[i].DeletedByAdmin = true
			} else {
				msgs[i].DeletedByUser = true
			}
			return nil
		}
	}
	return util.NewNotFound("message", map[string]any{"message_id": messageID})
}

func (s *MessageStore) PurgeOlderThan(ctx context.Context, channelID string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[channelID]
	kept := msgs[:0]
	var purged int64
	for _, msg := range msgs {
		if msg.CreatedAt.Before(cutoff) {
			delete(s.byKey, keyIndex(channelID, msg.ClientKey))
			purged++
			continue
		}
		kept = append(kept, msg)
	}
	s.messages[channelID] = kept
	return purged, nil
}

func (s *MessageStore) sortLocked(channelID string) {
	msgs := s.messages[channelID]
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].Before(&msgs[j])
	})
}
