package stream

import (
	"sync"

	"go.uber.org/zap"
)

// Delta kinds pushed to subscribers.
const (
	KindTicketUpdated  = "ticket_updated"
	KindChannelUpdated = "channel_updated"
	KindMessageCreated = "message_created"
	KindMessageRead    = "message_read"
	KindMessageDeleted = "message_deleted"
	KindTypingChanged  = "typing_changed"
)

// TicketTopic names the live feed for a single ticket.
func TicketTopic(ticketID string) string {
	return "ticket:" + ticketID
}

// ChannelTopic names the live feed for channel metadata and presence.
func ChannelTopic(channelID string) string {
	return "channel:" + channelID
}

// MessagesTopic names the live feed for a channel's message log.
func MessagesTopic(channelID string) string {
	return "messages:" + channelID
}

// Event is a single delta pushed to subscribers of a topic. Seq increases
// monotonically per topic in commit order.
type Event struct {
	Topic   string `json:"topic"`
	Kind    string `json:"kind"`
	Seq     uint64 `json:"seq"`
	Payload any    `json:"payload"`
}

// Subscription is a live feed handle. Cancel releases it; the channel is
// closed afterwards. Cancel is safe to call more than once.
type Subscription struct {
	C      <-chan Event
	cancel func()
}

// Cancel detaches the subscription from its topic.
func (s *Subscription) Cancel() {
	s.cancel()
}

type subscriber struct {
	ch chan Event
}

type topicState struct {
	seq  uint64
	subs map[*subscriber]struct{}
}

// Broker fans out entity mutations to live subscribers. Publishes for a
// topic are delivered in commit order; a subscriber that cannot keep up is
// dropped (its channel closed) rather than allowed to stall or reorder the
// feed for others.
type Broker struct {
	mu     sync.Mutex
	topics map[string]*topicState
	buffer int
	logger *zap.Logger
}

// NewBroker creates a broker with the given per-subscriber buffer size.
func NewBroker(buffer int, logger *zap.Logger) *Broker {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		topics: make(map[string]*topicState),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe attaches a new subscriber to the topic.
func (b *Broker) Subscribe(topic string) *Subscription {
	sub := &subscriber{ch: make(chan Event, b.buffer)}

	b.mu.Lock()
	ts, ok := b.topics[topic]
	if !ok {
		ts = &topicState{subs: make(map[*subscriber]struct{})}
		b.topics[topic] = ts
	}
	ts.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			ts, ok := b.topics[topic]
			if !ok {
				return
			}
			if _, exists := ts.subs[sub]; !exists {
				return
			}
			delete(ts.subs, sub)
			close(sub.ch)
			if len(ts.subs) == 0 {
				delete(b.topics, topic)
			}
		})
	}
	return &Subscription{C: sub.ch, cancel: cancel}
}

// Publish delivers a delta to every subscriber of the topic. It never
// blocks: subscribers whose buffers are full are evicted.
func (b *Broker) Publish(topic, kind string, payload any) {
	b.mu.Lock()
	ts, ok := b.topics[topic]
	if !ok {
		b.mu.Unlock()
		return
	}
	ts.seq++
	event := Event{Topic: topic, Kind: kind, Seq: ts.seq, Payload: payload}

	var dropped int
	for sub := range ts.subs {
		select {
		case sub.ch <- event:
		default:
			delete(ts.subs, sub)
			close(sub.ch)
			dropped++
		}
	}
	if len(ts.subs) == 0 {
		delete(b.topics, topic)
	}
	b.mu.Unlock()

	if dropped > 0 {
		b.logger.Warn("dropped slow subscribers",
			zap.String("topic", topic),
			zap.Int("count", dropped))
	}
}

// SubscriberCount reports the active subscribers for a topic.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.topics[topic]
	if !ok {
		return 0
	}
	return len(ts.subs)
}
