package stream

import (
	"fmt"
	"testing"
)

func TestPublishOrder(t *testing.T) {
	broker := NewBroker(16, nil)
	sub := broker.Subscribe(MessagesTopic("chat_U-1"))
	defer sub.Cancel()

	for i := 0; i < 10; i++ {
		broker.Publish(MessagesTopic("chat_U-1"), KindMessageCreated, fmt.Sprintf("m%d", i))
	}

	for i := 0; i < 10; i++ {
		ev := <-sub.C
		if ev.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d", i, ev.Seq)
		}
		if ev.Payload != fmt.Sprintf("m%d", i) {
			t.Fatalf("event %d payload = %v", i, ev.Payload)
		}
	}
}

func TestTopicsAreIndependent(t *testing.T) {
	broker := NewBroker(16, nil)
	sub := broker.Subscribe(TicketTopic("t-1"))
	defer sub.Cancel()

	broker.Publish(TicketTopic("t-2"), KindTicketUpdated, "other")
	broker.Publish(TicketTopic("t-1"), KindTicketUpdated, "mine")

	ev := <-sub.C
	if ev.Payload != "mine" {
		t.Fatalf("crossed topics: %v", ev.Payload)
	}
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event: %+v", ev)
	default:
	}
}

func TestCancelClosesChannel(t *testing.T) {
	broker := NewBroker(16, nil)
	sub := broker.Subscribe(ChannelTopic("chat_U-1"))

	sub.Cancel()
	sub.Cancel() // repeated cancel is fine

	if _, open := <-sub.C; open {
		t.Fatal("channel still open after cancel")
	}
	if n := broker.SubscriberCount(ChannelTopic("chat_U-1")); n != 0 {
		t.Fatalf("subscriber count = %d after cancel", n)
	}

	// Publishing to a topic with no subscribers is a no-op.
	broker.Publish(ChannelTopic("chat_U-1"), KindChannelUpdated, "nobody home")
}

func TestSlowSubscriberIsEvicted(t *testing.T) {
	broker := NewBroker(2, nil)
	slow := broker.Subscribe(MessagesTopic("chat_U-1"))
	fast := broker.Subscribe(MessagesTopic("chat_U-1"))

	// Fill the slow subscriber's buffer, then overflow it. The fast one
	// drains as it goes.
	for i := 0; i < 3; i++ {
		broker.Publish(MessagesTopic("chat_U-1"), KindMessageCreated, i)
		<-fast.C
	}

	if n := broker.SubscriberCount(MessagesTopic("chat_U-1")); n != 1 {
		t.Fatalf("subscriber count = %d, want 1 after eviction", n)
	}

	// The evicted channel still yields its buffered events, then closes.
	var got int
	for range slow.C {
		got++
	}
	if got != 2 {
		t.Fatalf("evicted subscriber drained %d events, want 2", got)
	}

	// Cancel on an evicted subscription must not panic.
	slow.Cancel()
	fast.Cancel()
}
