package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/carebridge/support-service/internal/config"
	"github.com/carebridge/support-service/internal/domain"
	"github.com/carebridge/support-service/internal/observability"
	"github.com/carebridge/support-service/internal/repository"
	"github.com/carebridge/support-service/internal/repository/memory"
)

func seedChannel(t *testing.T, channels *memory.ChannelStore, id string) {
	t.Helper()
	err := channels.Create(context.Background(), &domain.ChatChannel{
		ID:       id,
		CoupleID: "C_007",
		UserID:   "U-1",
		Status:   domain.ChannelStatusOpen,
	})
	if err != nil {
		t.Fatalf("seed channel: %v", err)
	}
}

func seedMessage(t *testing.T, messages *memory.MessageStore, channelID, id string, createdAt time.Time) {
	t.Helper()
	created, err := messages.Create(context.Background(), &domain.ChatMessage{
		ID:         id,
		ChannelID:  channelID,
		ClientKey:  id,
		SenderID:   "U-1",
		SenderType: domain.RoleUser,
		Body:       "hello",
		CreatedAt:  createdAt,
	})
	if err != nil || !created {
		t.Fatalf("seed message %s: created=%v err=%v", id, created, err)
	}
}

func TestRunOncePurgesExpiredMessages(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	channels := memory.NewChannelStore()
	messages := memory.NewMessageStore()

	seedChannel(t, channels, "chat_U-1")
	seedMessage(t, messages, "chat_U-1", "old", now.AddDate(0, 0, -8))
	seedMessage(t, messages, "chat_U-1", "boundary", now.AddDate(0, 0, -7))
	seedMessage(t, messages, "chat_U-1", "fresh", now.AddDate(0, 0, -1))

	janitor := NewRetentionJanitor(channels, messages, observability.NewMetrics(),
		config.RetentionConfig{HorizonDays: 7, Schedule: "@hourly"}, zap.NewNop())
	janitor.SetClock(func() time.Time { return now })

	purged, err := janitor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged %d messages, want 1", purged)
	}

	remaining, _ := messages.ListByChannel(context.Background(), "chat_U-1")
	if len(remaining) != 2 {
		t.Fatalf("%d messages remain, want 2", len(remaining))
	}
	for _, msg := range remaining {
		if msg.ID == "old" {
			t.Fatal("expired message survived the sweep")
		}
	}

	// An immediate second sweep finds nothing.
	purged, err = janitor.RunOnce(context.Background())
	if err != nil || purged != 0 {
		t.Fatalf("second sweep = (%d, %v), want (0, nil)", purged, err)
	}
}

func TestRunOnceIgnoresFlags(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	channels := memory.NewChannelStore()
	messages := memory.NewMessageStore()

	seedChannel(t, channels, "chat_U-1")
	old := now.AddDate(0, 0, -10)
	readAt := old.Add(time.Hour)
	created, err := messages.Create(context.Background(), &domain.ChatMessage{
		ID:             "flagged",
		ChannelID:      "chat_U-1",
		ClientKey:      "flagged",
		SenderID:       "U-1",
		SenderType:     domain.RoleUser,
		Body:           "read and hidden, still purged",
		CreatedAt:      old,
		ReadAt:         &readAt,
		DeletedByUser:  true,
		DeletedByAdmin: true,
	})
	if err != nil || !created {
		t.Fatalf("seed: created=%v err=%v", created, err)
	}

	janitor := NewRetentionJanitor(channels, messages, nil,
		config.RetentionConfig{HorizonDays: 7, Schedule: "@hourly"}, zap.NewNop())
	janitor.SetClock(func() time.Time { return now })

	purged, err := janitor.RunOnce(context.Background())
	if err != nil || purged != 1 {
		t.Fatalf("sweep = (%d, %v), want (1, nil)", purged, err)
	}
}

// failingMessages wraps the memory store and fails purge for one channel.
type failingMessages struct {
	repository.MessageRepository
	failChannel string
}

func (f *failingMessages) PurgeOlderThan(ctx context.Context, channelID string, cutoff time.Time) (int64, error) {
	if channelID == f.failChannel {
		return 0, errors.New("storage hiccup")
	}
	return f.MessageRepository.PurgeOlderThan(ctx, channelID, cutoff)
}

func TestRunOnceIsolatesChannelFailures(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	channels := memory.NewChannelStore()
	messages := memory.NewMessageStore()

	seedChannel(t, channels, "chat_U-1")
	seedChannel(t, channels, "chat_U-2")
	seedMessage(t, messages, "chat_U-1", "old-1", now.AddDate(0, 0, -8))
	seedMessage(t, messages, "chat_U-2", "old-2", now.AddDate(0, 0, -8))

	janitor := NewRetentionJanitor(channels,
		&failingMessages{MessageRepository: messages, failChannel: "chat_U-1"},
		observability.NewMetrics(),
		config.RetentionConfig{HorizonDays: 7, Schedule: "@hourly"}, zap.NewNop())
	janitor.SetClock(func() time.Time { return now })

	purged, err := janitor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged %d messages, want 1 from the healthy channel", purged)
	}

	healthy, _ := messages.ListByChannel(context.Background(), "chat_U-2")
	if len(healthy) != 0 {
		t.Fatal("healthy channel not swept")
	}
	stuck, _ := messages.ListByChannel(context.Background(), "chat_U-1")
	if len(stuck) != 1 {
		t.Fatal("failing channel unexpectedly swept")
	}
}
