package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/carebridge/support-service/internal/domain"
	"github.com/carebridge/support-service/internal/presence"
	"github.com/carebridge/support-service/internal/repository/memory"
	"github.com/carebridge/support-service/pkg/util"
)

func newChatService(t *testing.T, now time.Time) *ChatService {
	t.Helper()
	channels := memory.NewChannelStore()
	channels.SetClock(fixedClock(now))
	return NewChatService(ChatDependencies{
		ChannelRepo: channels,
		MessageRepo: memory.NewMessageStore(),
		Presence:    presence.NewMemoryTracker(),
		Now:         fixedClock(now),
	})
}

func mustOpenChannel(t *testing.T, svc *ChatService, session domain.Session) *domain.ChatChannel {
	t.Helper()
	channel, err := svc.GetOrCreate(context.Background(), session)
	if err != nil {
		t.Fatalf("open channel: %v", err)
	}
	return channel
}

func mustSend(t *testing.T, svc *ChatService, session domain.Session, channelID, body string) *domain.ChatMessage {
	t.Helper()
	msg, err := svc.Send(context.Background(), session, channelID, "", body)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	return msg
}

func TestGetOrCreateChannel(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc := newChatService(t, now)
	ctx := context.Background()

	first := mustOpenChannel(t, svc, userSession)
	if first.ID != "chat_U-1" {
		t.Fatalf("channel id = %q, want chat_U-1", first.ID)
	}
	if first.Status != domain.ChannelStatusOpen {
		t.Fatalf("new channel status = %s", first.Status)
	}

	second := mustOpenChannel(t, svc, userSession)
	if second.ID != first.ID || !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("repeated open created a new channel: %+v vs %+v", second, first)
	}

	if _, err := svc.GetOrCreate(ctx, adminSession); util.CodeOf(err) != util.CodePermissionDenied {
		t.Fatalf("admin get-or-create = %v, want PERMISSION_DENIED", err)
	}
}

func TestChannelScoping(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc := newChatService(t, now)
	ctx := context.Background()

	channel := mustOpenChannel(t, svc, userSession)

	if _, err := svc.GetChannel(ctx, otherUserSession, channel.ID); util.CodeOf(err) != util.CodePermissionDenied {
		t.Fatalf("foreign user get = %v, want PERMISSION_DENIED", err)
	}
	if _, err := svc.GetChannel(ctx, adminSession, channel.ID); err != nil {
		t.Fatalf("staff get: %v", err)
	}
	if _, err := svc.ListChannels(ctx, userSession); util.CodeOf(err) != util.CodePermissionDenied {
		t.Fatalf("user list channels = %v, want PERMISSION_DENIED", err)
	}
	if _, err := svc.GetChannel(ctx, adminSession, "chat_ghost"); util.CodeOf(err) != util.CodeNotFound {
		t.Fatalf("missing channel = %v, want NOT_FOUND", err)
	}
}

func TestSendValidation(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc := newChatService(t, now)
	ctx := context.Background()

	channel := mustOpenChannel(t, svc, userSession)

	if _, err := svc.Send(ctx, userSession, channel.ID, "", "   "); util.CodeOf(err) != util.CodeInvalidMessage {
		t.Fatalf("blank body = %v, want INVALID_MESSAGE", err)
	}
	over := strings.Repeat("x", domain.MaxBodyLength+1)
	if _, err := svc.Send(ctx, userSession, channel.ID, "", over); util.CodeOf(err) != util.CodeInvalidMessage {
		t.Fatalf("over-length body = %v, want INVALID_MESSAGE", err)
	}
	// Validation happens before the channel lookup, so a bad body on a bad
	// channel still reports INVALID_MESSAGE.
	if _, err := svc.Send(ctx, userSession, "chat_ghost", "", ""); util.CodeOf(err) != util.CodeInvalidMessage {
		t.Fatalf("blank body on missing channel = %v, want INVALID_MESSAGE", err)
	}

	msgs, err := svc.ListMessages(ctx, userSession, channel.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("rejected sends reached storage: %d messages", len(msgs))
	}
}

func TestSendBumpsCounterpartUnread(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc := newChatService(t, now)
	ctx := context.Background()

	channel := mustOpenChannel(t, svc, userSession)
	mustSend(t, svc, userSession, channel.ID, "hello")
	mustSend(t, svc, userSession, channel.ID, "anyone there?")

	after, _ := svc.GetChannel(ctx, adminSession, channel.ID)
	if after.UnreadFor(domain.RoleAdmin) != 2 {
		t.Fatalf("admin unread = %d, want 2", after.UnreadFor(domain.RoleAdmin))
	}
	if after.UnreadFor(domain.RoleUser) != 0 {
		t.Fatalf("user unread = %d, want 0", after.UnreadFor(domain.RoleUser))
	}
	if after.LastMessageAt == nil || !after.LastMessageAt.Equal(now) {
		t.Fatalf("last_message_at = %v, want %v", after.LastMessageAt, now)
	}

	mustSend(t, svc, adminSession, channel.ID, "here")
	after, _ = svc.GetChannel(ctx, adminSession, channel.ID)
	if after.UnreadFor(domain.RoleUser) != 1 {
		t.Fatalf("user unread after staff reply = %d, want 1", after.UnreadFor(domain.RoleUser))
	}
}

func TestSendClientKeyIdempotent(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc := newChatService(t, now)
	ctx := context.Background()

	channel := mustOpenChannel(t, svc, userSession)

	first, err := svc.Send(ctx, userSession, channel.ID, "key-1", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	replay, err := svc.Send(ctx, userSession, channel.ID, "key-1", "hello")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.ID != first.ID {
		t.Fatalf("replay produced a new message: %q vs %q", replay.ID, first.ID)
	}

	msgs, _ := svc.ListMessages(ctx, userSession, channel.ID)
	if len(msgs) != 1 {
		t.Fatalf("replay duplicated the message: %d stored", len(msgs))
	}
	after, _ := svc.GetChannel(ctx, adminSession, channel.ID)
	if after.UnreadFor(domain.RoleAdmin) != 1 {
		t.Fatalf("replay bumped unread to %d", after.UnreadFor(domain.RoleAdmin))
	}
}

func TestMessageOrdering(t *testing.T) {
	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	channels := memory.NewChannelStore()
	messages := memory.NewMessageStore()

	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	svc := NewChatService(ChatDependencies{
		ChannelRepo: channels,
		MessageRepo: messages,
		Presence:    presence.NewMemoryTracker(),
		Now:         clock,
	})
	ctx := context.Background()

	channel := mustOpenChannel(t, svc, userSession)
	bodies := []string{"one", "two", "three", "four"}
	for _, body := range bodies {
		mustSend(t, svc, userSession, channel.ID, body)
	}

	msgs, err := svc.ListMessages(ctx, userSession, channel.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != len(bodies) {
		t.Fatalf("stored %d messages, want %d", len(msgs), len(bodies))
	}
	for i, body := range bodies {
		if msgs[i].Body != body {
			t.Fatalf("position %d = %q, want %q", i, msgs[i].Body, body)
		}
	}
}

func TestMarkRead(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc := newChatService(t, now)
	ctx := context.Background()

	channel := mustOpenChannel(t, svc, userSession)
	mustSend(t, svc, userSession, channel.ID, "question")
	mustSend(t, svc, adminSession, channel.ID, "answer one")
	mustSend(t, svc, adminSession, channel.ID, "answer two")

	count, err := svc.MarkRead(ctx, userSession, channel.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if count != 2 {
		t.Fatalf("marked %d messages, want 2", count)
	}

	msgs, _ := svc.ListMessages(ctx, userSession, channel.ID)
	for _, msg := range msgs {
		switch msg.SenderType {
		case domain.RoleAdmin:
			if msg.ReadAt == nil || !msg.ReadAt.Equal(now) {
				t.Fatalf("staff message not stamped: %+v", msg.ReadAt)
			}
		case domain.RoleUser:
			if msg.ReadAt != nil {
				t.Fatalf("own send stamped read: %+v", msg.ReadAt)
			}
		}
	}

	after, _ := svc.GetChannel(ctx, userSession, channel.ID)
	if after.UnreadFor(domain.RoleUser) != 0 {
		t.Fatalf("unread not cleared: %d", after.UnreadFor(domain.RoleUser))
	}

	// Second pass finds nothing unread and stays quiet.
	count, err = svc.MarkRead(ctx, userSession, channel.ID)
	if err != nil || count != 0 {
		t.Fatalf("repeat mark read = (%d, %v), want (0, nil)", count, err)
	}
}

func TestDeleteMessagePerSide(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc := newChatService(t, now)
	ctx := context.Background()

	channel := mustOpenChannel(t, svc, userSession)
	kept := mustSend(t, svc, userSession, channel.ID, "keep this")
	hidden := mustSend(t, svc, adminSession, channel.ID, "hide this")

	if err := svc.DeleteMessage(ctx, userSession, channel.ID, hidden.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	userView, _ := svc.ListMessages(ctx, userSession, channel.ID)
	if len(userView) != 1 || userView[0].ID != kept.ID {
		t.Fatalf("user view = %d messages", len(userView))
	}
	adminView, _ := svc.ListMessages(ctx, adminSession, channel.ID)
	if len(adminView) != 2 {
		t.Fatalf("admin view lost messages: %d", len(adminView))
	}

	if err := svc.DeleteMessage(ctx, userSession, channel.ID, "no-such-message"); util.CodeOf(err) != util.CodeNotFound {
		t.Fatalf("delete missing = %v, want NOT_FOUND", err)
	}
}

func TestSetResolved(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc := newChatService(t, now)
	ctx := context.Background()

	channel := mustOpenChannel(t, svc, userSession)

	if _, err := svc.SetResolved(ctx, userSession, channel.ID, true); util.CodeOf(err) != util.CodePermissionDenied {
		t.Fatalf("user resolve = %v, want PERMISSION_DENIED", err)
	}

	resolved, err := svc.SetResolved(ctx, adminSession, channel.ID, true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != domain.ChannelStatusResolved {
		t.Fatalf("status = %s, want %s", resolved.Status, domain.ChannelStatusResolved)
	}

	// A resolved channel still accepts messages; resolution is a staff inbox
	// flag, not a write lock.
	mustSend(t, svc, userSession, channel.ID, "one more thing")

	reopened, err := svc.SetResolved(ctx, adminSession, channel.ID, false)
	if err != nil || reopened.Status != domain.ChannelStatusOpen {
		t.Fatalf("reopen = (%v, %v)", reopened, err)
	}
}

func TestTypingState(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc := newChatService(t, now)
	ctx := context.Background()

	channel := mustOpenChannel(t, svc, userSession)

	svc.SetTyping(ctx, userSession, channel.ID, true)
	state := svc.TypingState(ctx, channel.ID)
	if !state[domain.RoleUser] || state[domain.RoleAdmin] {
		t.Fatalf("typing state = %v", state)
	}

	svc.ClearTyping(ctx, userSession, channel.ID)
	state = svc.TypingState(ctx, channel.ID)
	if state[domain.RoleUser] {
		t.Fatalf("clear did not reset typing: %v", state)
	}

	// Foreign users cannot scribble presence onto someone else's channel.
	svc.SetTyping(ctx, otherUserSession, channel.ID, true)
	state = svc.TypingState(ctx, channel.ID)
	if state[domain.RoleUser] {
		t.Fatalf("foreign typing leaked: %v", state)
	}
}

func TestListChannelsOrdering(t *testing.T) {
	base := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	channels := memory.NewChannelStore()
	messages := memory.NewMessageStore()
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	svc := NewChatService(ChatDependencies{
		ChannelRepo: channels,
		MessageRepo: messages,
		Presence:    presence.NewMemoryTracker(),
		Now:         clock,
	})
	ctx := context.Background()

	first := mustOpenChannel(t, svc, userSession)
	second := mustOpenChannel(t, svc, otherUserSession)
	mustSend(t, svc, userSession, first.ID, "older")
	mustSend(t, svc, otherUserSession, second.ID, "newer")

	listed, err := svc.ListChannels(ctx, adminSession)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d channels, want 2", len(listed))
	}
	if listed[0].ID != second.ID {
		t.Fatalf("most recent channel not first: %q", listed[0].ID)
	}
}
