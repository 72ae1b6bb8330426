package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carebridge/support-service/internal/domain"
)

// typingTTL expires abandoned typing flags so a client that never ran its
// teardown cannot leave a counterpart "typing" forever.
const typingTTL = 30 * time.Second

// RedisTracker keeps typing state in a redis hash per channel.
type RedisTracker struct {
	client *redis.Client
}

// NewRedisTracker wraps the given client.
func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

func typingKey(channelID string) string {
	return "presence:typing:" + channelID
}

// SetTyping writes the flag and refreshes the expiry.
func (t *RedisTracker) SetTyping(ctx context.Context, channelID string, role domain.ParticipantRole, isTyping bool) error {
	key := typingKey(channelID)
	val := "0"
	if isTyping {
		val = "1"
	}
	pipe := t.client.Pipeline()
	pipe.HSet(ctx, key, string(role), val)
	pipe.Expire(ctx, key, typingTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Typing returns the current flags for a channel. Absent roles read false.
func (t *RedisTracker) Typing(ctx context.Context, channelID string) (map[domain.ParticipantRole]bool, error) {
	raw, err := t.client.HGetAll(ctx, typingKey(channelID)).Result()
	if err != nil {
		return nil, err
	}
	state := map[domain.ParticipantRole]bool{
		domain.RoleUser:  false,
		domain.RoleAdmin: false,
	}
	for role, val := range raw {
		state[domain.ParticipantRole(role)] = val == "1"
	}
	return state, nil
}

// Clear removes one side's flag, the explicit client teardown step.
func (t *RedisTracker) Clear(ctx context.Context, channelID string, role domain.ParticipantRole) error {
	return t.client.HDel(ctx, typingKey(channelID), string(role)).Err()
}
