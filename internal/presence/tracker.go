// Package presence holds ephemeral typing state for chat channels.
//
// The tracker is a last-write-wins cell keyed by (channel, role). Debouncing
// is a caller concern; the tracker never delays or coalesces writes. State
// is not cleared automatically on disconnect — the transport layer clears it
// on teardown, and backends may expire entries as a staleness backstop.
package presence

import (
	"context"

	"github.com/carebridge/support-service/internal/domain"
)

// Tracker stores typing state per participant per channel.
type Tracker interface {
	SetTyping(ctx context.Context, channelID string, role domain.ParticipantRole, isTyping bool) error
	Typing(ctx context.Context, channelID string) (map[domain.ParticipantRole]bool, error)
	Clear(ctx context.Context, channelID string, role domain.ParticipantRole) error
}
