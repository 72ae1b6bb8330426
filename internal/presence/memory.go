package presence

import (
	"context"
	"sync"

	"github.com/carebridge/support-service/internal/domain"
)

// MemoryTracker is the in-process tracker used in development mode and tests.
type MemoryTracker struct {
	mu    sync.RWMutex
	state map[string]map[domain.ParticipantRole]bool
}

// NewMemoryTracker creates an empty tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{state: make(map[string]map[domain.ParticipantRole]bool)}
}

// SetTyping records the flag, last write wins.
func (t *MemoryTracker) SetTyping(ctx context.Context, channelID string, role domain.ParticipantRole, isTyping bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	flags, ok := t.state[channelID]
	if !ok {
		flags = make(map[domain.ParticipantRole]bool)
		t.state[channelID] = flags
	}
	flags[role] = isTyping
	return nil
}

// Typing returns the current flags for a channel. Absent roles read false.
func (t *MemoryTracker) Typing(ctx context.Context, channelID string) (map[domain.ParticipantRole]bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state := map[domain.ParticipantRole]bool{
		domain.RoleUser:  false,
		domain.RoleAdmin: false,
	}
	for role, val := range t.state[channelID] {
		state[role] = val
	}
	return state, nil
}

// Clear removes one side's flag.
func (t *MemoryTracker) Clear(ctx context.Context, channelID string, role domain.ParticipantRole) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if flags, ok := t.state[channelID]; ok {
		delete(flags, role)
		if len(flags) == 0 {
			delete(t.state, channelID)
		}
	}
	return nil
}
