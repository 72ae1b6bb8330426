package domain

import "time"

// ChannelStatus enumerates the channel resolution state. Resolution is
// orthogonal to ticket status; staff can resolve a conversation while
// tickets from the same household remain open.
type ChannelStatus string

const (
	ChannelStatusOpen     ChannelStatus = "OPEN"
	ChannelStatusResolved ChannelStatus = "RESOLVED"
)

// ChannelIDFor derives the one-per-user channel identity. The mapping is
// deterministic so repeated opens by the same user land on the same channel.
func ChannelIDFor(userID string) string {
	return "chat_" + userID
}

// ChatChannel is the persistent one-per-user conversation between a user and
// support staff. It is created lazily on first open and outlives individual
// tickets. Typing state is ephemeral and lives in the presence tracker.
type ChatChannel struct {
	ID            string
	CoupleID      string
	UserID        string
	UserName      string
	UserGender    string
	Status        ChannelStatus
	UnreadUser    int
	UnreadAdmin   int
	LastMessageAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UnreadFor returns the pending message count for the given side.
func (c *ChatChannel) UnreadFor(role ParticipantRole) int {
	if role == RoleAdmin {
		return c.UnreadAdmin
	}
	return c.UnreadUser
}
