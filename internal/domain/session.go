package domain

// ParticipantRole distinguishes the two sides of the support conversation.
type ParticipantRole string

const (
	RoleUser  ParticipantRole = "USER"
	RoleAdmin ParticipantRole = "ADMIN"
)

// Counterpart returns the opposite side of the conversation.
func (r ParticipantRole) Counterpart() ParticipantRole {
	if r == RoleAdmin {
		return RoleUser
	}
	return RoleAdmin
}

// Valid reports whether the role is one of the two known sides.
func (r ParticipantRole) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Session is the explicit actor context resolved by the external auth module
// before any core operation. Core code never reads ambient state; every call
// receives one of these.
type Session struct {
	ActorID   string
	ActorName string
	Role      ParticipantRole
	CoupleID  string
	Gender    string
}

// IsAdmin reports whether the session belongs to support staff.
func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// CancelActor maps the session role onto the ticket cancellation actor.
func (s Session) CancelActor() CancelActor {
	if s.IsAdmin() {
		return CancelledByAdmin
	}
	return CancelledByUser
}
