package domain

import "time"

// TicketType distinguishes call-back requests from video-meeting requests.
type TicketType string

const (
	TicketTypeCall  TicketType = "CALL"
	TicketTypeVideo TicketType = "VIDEO"
)

// TicketStatus enumerates lifecycle states for support tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusCompleted  TicketStatus = "COMPLETED"
	TicketStatusCancelled  TicketStatus = "CANCELLED"
)

// IsTerminal reports whether the status accepts no further transitions.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusCancelled
}

// CancelActor identifies which side cancelled a ticket.
type CancelActor string

const (
	CancelledByUser  CancelActor = "USER"
	CancelledByAdmin CancelActor = "ADMIN"
)

// MaxReasonLength bounds the free-text reason a user attaches to a request.
const MaxReasonLength = 200

// Ticket is the aggregate for support requests (call-back or video meeting).
type Ticket struct {
	ID                string
	CoupleID          string
	UserID            string
	UserName          string
	UserGender        string
	Type              TicketType
	Phone             string
	EditedPhone       *string
	Reason            *string
	Status            TicketStatus
	AssignedStaffID   *string
	AssignedStaffName *string
	VideoURL          *string
	VideoURLSentAt    *time.Time
	ResolvedAt        *time.Time
	CancelledBy       *CancelActor
	CancelReason      *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DialPhone returns the number to dial, preferring the staff-edited override.
func (t *Ticket) DialPhone() string {
	if t.EditedPhone != nil && *t.EditedPhone != "" {
		return *t.EditedPhone
	}
	return t.Phone
}
