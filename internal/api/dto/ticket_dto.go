package dto

import (
	"time"

	"github.com/carebridge/support-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Type   domain.TicketType `json:"type"`
	Phone  string            `json:"phone"`
	Reason *string           `json:"reason,omitempty"`
}

// TransitionTicketRequest payload.
type TransitionTicketRequest struct {
	Status domain.TicketStatus `json:"status"`
	Reason string              `json:"reason,omitempty"`
}

// CancelTicketRequest payload.
type CancelTicketRequest struct {
	Reason string `json:"reason,omitempty"`
}

// UpdatePhoneRequest payload.
type UpdatePhoneRequest struct {
	Phone string `json:"phone"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID                string              `json:"id"`
	CoupleID          string              `json:"couple_id"`
	UserID            string              `json:"user_id"`
	UserName          string              `json:"user_name"`
	UserGender        string              `json:"user_gender,omitempty"`
	Type              domain.TicketType   `json:"type"`
	Phone             string              `json:"phone"`
	EditedPhone       *string             `json:"edited_phone,omitempty"`
	DialURI           string              `json:"dial_uri"`
	Reason            *string             `json:"reason,omitempty"`
	Status            domain.TicketStatus `json:"status"`
	AssignedStaffID   *string             `json:"assigned_staff_id,omitempty"`
	AssignedStaffName *string             `json:"assigned_staff_name,omitempty"`
	VideoURL          *string             `json:"video_url,omitempty"`
	VideoURLSentAt    *time.Time          `json:"video_url_sent_at,omitempty"`
	ResolvedAt        *time.Time          `json:"resolved_at,omitempty"`
	CancelledBy       *domain.CancelActor `json:"cancelled_by,omitempty"`
	CancelReason      *string             `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// VideoLinkResponse payload.
type VideoLinkResponse struct {
	URL    string     `json:"url"`
	SentAt *time.Time `json:"sent_at,omitempty"`
}
