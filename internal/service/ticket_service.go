package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/carebridge/support-service/internal/config"
	"github.com/carebridge/support-service/internal/domain"
	"github.com/carebridge/support-service/internal/events"
	"github.com/carebridge/support-service/internal/meeting"
	"github.com/carebridge/support-service/internal/repository"
	"github.com/carebridge/support-service/internal/stream"
	"github.com/carebridge/support-service/pkg/util"
)

// TicketService is the lifecycle engine for support requests. Status edges
// are total functions of (current status, requested status); the transition
// table below is the only serialization point for concurrent writers.
type TicketService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	broker     *stream.Broker
	meeting    config.MeetingConfig
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Broker     *stream.Broker
	Meeting    config.MeetingConfig
	Now        func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Type   domain.TicketType
	Phone  string
	Reason *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		broker:     deps.Broker,
		meeting:    deps.Meeting,
		now:        now,
	}
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusPending:    {domain.TicketStatusInProgress, domain.TicketStatusCompleted, domain.TicketStatusCancelled},
	domain.TicketStatusInProgress: {domain.TicketStatusCompleted, domain.TicketStatusCancelled},
	domain.TicketStatusCompleted:  {},
	domain.TicketStatusCancelled:  {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Create files a new support request for the session's user.
func (s *TicketService) Create(ctx context.Context, session domain.Session, input TicketCreateInput) (*domain.Ticket, error) {
	if session.IsAdmin() {
		return nil, util.NewPermissionDenied("only users file support requests")
	}
	if input.Type != domain.TicketTypeCall && input.Type != domain.TicketTypeVideo {
		return nil, util.NewValidationError("type must be CALL or VIDEO", nil)
	}
	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		return nil, util.NewValidationError("phone required", nil)
	}
	if input.Reason != nil && utf8.RuneCountInString(*input.Reason) > domain.MaxReasonLength {
		return nil, util.NewValidationError(
			fmt.Sprintf("reason exceeds %d characters", domain.MaxReasonLength), nil)
	}

	ticket := &domain.Ticket{
		CoupleID:   session.CoupleID,
		UserID:     session.ActorID,
		UserName:   session.ActorName,
		UserGender: session.Gender,
		Type:       input.Type,
		Phone:      phone,
		Reason:     input.Reason,
		Status:     domain.TicketStatusPending,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		EntityID: ticket.ID,
		Actor:    sessionActor(session),
		Payload: events.TicketCreatedPayload{
			CoupleID: ticket.CoupleID,
			Type:     ticket.Type,
			UserName: ticket.UserName,
		},
	})
	s.publishDelta(ticket)
	return ticket, nil
}

// Get fetches a ticket, scoping users to their own household.
func (s *TicketService) Get(ctx context.Context, session domain.Session, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !session.IsAdmin() && ticket.CoupleID != session.CoupleID {
		return nil, util.NewPermissionDenied("ticket belongs to another household")
	}
	return ticket, nil
}

// ListByCouple returns the household's tickets. Users are restricted to
// their own couple id; staff may list any.
func (s *TicketService) ListByCouple(ctx context.Context, session domain.Session, coupleID string, limit, offset int) ([]domain.Ticket, error) {
	if !session.IsAdmin() && coupleID != session.CoupleID {
		return nil, util.NewPermissionDenied("couple scope mismatch")
	}
	return s.tickets.ListByCouple(ctx, coupleID, limit, offset)
}

// Transition moves a ticket along the status table, applying the side
// effects each edge requires. Off-table edges and writes to terminal
// tickets fail without mutating any field.
func (s *TicketService) Transition(ctx context.Context, session domain.Session, ticketID string, newStatus domain.TicketStatus, reason string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !isValidTransition(ticket.Status, newStatus) {
		return nil, util.NewInvalidTransition(
			fmt.Sprintf("cannot transition from %s to %s", ticket.Status, newStatus),
			map[string]any{"current": ticket.Status, "requested": newStatus})
	}

	oldStatus := ticket.Status
	switch newStatus {
	case domain.TicketStatusInProgress:
		if !session.IsAdmin() {
			return nil, util.NewPermissionDenied("staff required to claim a ticket")
		}
		staffID, staffName := session.ActorID, session.ActorName
		ticket.AssignedStaffID = &staffID
		ticket.AssignedStaffName = &staffName
	case domain.TicketStatusCompleted:
		if !session.IsAdmin() {
			return nil, util.NewPermissionDenied("staff required to complete a ticket")
		}
		resolvedAt := s.now()
		ticket.ResolvedAt = &resolvedAt
	case domain.TicketStatusCancelled:
		if !session.IsAdmin() && ticket.UserID != session.ActorID {
			return nil, util.NewPermissionDenied("cannot cancel another user's ticket")
		}
		reason = strings.TrimSpace(reason)
		if session.IsAdmin() && reason == "" {
			return nil, util.NewValidationError("cancel reason required for staff cancellation", nil)
		}
		actor := session.CancelActor()
		ticket.CancelledBy = &actor
		if reason != "" {
			ticket.CancelReason = &reason
		}
	}
	ticket.Status = newStatus

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		EntityID: ticket.ID,
		Actor:    sessionActor(session),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Reason:    reason,
		},
	})
	s.publishDelta(ticket)
	return ticket, nil
}

// Cancel is the user-facing wrapper over Transition to CANCELLED.
func (s *TicketService) Cancel(ctx context.Context, session domain.Session, ticketID, reason string) (*domain.Ticket, error) {
	return s.Transition(ctx, session, ticketID, domain.TicketStatusCancelled, reason)
}

// IssueVideoLink computes the deterministic meeting link for a video ticket
// and stamps video_url_sent_at. Reissuing on the same calendar date yields
// the same URL; the ticket status is untouched.
func (s *TicketService) IssueVideoLink(ctx context.Context, session domain.Session, ticketID string) (string, error) {
	if !session.IsAdmin() {
		return "", util.NewPermissionDenied("staff required to issue a video link")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return "", err
	}
	if ticket.Type != domain.TicketTypeVideo {
		return "", util.NewInvalidTransition("video link only available on video tickets",
			map[string]any{"type": ticket.Type})
	}
	if ticket.Status.IsTerminal() {
		return "", util.NewInvalidTransition(
			fmt.Sprintf("ticket is %s; no link can be issued", ticket.Status),
			map[string]any{"current": ticket.Status})
	}

	sentAt := s.now()
	url := meeting.BuildURL(s.meeting.Provider, s.meeting.Namespace, ticket.CoupleID, ticket.UserName, sentAt)
	ticket.VideoURL = &url
	ticket.VideoURLSentAt = &sentAt

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return "", err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventVideoLinkIssued,
		EntityID: ticket.ID,
		Actor:    sessionActor(session),
		Payload: events.VideoLinkIssuedPayload{
			URL:    url,
			SentAt: sentAt,
		},
	})
	s.publishDelta(ticket)
	return url, nil
}

// UpdatePhone records a staff override of the callback number.
func (s *TicketService) UpdatePhone(ctx context.Context, session domain.Session, ticketID, phone string) (*domain.Ticket, error) {
	if !session.IsAdmin() {
		return nil, util.NewPermissionDenied("staff required to edit the callback number")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status.IsTerminal() {
		return nil, util.NewInvalidTransition(
			fmt.Sprintf("ticket is %s; no further edits accepted", ticket.Status), nil)
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, util.NewValidationError("phone required", nil)
	}
	ticket.EditedPhone = &phone
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishDelta(ticket)
	return ticket, nil
}

// DialURI returns the tel: URI for the ticket's effective callback number.
func (s *TicketService) DialURI(ticket *domain.Ticket) string {
	return meeting.DialURI(ticket.DialPhone())
}

func (s *TicketService) publishDelta(ticket *domain.Ticket) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(stream.TicketTopic(ticket.ID), stream.KindTicketUpdated, *ticket)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func sessionActor(session domain.Session) events.Actor {
	return events.Actor{
		Role:    session.Role,
		ActorID: session.ActorID,
	}
}
