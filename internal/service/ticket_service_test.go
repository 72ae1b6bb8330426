package service

import (
	"context"
	"testing"
	"time"

	"github.com/carebridge/support-service/internal/config"
	"github.com/carebridge/support-service/internal/domain"
	"github.com/carebridge/support-service/internal/repository/memory"
	"github.com/carebridge/support-service/pkg/util"
)

var (
	userSession = domain.Session{
		ActorID:   "U-1",
		ActorName: "Sara",
		Role:      domain.RoleUser,
		CoupleID:  "C_007",
		Gender:    "female",
	}
	otherUserSession = domain.Session{
		ActorID:   "U-2",
		ActorName: "Mina",
		Role:      domain.RoleUser,
		CoupleID:  "C_008",
		Gender:    "female",
	}
	adminSession = domain.Session{
		ActorID:   "S-1",
		ActorName: "Dr. Alice",
		Role:      domain.RoleAdmin,
	}
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTicketService(t *testing.T, now time.Time) (*TicketService, *memory.TicketStore) {
	t.Helper()
	store := memory.NewTicketStore()
	store.SetClock(fixedClock(now))
	svc := NewTicketService(TicketDependencies{
		TicketRepo: store,
		Meeting:    config.MeetingConfig{Provider: "jit.si", Namespace: "carebridge"},
		Now:        fixedClock(now),
	})
	return svc, store
}

func mustCreateTicket(t *testing.T, svc *TicketService, session domain.Session, typ domain.TicketType) *domain.Ticket {
	t.Helper()
	ticket, err := svc.Create(context.Background(), session, TicketCreateInput{Type: typ, Phone: "+49 170 1234567"})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func TestCreateTicket(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc, _ := newTicketService(t, now)
	ctx := context.Background()

	ticket := mustCreateTicket(t, svc, userSession, domain.TicketTypeCall)
	if ticket.Status != domain.TicketStatusPending {
		t.Fatalf("new ticket status = %s, want %s", ticket.Status, domain.TicketStatusPending)
	}
	if ticket.CoupleID != "C_007" || ticket.UserID != "U-1" || ticket.UserName != "Sara" {
		t.Fatalf("session fields not copied onto ticket: %+v", ticket)
	}
	if ticket.ID == "" {
		t.Fatal("ticket id not assigned")
	}

	if _, err := svc.Create(ctx, adminSession, TicketCreateInput{Type: domain.TicketTypeCall, Phone: "123"}); util.CodeOf(err) != util.CodePermissionDenied {
		t.Fatalf("admin create = %v, want PERMISSION_DENIED", err)
	}
	if _, err := svc.Create(ctx, userSession, TicketCreateInput{Type: "FAX", Phone: "123"}); util.CodeOf(err) != util.CodeValidationFailed {
		t.Fatalf("unknown type = %v, want VALIDATION_FAILED", err)
	}
	if _, err := svc.Create(ctx, userSession, TicketCreateInput{Type: domain.TicketTypeCall, Phone: "   "}); util.CodeOf(err) != util.CodeValidationFailed {
		t.Fatalf("blank phone = %v, want VALIDATION_FAILED", err)
	}

	long := make([]rune, domain.MaxReasonLength+1)
	for i := range long {
		long[i] = 'x'
	}
	reason := string(long)
	if _, err := svc.Create(ctx, userSession, TicketCreateInput{Type: domain.TicketTypeCall, Phone: "123", Reason: &reason}); util.CodeOf(err) != util.CodeValidationFailed {
		t.Fatalf("over-length reason = %v, want VALIDATION_FAILED", err)
	}
}

func TestTransitionTable(t *testing.T) {
	statuses := []domain.TicketStatus{
		domain.TicketStatusPending,
		domain.TicketStatusInProgress,
		domain.TicketStatusCompleted,
		domain.TicketStatusCancelled,
	}
	allowed := map[domain.TicketStatus]map[domain.TicketStatus]bool{
		domain.TicketStatusPending: {
			domain.TicketStatusInProgress: true,
			domain.TicketStatusCompleted:  true,
			domain.TicketStatusCancelled:  true,
		},
		domain.TicketStatusInProgress: {
			domain.TicketStatusCompleted: true,
			domain.TicketStatusCancelled: true,
		},
	}

	for _, from := range statuses {
		for _, to := range statuses {
			got := isValidTransition(from, to)
			want := allowed[from][to]
			if got != want {
				t.Errorf("isValidTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTransitionSideEffects(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc, _ := newTicketService(t, now)
	ctx := context.Background()

	ticket := mustCreateTicket(t, svc, userSession, domain.TicketTypeCall)

	claimed, err := svc.Transition(ctx, adminSession, ticket.ID, domain.TicketStatusInProgress, "")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.AssignedStaffID == nil || *claimed.AssignedStaffID != "S-1" {
		t.Fatalf("claim did not record staff id: %+v", claimed)
	}
	if claimed.AssignedStaffName == nil || *claimed.AssignedStaffName != "Dr. Alice" {
		t.Fatalf("claim did not record staff name: %+v", claimed)
	}

	done, err := svc.Transition(ctx, adminSession, ticket.ID, domain.TicketStatusCompleted, "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.ResolvedAt == nil || !done.ResolvedAt.Equal(now) {
		t.Fatalf("complete did not stamp resolved_at: %+v", done.ResolvedAt)
	}
}

func TestTransitionPermissions(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc, _ := newTicketService(t, now)
	ctx := context.Background()

	ticket := mustCreateTicket(t, svc, userSession, domain.TicketTypeCall)

	if _, err := svc.Transition(ctx, userSession, ticket.ID, domain.TicketStatusInProgress, ""); util.CodeOf(err) != util.CodePermissionDenied {
		t.Fatalf("user claim = %v, want PERMISSION_DENIED", err)
	}
	if _, err := svc.Transition(ctx, userSession, ticket.ID, domain.TicketStatusCompleted, ""); util.CodeOf(err) != util.CodePermissionDenied {
		t.Fatalf("user complete = %v, want PERMISSION_DENIED", err)
	}
	if _, err := svc.Cancel(ctx, otherUserSession, ticket.ID, ""); util.CodeOf(err) != util.CodePermissionDenied {
		t.Fatalf("foreign user cancel = %v, want PERMISSION_DENIED", err)
	}

	// Failed attempts must not mutate the ticket.
	after, err := svc.Get(ctx, userSession, ticket.ID)
	if err != nil {
		t.Fatalf("get after failed transitions: %v", err)
	}
	if after.Status != domain.TicketStatusPending || after.AssignedStaffID != nil || after.ResolvedAt != nil {
		t.Fatalf("failed transition mutated ticket: %+v", after)
	}
}

func TestCancelSemantics(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("user cancels own ticket without reason", func(t *testing.T) {
		svc, _ := newTicketService(t, now)
		ticket := mustCreateTicket(t, svc, userSession, domain.TicketTypeCall)
		cancelled, err := svc.Cancel(ctx, userSession, ticket.ID, "")
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if cancelled.CancelledBy == nil || *cancelled.CancelledBy != domain.CancelledByUser {
			t.Fatalf("cancelled_by = %v, want %s", cancelled.CancelledBy, domain.CancelledByUser)
		}
		if cancelled.CancelReason != nil {
			t.Fatalf("empty reason stored: %v", *cancelled.CancelReason)
		}
	})

	t.Run("staff cancel requires reason", func(t *testing.T) {
		svc, _ := newTicketService(t, now)
		ticket := mustCreateTicket(t, svc, userSession, domain.TicketTypeCall)
		if _, err := svc.Cancel(ctx, adminSession, ticket.ID, "  "); util.CodeOf(err) != util.CodeValidationFailed {
			t.Fatalf("staff cancel without reason = %v, want VALIDATION_FAILED", err)
		}
		cancelled, err := svc.Cancel(ctx, adminSession, ticket.ID, "user unreachable")
		if err != nil {
			t.Fatalf("staff cancel: %v", err)
		}
		if cancelled.CancelledBy == nil || *cancelled.CancelledBy != domain.CancelledByAdmin {
			t.Fatalf("cancelled_by = %v, want %s", cancelled.CancelledBy, domain.CancelledByAdmin)
		}
		if cancelled.CancelReason == nil || *cancelled.CancelReason != "user unreachable" {
			t.Fatalf("cancel reason not stored: %v", cancelled.CancelReason)
		}
	})
}

func TestTerminalTicketsAreImmutable(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc, _ := newTicketService(t, now)
	ctx := context.Background()

	ticket := mustCreateTicket(t, svc, userSession, domain.TicketTypeVideo)
	if _, err := svc.Cancel(ctx, userSession, ticket.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	for _, next := range []domain.TicketStatus{
		domain.TicketStatusPending,
		domain.TicketStatusInProgress,
		domain.TicketStatusCompleted,
		domain.TicketStatusCancelled,
	} {
		if _, err := svc.Transition(ctx, adminSession, ticket.ID, next, "x"); util.CodeOf(err) != util.CodeInvalidTransition {
			t.Fatalf("transition %s from CANCELLED = %v, want INVALID_TRANSITION", next, err)
		}
	}
	if _, err := svc.IssueVideoLink(ctx, adminSession, ticket.ID); util.CodeOf(err) != util.CodeInvalidTransition {
		t.Fatal("video link issued on cancelled ticket")
	}
	if _, err := svc.UpdatePhone(ctx, adminSession, ticket.ID, "999"); util.CodeOf(err) != util.CodeInvalidTransition {
		t.Fatal("phone edit accepted on cancelled ticket")
	}
}

func TestIssueVideoLink(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc, _ := newTicketService(t, now)
	ctx := context.Background()

	ticket := mustCreateTicket(t, svc, userSession, domain.TicketTypeVideo)

	url, err := svc.IssueVideoLink(ctx, adminSession, ticket.ID)
	if err != nil {
		t.Fatalf("issue link: %v", err)
	}
	want := "https://meet.jit.si/carebridge-C-007-Sara-14032025"
	if url != want {
		t.Fatalf("url = %q, want %q", url, want)
	}

	// Same calendar date reissues the identical link; the ticket stays
	// whatever status it was in.
	again, err := svc.IssueVideoLink(ctx, adminSession, ticket.ID)
	if err != nil {
		t.Fatalf("reissue link: %v", err)
	}
	if again != url {
		t.Fatalf("same-day reissue changed url: %q vs %q", again, url)
	}
	stored, _ := svc.Get(ctx, adminSession, ticket.ID)
	if stored.Status != domain.TicketStatusPending {
		t.Fatalf("issuing a link changed status to %s", stored.Status)
	}
	if stored.VideoURLSentAt == nil || !stored.VideoURLSentAt.Equal(now) {
		t.Fatalf("video_url_sent_at = %v, want %v", stored.VideoURLSentAt, now)
	}

	if _, err := svc.IssueVideoLink(ctx, userSession, ticket.ID); util.CodeOf(err) != util.CodePermissionDenied {
		t.Fatalf("user issue = %v, want PERMISSION_DENIED", err)
	}

	call := mustCreateTicket(t, svc, userSession, domain.TicketTypeCall)
	if _, err := svc.IssueVideoLink(ctx, adminSession, call.ID); util.CodeOf(err) != util.CodeInvalidTransition {
		t.Fatalf("link on CALL ticket = %v, want INVALID_TRANSITION", err)
	}
}

func TestIssueVideoLinkVariesByDate(t *testing.T) {
	day1 := time.Date(2025, 3, 14, 23, 0, 0, 0, time.UTC)
	svc, store := newTicketService(t, day1)
	ctx := context.Background()

	ticket := mustCreateTicket(t, svc, userSession, domain.TicketTypeVideo)
	first, err := svc.IssueVideoLink(ctx, adminSession, ticket.ID)
	if err != nil {
		t.Fatalf("issue link: %v", err)
	}

	day2 := day1.Add(2 * time.Hour)
	svc2 := NewTicketService(TicketDependencies{
		TicketRepo: store,
		Meeting:    config.MeetingConfig{Provider: "jit.si", Namespace: "carebridge"},
		Now:        fixedClock(day2),
	})
	second, err := svc2.IssueVideoLink(ctx, adminSession, ticket.ID)
	if err != nil {
		t.Fatalf("issue link next day: %v", err)
	}
	if first == second {
		t.Fatalf("link did not vary across dates: %q", first)
	}
}

func TestUpdatePhoneAndDialURI(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc, _ := newTicketService(t, now)
	ctx := context.Background()

	ticket := mustCreateTicket(t, svc, userSession, domain.TicketTypeCall)
	if got := svc.DialURI(ticket); got != "tel:+491701234567" {
		t.Fatalf("dial uri = %q", got)
	}

	if _, err := svc.UpdatePhone(ctx, userSession, ticket.ID, "111"); util.CodeOf(err) != util.CodePermissionDenied {
		t.Fatalf("user phone edit = %v, want PERMISSION_DENIED", err)
	}

	edited, err := svc.UpdatePhone(ctx, adminSession, ticket.ID, "+49 30 555-0000")
	if err != nil {
		t.Fatalf("update phone: %v", err)
	}
	if edited.Phone != "+49 170 1234567" {
		t.Fatalf("original phone overwritten: %q", edited.Phone)
	}
	if got := svc.DialURI(edited); got != "tel:+49305550000" {
		t.Fatalf("dial uri after edit = %q", got)
	}
}

func TestTicketScoping(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc, _ := newTicketService(t, now)
	ctx := context.Background()

	ticket := mustCreateTicket(t, svc, userSession, domain.TicketTypeCall)

	if _, err := svc.Get(ctx, otherUserSession, ticket.ID); util.CodeOf(err) != util.CodePermissionDenied {
		t.Fatalf("cross-household get = %v, want PERMISSION_DENIED", err)
	}
	if _, err := svc.Get(ctx, adminSession, ticket.ID); err != nil {
		t.Fatalf("staff get: %v", err)
	}
	if _, err := svc.ListByCouple(ctx, otherUserSession, "C_007", 10, 0); util.CodeOf(err) != util.CodePermissionDenied {
		t.Fatalf("cross-household list = %v, want PERMISSION_DENIED", err)
	}
	listed, err := svc.ListByCouple(ctx, adminSession, "C_007", 10, 0)
	if err != nil || len(listed) != 1 {
		t.Fatalf("staff list = %v (%d tickets)", err, len(listed))
	}
	if _, err := svc.Get(ctx, userSession, "no-such-ticket"); util.CodeOf(err) != util.CodeNotFound {
		t.Fatalf("missing ticket = %v, want NOT_FOUND", err)
	}
}
