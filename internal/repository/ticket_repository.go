package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/support-service/internal/domain"
	"github.com/carebridge/support-service/pkg/util"
)

// TicketRepository encapsulates ticket persistence. Tickets are never
// hard-deleted; terminal records stay for audit.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListByCouple(ctx context.Context, coupleID string, limit, offset int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the pgx-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, couple_id, user_id, user_name, user_gender, type, phone, edited_phone,
        reason, status, assigned_staff_id, assigned_staff_name, video_url, video_url_sent_at,
        resolved_at, cancelled_by, cancel_reason, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (couple_id, user_id, user_name, user_gender, type, phone, edited_phone, reason, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.CoupleID,
		ticket.UserID,
		ticket.UserName,
		ticket.UserGender,
		ticket.Type,
		ticket.Phone,
		ticket.EditedPhone,
		ticket.Reason,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	return wrapStorageErr(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET edited_phone=$1, status=$2, assigned_staff_id=$3, assigned_staff_name=$4,
            video_url=$5, video_url_sent_at=$6, resolved_at=$7, cancelled_by=$8, cancel_reason=$9,
            updated_at=NOW()
        WHERE id=$10`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.EditedPhone,
		ticket.Status,
		ticket.AssignedStaffID,
		ticket.AssignedStaffName,
		ticket.VideoURL,
		ticket.VideoURLSentAt,
		ticket.ResolvedAt,
		ticket.CancelledBy,
		ticket.CancelReason,
		ticket.ID,
	)
	if err != nil {
		return wrapStorageErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return util.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(ticketFields(&ticket)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, wrapStorageErr(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) ListByCouple(ctx context.Context, coupleID string, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE couple_id=$1
        ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, coupleID, limit, offset)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(ticketFields(&ticket)...); err != nil {
			return nil, wrapStorageErr(err)
		}
		result = append(result, ticket)
	}
	return result, wrapStorageErr(rows.Err())
}

func ticketFields(t *domain.Ticket) []any {
	return []any{
		&t.ID,
		&t.CoupleID,
		&t.UserID,
		&t.UserName,
		&t.UserGender,
		&t.Type,
		&t.Phone,
		&t.EditedPhone,
		&t.Reason,
		&t.Status,
		&t.AssignedStaffID,
		&t.AssignedStaffName,
		&t.VideoURL,
		&t.VideoURLSentAt,
		&t.ResolvedAt,
		&t.CancelledBy,
		&t.CancelReason,
		&t.CreatedAt,
		&t.UpdatedAt,
	}
}

// wrapStorageErr classifies connection and timeout failures as retryable.
func wrapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	if util.IsTransientCause(err) {
		return util.NewTransientStorage(err)
	}
	return err
}
