package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/support-service/internal/domain"
	"github.com/carebridge/support-service/pkg/util"
)

// ChannelRepository encapsulates chat channel persistence.
type ChannelRepository interface {
	// Create inserts the channel if it does not already exist. A concurrent
	// create for the same user is a no-op, keeping get-or-create idempotent.
	Create(ctx context.Context, channel *domain.ChatChannel) error
	GetByID(ctx context.Context, id string) (*domain.ChatChannel, error)
	// RecordMessage bumps last_message_at and the counterparty's unread
	// counter in one write.
	RecordMessage(ctx context.Context, channelID string, at time.Time, counterparty domain.ParticipantRole) error
	ResetUnread(ctx context.Context, channelID string, role domain.ParticipantRole) error
	SetStatus(ctx context.Context, channelID string, status domain.ChannelStatus) error
	ListAll(ctx context.Context) ([]domain.ChatChannel, error)
}

type channelRepository struct {
	pool *pgxpool.Pool
}

// NewChannelRepository instantiates the pgx-backed repository.
func NewChannelRepository(pool *pgxpool.Pool) ChannelRepository {
	return &channelRepository{pool: pool}
}

const channelColumns = `id, couple_id, user_id, user_name, user_gender, status,
        unread_user, unread_admin, last_message_at, created_at, updated_at`

func (r *channelRepository) Create(ctx context.Context, channel *domain.ChatChannel) error {
	const query = `
        INSERT INTO chat_channels (id, couple_id, user_id, user_name, user_gender, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query,
		channel.ID,
		channel.CoupleID,
		channel.UserID,
		channel.UserName,
		channel.UserGender,
		channel.Status,
	)
	return wrapStorageErr(err)
}

func (r *channelRepository) GetByID(ctx context.Context, id string) (*domain.ChatChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM chat_channels WHERE id=$1`
	var channel domain.ChatChannel
	if err := r.pool.QueryRow(ctx, query, id).Scan(channelFields(&channel)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("channel", map[string]any{"channel_id": id})
		}
		return nil, wrapStorageErr(err)
	}
	return &channel, nil
}

func (r *channelRepository) RecordMessage(ctx context.Context, channelID string, at time.Time, counterparty domain.ParticipantRole) error {
	column := "unread_user"
	if counterparty == domain.RoleAdmin {
		column = "unread_admin"
	}
	query := `UPDATE chat_channels SET last_message_at=$1, ` + column + `=` + column + `+1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, at, channelID)
	if err != nil {
		return wrapStorageErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return util.NewNotFound("channel", map[string]any{"channel_id": channelID})
	}
	return nil
}

func (r *channelRepository) ResetUnread(ctx context.Context, channelID string, role domain.ParticipantRole) error {
	column := "unread_user"
	if role == domain.RoleAdmin {
		column = "unread_admin"
	}
	query := `UPDATE chat_channels SET ` + column + `=0, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, channelID)
	if err != nil {
		return wrapStorageErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return util.NewNotFound("channel", map[string]any{"channel_id": channelID})
	}
	return nil
}

func (r *channelRepository) SetStatus(ctx context.Context, channelID string, status domain.ChannelStatus) error {
	const query = `UPDATE chat_channels SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, channelID)
	if err != nil {
		return wrapStorageErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return util.NewNotFound("channel", map[string]any{"channel_id": channelID})
	}
	return nil
}

func (r *channelRepository) ListAll(ctx context.Context) ([]domain.ChatChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM chat_channels ORDER BY last_message_at DESC NULLS LAST`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	defer rows.Close()

	var result []domain.ChatChannel
	for rows.Next() {
		var channel domain.ChatChannel
		if err := rows.Scan(channelFields(&channel)...); err != nil {
			return nil, wrapStorageErr(err)
		}
		result = append(result, channel)
	}
	return result, wrapStorageErr(rows.Err())
}

func channelFields(c *domain.ChatChannel) []any {
	return []any{
		&c.ID,
		&c.CoupleID,
		&c.UserID,
		&c.UserName,
		&c.UserGender,
		&c.Status,
		&c.UnreadUser,
		&c.UnreadAdmin,
		&c.LastMessageAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	}
}
