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

// MessageRepository manages the per-channel append-only message log.
type MessageRepository interface {
	// Create appends the message. It is idempotent on (channel_id,
	// client_key): a replayed insert reports created=false and leaves the
	// log untouched.
	Create(ctx context.Context, msg *domain.ChatMessage) (created bool, err error)
	GetByID(ctx context.Context, channelID, messageID string) (*domain.ChatMessage, error)
	GetByClientKey(ctx context.Context, channelID, clientKey string) (*domain.ChatMessage, error)
	// ListByChannel returns all messages ordered by (created_at, id).
	ListByChannel(ctx context.Context, channelID string) ([]domain.ChatMessage, error)
	// MarkReadBySender stamps read_at on unread messages authored by the
	// given side. Already-read messages keep their original timestamp.
	MarkReadBySender(ctx context.Context, channelID string, sender domain.ParticipantRole, readAt time.Time) (int64, error)
	SetDeleted(ctx context.Context, channelID, messageID string, role domain.ParticipantRole) error
	// PurgeOlderThan hard-deletes messages created before the cutoff,
	// regardless of read or delete flags.
	PurgeOlderThan(ctx context.Context, channelID string, cutoff time.Time) (int64, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository instantiates the pgx-backed repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

const messageColumns = `id, channel_id, client_key, sender_id, sender_name, sender_type,
        body, created_at, read_at, deleted_by_user, deleted_by_admin`

func (r *messageRepository) Create(ctx context.Context, msg *domain.ChatMessage) (bool, error) {
	const query = `
        INSERT INTO chat_messages (id, channel_id, client_key, sender_id, sender_name, sender_type, body, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (channel_id, client_key) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query,
		msg.ID,
		msg.ChannelID,
		msg.ClientKey,
		msg.SenderID,
		msg.SenderName,
		msg.SenderType,
		msg.Body,
		msg.CreatedAt,
	)
	if err != nil {
		return false, wrapStorageErr(err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *messageRepository) GetByID(ctx context.Context, channelID, messageID string) (*domain.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE channel_id=$1 AND id=$2`
	return r.fetchSingle(ctx, query, channelID, messageID)
}

func (r *messageRepository) GetByClientKey(ctx context.Context, channelID, clientKey string) (*domain.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE channel_id=$1 AND client_key=$2`
	return r.fetchSingle(ctx, query, channelID, clientKey)
}

func (r *messageRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	if err := r.pool.QueryRow(ctx, query, args...).Scan(messageFields(&msg)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("message", nil)
		}
		return nil, wrapStorageErr(err)
	}
	return &msg, nil
}

func (r *messageRepository) ListByChannel(ctx context.Context, channelID string) ([]domain.ChatMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE channel_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	defer rows.Close()

	var result []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(messageFields(&msg)...); err != nil {
			return nil, wrapStorageErr(err)
		}
		result = append(result, msg)
	}
	return result, wrapStorageErr(rows.Err())
}

func (r *messageRepository) MarkReadBySender(ctx context.Context, channelID string, sender domain.ParticipantRole, readAt time.Time) (int64, error) {
	const query = `
        UPDATE chat_messages SET read_at=$1
        WHERE channel_id=$2 AND sender_type=$3 AND read_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, readAt, channelID, sender)
	if err != nil {
		return 0, wrapStorageErr(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *messageRepository) SetDeleted(ctx context.Context, channelID, messageID string, role domain.ParticipantRole) error {
	column := "deleted_by_user"
	if role == domain.RoleAdmin {
		column = "deleted_by_admin"
	}
	query := `UPDATE chat_messages SET ` + column + `=TRUE WHERE channel_id=$1 AND id=$2`
	cmd, err := r.pool.Exec(ctx, query, channelID, messageID)
	if err != nil {
		return wrapStorageErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return util.NewNotFound("message", map[string]any{"message_id": messageID})
	}
	return nil
}

func (r *messageRepository) PurgeOlderThan(ctx context.Context, channelID string, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM chat_messages WHERE channel_id=$1 AND created_at < $2`
	cmd, err := r.pool.Exec(ctx, query, channelID, cutoff)
	if err != nil {
		return 0, wrapStorageErr(err)
	}
	return cmd.RowsAffected(), nil
}

func messageFields(m *domain.ChatMessage) []any {
	return []any{
		&m.ID,
		&m.ChannelID,
		&m.ClientKey,
		&m.SenderID,
		&m.SenderName,
		&m.SenderType,
		&m.Body,
		&m.CreatedAt,
		&m.ReadAt,
		&m.DeletedByUser,
		&m.DeletedByAdmin,
	}
}
