package repository

import (
	"context"
	"errors"
	"time"

	"classline/internal/domain/message"
	classline_errors "classline/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresMessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

const messageColumns = `m.id, m.conversation_id, m.sender_id, u.display_name,
	m.client_message_id, m.content, m.attachment_id, m.created_at, m.deleted_at`

func scanMessage(row pgx.Row) (message.Message, error) {
	var m message.Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName,
		&m.ClientMessageID, &m.Content, &m.AttachmentID, &m.CreatedAt, &m.DeletedAt)
	if err != nil {
		return message.Message{}, mapError(err)
	}
	return m, nil
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, sender_id, client_message_id, content, attachment_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		m.ConversationID, m.SenderID, m.ClientMessageID, m.Content, m.AttachmentID,
	).Scan(&m.ID, &m.CreatedAt)
	return mapError(err)
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id int64) (message.Message, error) {
	return scanMessage(r.db.QueryRow(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m JOIN users u ON u.id = m.sender_id
		 WHERE m.id = $1`, id))
}

func (r *PostgresMessageRepository) GetByClientMessageID(ctx context.Context, conversationID int64, clientMsgID string) (message.Message, error) {
	return scanMessage(r.db.QueryRow(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m JOIN users u ON u.id = m.sender_id
		 WHERE m.conversation_id = $1 AND m.client_message_id = $2`,
		conversationID, clientMsgID))
}

func (r *PostgresMessageRepository) GetConversationMessages(ctx context.Context, conversationID int64, before time.Time, limit int) ([]message.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m JOIN users u ON u.id = m.sender_id
		 WHERE m.conversation_id = $1 AND m.created_at < $2
		 ORDER BY m.created_at ASC
		 LIMIT $3`, conversationID, before, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var messages []message.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *PostgresMessageRepository) GetLatestMessage(ctx context.Context, conversationID int64) (message.Message, error) {
	return scanMessage(r.db.QueryRow(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m JOIN users u ON u.id = m.sender_id
		 WHERE m.conversation_id = $1
		 ORDER BY m.created_at DESC
		 LIMIT 1`, conversationID))
}

// SoftDelete flags the message deleted. Idempotent: deleting an already
// deleted message keeps the original deleted_at.
func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE messages SET deleted_at = COALESCE(deleted_at, now()) WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return classline_errors.ErrNotFound
	}
	return nil
}

// SetReaction upserts a user's single reaction on a message. When the user
// already holds a different emoji, it is replaced and the prior reaction is
// returned so the caller can broadcast its removal.
func (r *PostgresMessageRepository) SetReaction(ctx context.Context, reaction *message.Reaction) (*message.Reaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var prior message.Reaction
	err = tx.QueryRow(ctx,
		`SELECT r.message_id, r.user_id, u.display_name, r.emoji, r.created_at
		 FROM message_reactions r JOIN users u ON u.id = r.user_id
		 WHERE r.message_id = $1 AND r.user_id = $2`,
		reaction.MessageID, reaction.UserID,
	).Scan(&prior.MessageID, &prior.UserID, &prior.UserName, &prior.Emoji, &prior.CreatedAt)

	var replaced *message.Reaction
	switch {
	case err == nil:
		if prior.Emoji == reaction.Emoji {
			return nil, classline_errors.ErrAlreadyExists
		}
		replaced = &prior
		if _, err := tx.Exec(ctx,
			`DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2`,
			reaction.MessageID, reaction.UserID); err != nil {
			return nil, mapError(err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		// first reaction from this user
	default:
		return nil, mapError(err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO message_reactions (message_id, user_id, emoji)
		 VALUES ($1, $2, $3)
		 RETURNING created_at`,
		reaction.MessageID, reaction.UserID, reaction.Emoji,
	).Scan(&reaction.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return replaced, nil
}

func (r *PostgresMessageRepository) RemoveReaction(ctx context.Context, messageID, userID int64, emoji string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM message_reactions
		 WHERE message_id = $1 AND user_id = $2 AND emoji = $3`,
		messageID, userID, emoji)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return classline_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) GetConversationReactions(ctx context.Context, conversationID int64) ([]message.Reaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.message_id, r.user_id, u.display_name, r.emoji, r.created_at
		 FROM message_reactions r
		 JOIN users u ON u.id = r.user_id
		 JOIN messages m ON m.id = r.message_id
		 WHERE m.conversation_id = $1
		 ORDER BY r.created_at`, conversationID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var reactions []message.Reaction
	for rows.Next() {
		var re message.Reaction
		if err := rows.Scan(&re.MessageID, &re.UserID, &re.UserName, &re.Emoji, &re.CreatedAt); err != nil {
			return nil, err
		}
		reactions = append(reactions, re)
	}
	return reactions, rows.Err()
}

func (r *PostgresMessageRepository) MarkDelivered(ctx context.Context, messageID, userID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO message_receipts (message_id, user_id, delivered_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (message_id, user_id)
		 DO UPDATE SET delivered_at = COALESCE(message_receipts.delivered_at, now()), updated_at = now()`,
		messageID, userID)
	return mapError(err)
}

func (r *PostgresMessageRepository) MarkConversationRead(ctx context.Context, conversationID, userID int64, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO message_receipts (message_id, user_id, delivered_at, read_at)
		 SELECT m.id, $2, $3, $3 FROM messages m
		 WHERE m.conversation_id = $1 AND m.sender_id <> $2
		 ON CONFLICT (message_id, user_id)
		 DO UPDATE SET read_at = COALESCE(message_receipts.read_at, EXCLUDED.read_at), updated_at = now()`,
		conversationID, userID, at)
	return mapError(err)
}

func (r *PostgresMessageRepository) CreateAttachment(ctx context.Context, a *message.Attachment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO attachments (id, file_name, file_size, mime_type, is_image, file_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		a.ID, a.FileName, a.FileSize, a.MimeType, a.IsImage, a.FileURL,
	).Scan(&a.CreatedAt)
	return mapError(err)
}

func (r *PostgresMessageRepository) GetAttachmentByID(ctx context.Context, id uuid.UUID) (message.Attachment, error) {
	var a message.Attachment
	err := r.db.QueryRow(ctx,
		`SELECT id, file_name, file_size, mime_type, is_image, file_url, created_at
		 FROM attachments WHERE id = $1`, id,
	).Scan(&a.ID, &a.FileName, &a.FileSize, &a.MimeType, &a.IsImage, &a.FileURL, &a.CreatedAt)
	if err != nil {
		return message.Attachment{}, mapError(err)
	}
	return a, nil
}
