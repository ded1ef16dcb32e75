package repository

import (
	"context"
	"time"

	"classline/internal/domain/conversation"
	classline_errors "classline/pkg/errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation, participantIDs []int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO conversations (type, course_id, subject, created_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		c.Type, c.CourseID, c.Subject, c.CreatedBy,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return mapError(err)
	}

	for _, userID := range participantIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO participants (conversation_id, user_id)
			 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			c.ID, userID); err != nil {
			return mapError(err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id int64) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.QueryRow(ctx,
		`SELECT id, type, course_id, subject, created_by, created_at, updated_at
		 FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.Type, &c.CourseID, &c.Subject, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return conversation.Conversation{}, mapError(err)
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetByCourseID(ctx context.Context, courseID int64) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.QueryRow(ctx,
		`SELECT id, type, course_id, subject, created_by, created_at, updated_at
		 FROM conversations WHERE course_id = $1`, courseID,
	).Scan(&c.ID, &c.Type, &c.CourseID, &c.Subject, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return conversation.Conversation{}, mapError(err)
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetDirectConversation(ctx context.Context, userID1, userID2 int64) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.QueryRow(ctx,
		`SELECT c.id, c.type, c.course_id, c.subject, c.created_by, c.created_at, c.updated_at
		 FROM conversations c
		 JOIN participants p1 ON p1.conversation_id = c.id AND p1.user_id = $1
		 JOIN participants p2 ON p2.conversation_id = c.id AND p2.user_id = $2
		 WHERE c.type = 'private'
		 LIMIT 1`, userID1, userID2,
	).Scan(&c.ID, &c.Type, &c.CourseID, &c.Subject, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return conversation.Conversation{}, mapError(err)
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetUserConversations(ctx context.Context, userID int64) ([]conversation.Conversation, error) {
	// Course-linked group conversations first, then most recently updated.
	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.type, c.course_id, c.subject, c.created_by, c.created_at, c.updated_at
		 FROM conversations c
		 JOIN participants p ON p.conversation_id = c.id
		 WHERE p.user_id = $1
		 ORDER BY (c.course_id IS NOT NULL) DESC, c.updated_at DESC`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var conversations []conversation.Conversation
	for rows.Next() {
		var c conversation.Conversation
		if err := rows.Scan(&c.ID, &c.Type, &c.CourseID, &c.Subject, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func (r *PostgresConversationRepository) GetParticipants(ctx context.Context, conversationID int64) ([]conversation.Participant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT p.conversation_id, p.user_id, u.display_name, p.joined_at, p.last_read_at
		 FROM participants p
		 JOIN users u ON u.id = p.user_id
		 WHERE p.conversation_id = $1
		 ORDER BY p.joined_at`, conversationID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var participants []conversation.Participant
	for rows.Next() {
		var p conversation.Participant
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.DisplayName, &p.JoinedAt, &p.LastReadAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *PostgresConversationRepository) AddParticipant(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO participants (conversation_id, user_id)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		conversationID, userID)
	return mapError(err)
}

func (r *PostgresConversationRepository) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM participants WHERE conversation_id = $1 AND user_id = $2
		 )`, conversationID, userID,
	).Scan(&ok)
	return ok, mapError(err)
}

func (r *PostgresConversationRepository) UpdateSubject(ctx context.Context, conversationID int64, subject string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE conversations SET subject = $2, updated_at = now() WHERE id = $1`,
		conversationID, subject)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return classline_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) Touch(ctx context.Context, conversationID int64, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE conversations SET updated_at = $2 WHERE id = $1`, conversationID, at)
	return mapError(err)
}

func (r *PostgresConversationRepository) MarkRead(ctx context.Context, conversationID, userID int64, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE participants SET last_read_at = $3
		 WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID, at)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return classline_errors.ErrNotParticipant
	}
	return nil
}
