package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"classline/internal/domain/conversation"
	"classline/internal/domain/course"
	"classline/internal/domain/message"
	"classline/internal/domain/upload"
	"classline/internal/domain/user"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id int64) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]user.User, error)
}

type CourseRepository interface {
	Create(ctx context.Context, c *course.Course) error
	GetByID(ctx context.Context, id int64) (course.Course, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	Enroll(ctx context.Context, e *course.Enrollment) error
	Drop(ctx context.Context, courseID, userID int64) error
	GetRoster(ctx context.Context, courseID int64) ([]user.User, error)
	IsEnrolled(ctx context.Context, courseID, userID int64) (bool, error)
	GetUserCourses(ctx context.Context, userID int64) ([]course.Course, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation, participantIDs []int64) error
	GetByID(ctx context.Context, id int64) (conversation.Conversation, error)
	GetByCourseID(ctx context.Context, courseID int64) (conversation.Conversation, error)
	GetDirectConversation(ctx context.Context, userID1, userID2 int64) (conversation.Conversation, error)
	GetUserConversations(ctx context.Context, userID int64) ([]conversation.Conversation, error)
	GetParticipants(ctx context.Context, conversationID int64) ([]conversation.Participant, error)
	AddParticipant(ctx context.Context, conversationID, userID int64) error
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
	UpdateSubject(ctx context.Context, conversationID int64, subject string) error
	Touch(ctx context.Context, conversationID int64, at time.Time) error
	MarkRead(ctx context.Context, conversationID, userID int64, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id int64) (message.Message, error)
	GetByClientMessageID(ctx context.Context, conversationID int64, clientMsgID string) (message.Message, error)
	GetConversationMessages(ctx context.Context, conversationID int64, before time.Time, limit int) ([]message.Message, error)
	GetLatestMessage(ctx context.Context, conversationID int64) (message.Message, error)
	SoftDelete(ctx context.Context, id int64) error

	SetReaction(ctx context.Context, r *message.Reaction) (replaced *message.Reaction, err error)
	RemoveReaction(ctx context.Context, messageID, userID int64, emoji string) error
	GetConversationReactions(ctx context.Context, conversationID int64) ([]message.Reaction, error)

	MarkDelivered(ctx context.Context, messageID, userID int64) error
	MarkConversationRead(ctx context.Context, conversationID, userID int64, at time.Time) error

	CreateAttachment(ctx context.Context, a *message.Attachment) error
	GetAttachmentByID(ctx context.Context, id uuid.UUID) (message.Attachment, error)
}

type UploadRepository interface {
	Create(ctx context.Context, u *upload.UploadSession) error
	GetByID(ctx context.Context, id uuid.UUID) (upload.UploadSession, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, fileURL string) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
