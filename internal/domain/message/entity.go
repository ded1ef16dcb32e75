package message

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DeletedPlaceholder replaces the content of a soft-deleted message on every
// read path. The original content is gone from the API surface; the row and
// any attachment stay for bookkeeping.
const DeletedPlaceholder = "This message was deleted"

// Message represents the messages table
type Message struct {
	ID              int64
	ConversationID  int64
	SenderID        int64
	SenderName      string
	ClientMessageID sql.NullString
	Content         sql.NullString
	AttachmentID    uuid.NullUUID
	CreatedAt       time.Time
	DeletedAt       sql.NullTime
}

// Reaction represents the message_reactions table.
// UNIQUE(message_id, user_id) - a user holds at most one emoji per message.
type Reaction struct {
	MessageID int64
	UserID    int64
	UserName  string
	Emoji     string
	CreatedAt time.Time
}

// Receipt represents the message_receipts table
type Receipt struct {
	MessageID   int64
	UserID      int64
	DeliveredAt sql.NullTime
	ReadAt      sql.NullTime
	UpdatedAt   time.Time
}

// Attachment represents the attachments table
type Attachment struct {
	ID        uuid.UUID
	FileName  string
	FileSize  int64
	MimeType  string
	IsImage   bool
	FileURL   string
	CreatedAt time.Time
}

func (m Message) Deleted() bool {
	return m.DeletedAt.Valid
}

// APIContent is what goes over the wire: the placeholder for deleted
// messages, the stored content otherwise.
func (m Message) APIContent() string {
	if m.Deleted() {
		return DeletedPlaceholder
	}
	return m.Content.String
}
