package conversation

import (
	"database/sql"
	"time"
)

// Conversation types
const (
	TypePrivate = "private"
	TypeGroup   = "group"
)

// Conversation represents the conversations table. Group conversations may
// be linked to a course; the course's status gates further mutation.
type Conversation struct {
	ID        int64
	Type      string
	CourseID  sql.NullInt64
	Subject   sql.NullString
	CreatedBy sql.NullInt64
	CreatedAt time.Time
	UpdatedAt time.Time

	Participants []Participant
}

// Participant represents the participants table
type Participant struct {
	ConversationID int64
	UserID         int64
	DisplayName    string
	JoinedAt       time.Time
	LastReadAt     sql.NullTime
}

func (c Conversation) IsCourseLinked() bool {
	return c.Type == TypeGroup && c.CourseID.Valid
}
