package course

import (
	"database/sql"
	"time"
)

// Course status values. An archived course keeps its conversation history
// readable but rejects any further mutation (sends, reactions, typing).
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Course represents the courses table
type Course struct {
	ID        int64
	Code      string
	Title     string
	Status    string
	OwnerID   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Enrollment represents the enrollments table
type Enrollment struct {
	CourseID   int64
	UserID     int64
	Role       string
	EnrolledAt time.Time
	DroppedAt  sql.NullTime
}

func (c Course) Archived() bool {
	return c.Status == StatusArchived
}
