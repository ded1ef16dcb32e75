package user

import (
	"database/sql"
	"time"
)

// Roles a user can hold within the application.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

// User represents the users table
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	DisplayName  string
	Role         string
	AvatarURL    sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
