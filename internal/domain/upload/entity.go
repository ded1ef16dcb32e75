package upload

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Upload session status
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// UploadSession represents the upload_sessions table
type UploadSession struct {
	ID          uuid.UUID
	UploaderID  int64
	Filename    string
	ContentType string
	SizeBytes   int64
	StorageKey  string
	FileURL     sql.NullString
	Status      string
	CreatedAt   time.Time
	CompletedAt sql.NullTime
}
