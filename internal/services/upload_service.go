package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"classline/internal/domain/upload"
	"classline/internal/repository"
	"classline/internal/storage"
	classline_errors "classline/pkg/errors"

	"github.com/google/uuid"
)

const maxUploadBytes = 25 << 20 // 25 MiB

type UploadService struct {
	repo    repository.UploadRepository
	storage *storage.Client
}

func NewUploadService(repo repository.UploadRepository, storage *storage.Client) *UploadService {
	return &UploadService{repo: repo, storage: storage}
}

type UploadInput struct {
	UploaderID  int64
	FileName    string
	ContentType string
	SizeBytes   int64
	Body        io.Reader
}

type UploadResult struct {
	UploadID string `json:"upload_id"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
	IsImage  bool   `json:"is_image"`
	FileURL  string `json:"file_url"`
}

// Store streams a message attachment to S3 and records the session. The
// returned upload_id is what the send call references.
func (s *UploadService) Store(ctx context.Context, in UploadInput) (UploadResult, error) {
	if s.storage == nil {
		return UploadResult{}, classline_errors.ErrServiceUnavailable
	}
	if in.FileName == "" || in.SizeBytes <= 0 || in.Body == nil {
		return UploadResult{}, classline_errors.ErrInvalidInput
	}
	if in.SizeBytes > maxUploadBytes {
		return UploadResult{}, classline_errors.ErrTooLarge
	}
	if err := s.storage.ValidateContentType(in.ContentType); err != nil {
		return UploadResult{}, classline_errors.ErrInvalidInput
	}

	session := upload.UploadSession{
		ID:          uuid.New(),
		UploaderID:  in.UploaderID,
		Filename:    path.Base(in.FileName),
		ContentType: in.ContentType,
		SizeBytes:   in.SizeBytes,
		Status:      upload.StatusPending,
	}
	session.StorageKey = fmt.Sprintf("messages/%d/%s/%s",
		in.UploaderID, time.Now().UTC().Format("2006/01/02"), session.ID)

	if err := s.repo.Create(ctx, &session); err != nil {
		return UploadResult{}, err
	}

	fileURL, err := s.storage.PutObject(ctx, session.StorageKey, in.ContentType, in.SizeBytes, in.Body)
	if err != nil {
		_ = s.repo.MarkFailed(ctx, session.ID)
		return UploadResult{}, err
	}
	if err := s.repo.MarkCompleted(ctx, session.ID, fileURL); err != nil {
		return UploadResult{}, err
	}

	return UploadResult{
		UploadID: session.ID.String(),
		FileName: session.Filename,
		FileSize: session.SizeBytes,
		MimeType: session.ContentType,
		IsImage:  strings.HasPrefix(session.ContentType, "image/"),
		FileURL:  fileURL,
	}, nil
}
