package repository

import (
	"context"

	"classline/internal/domain/upload"
	classline_errors "classline/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresUploadRepository struct {
	db *pgxpool.Pool
}

func NewUploadRepository(db *pgxpool.Pool) UploadRepository {
	return &PostgresUploadRepository{db: db}
}

func (r *PostgresUploadRepository) Create(ctx context.Context, u *upload.UploadSession) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO upload_sessions (id, uploader_id, filename, content_type, size_bytes, storage_key, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		u.ID, u.UploaderID, u.Filename, u.ContentType, u.SizeBytes, u.StorageKey, u.Status,
	).Scan(&u.CreatedAt)
	return mapError(err)
}

func (r *PostgresUploadRepository) GetByID(ctx context.Context, id uuid.UUID) (upload.UploadSession, error) {
	var u upload.UploadSession
	err := r.db.QueryRow(ctx,
		`SELECT id, uploader_id, filename, content_type, size_bytes, storage_key, file_url, status, created_at, completed_at
		 FROM upload_sessions WHERE id = $1`, id,
	).Scan(&u.ID, &u.UploaderID, &u.Filename, &u.ContentType, &u.SizeBytes, &u.StorageKey, &u.FileURL, &u.Status, &u.CreatedAt, &u.CompletedAt)
	if err != nil {
		return upload.UploadSession{}, mapError(err)
	}
	return u, nil
}

func (r *PostgresUploadRepository) MarkCompleted(ctx context.Context, id uuid.UUID, fileURL string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE upload_sessions
		 SET status = 'COMPLETED', file_url = $2, completed_at = now()
		 WHERE id = $1`, id, fileURL)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return classline_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresUploadRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE upload_sessions SET status = 'FAILED' WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return classline_errors.ErrNotFound
	}
	return nil
}
