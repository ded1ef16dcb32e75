package repository

import (
	"errors"

	classline_errors "classline/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mapError translates pgx errors into the package sentinel errors so
// services never see driver-level error types.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return classline_errors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return classline_errors.ErrAlreadyExists
	}
	return err
}
