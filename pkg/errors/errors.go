package classline_errors

import "errors"

// Common errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTooLarge           = errors.New("file too large")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("already exists")
	ErrMessageDeleted     = errors.New("message deleted")
	ErrCourseArchived     = errors.New("course archived")
	ErrNotParticipant     = errors.New("not a participant")
	ErrDuplicateInFlight  = errors.New("identical message already in flight")
)
