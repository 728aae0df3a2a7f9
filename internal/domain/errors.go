package domain

import (
	"errors"
	"strings"
)

// Domain errors
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden - admin access required")
	ErrValidation          = errors.New("validation failed")
	ErrUserNotFound        = errors.New("user not found")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrChallengeDayMissing = errors.New("challenge day not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrConflict            = errors.New("conflicting write")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrRateLimited         = errors.New("too many attempts, try again later")
	ErrInternalError       = errors.New("internal server error")
)

// ValidationError carries every human-readable problem found in a request.
type ValidationError struct {
	Messages []string
}

// NewValidationError builds a ValidationError from one or more messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, ", ")
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrSubmissionNotFound) ||
		errors.Is(err, ErrChallengeDayMissing)
}
