package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_JoinsMessagesAndMatchesSentinel(t *testing.T) {
	err := NewValidationError("primary link required", "contest link must be a valid URL")

	assert.Equal(t, "primary link required, contest link must be a valid URL", err.Error())
	assert.True(t, errors.Is(err, ErrValidation))
	assert.True(t, errors.Is(fmt.Errorf("submitting: %w", err), ErrValidation))
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, IsNotFoundError(ErrSubmissionNotFound))
	assert.True(t, IsNotFoundError(fmt.Errorf("lookup: %w", ErrUserNotFound)))
	assert.False(t, IsNotFoundError(ErrConflict))
}
