package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("record outcome", cause)

	assert.Equal(t, ErrStorageFailure, err.Code)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")

	wrapped := fmt.Errorf("handler: %w", err)
	assert.Equal(t, ErrStorageFailure, CodeOf(wrapped))
	assert.True(t, IsStorageFailure(wrapped))
	assert.False(t, IsInvalidInput(wrapped))
}

func TestDomainError_MarshalJSON(t *testing.T) {
	err := NewError(ErrInvalidInput, "user_id is required", errors.New("hidden"))
	data, marshalErr := json.Marshal(err)
	require.NoError(t, marshalErr)
	assert.JSONEq(t, `{"code":"INVALID_INPUT","message":"user_id is required"}`, string(data))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, ErrNoCandidates, CodeOf(NewNoCandidatesError("u1")))
	assert.True(t, IsStorageFailure(NewWriteConflictError("u1", ErrConflict)))
	assert.ErrorIs(t, NewWriteConflictError("u1", ErrConflict), ErrConflict)
	assert.False(t, IsStorageFailure(nil))
	assert.False(t, IsInvalidInput(nil))
}
