package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Adaptive engine errors
	ErrNoCandidates   ErrorCode = "NO_CANDIDATES"
	ErrStorageFailure ErrorCode = "STORAGE_FAILURE"
	ErrWriteConflict  ErrorCode = "WRITE_CONFLICT"
)

// ErrConflict is returned by repositories when a conditional update finds a newer version than expected.
var ErrConflict = errors.New("record was modified concurrently")

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
	})
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions for common errors
func NewNotFoundError(message string) *DomainError {
	return NewError(ErrNotFound, message, nil)
}

func NewInvalidInputError(message string) *DomainError {
	return NewError(ErrInvalidInput, message, nil)
}

func NewInternalError(message string, err error) *DomainError {
	return NewError(ErrInternal, message, err)
}

func NewStorageError(operation string, err error) *DomainError {
	return NewError(ErrStorageFailure, fmt.Sprintf("Storage failure during %s", operation), err)
}

func NewWriteConflictError(userID string, err error) *DomainError {
	return NewError(ErrWriteConflict, fmt.Sprintf("Could not apply outcome for user %s after retries", userID), err)
}

func NewNoCandidatesError(userID string) *DomainError {
	return NewError(ErrNoCandidates, fmt.Sprintf("No questions available for user %s", userID), nil)
}

// CodeOf returns the ErrorCode carried by err, or ErrInternal when err is not a DomainError.
func CodeOf(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrInternal
}

func IsInvalidInput(err error) bool {
	return err != nil && CodeOf(err) == ErrInvalidInput
}

func IsStorageFailure(err error) bool {
	if err == nil {
		return false
	}
	code := CodeOf(err)
	return code == ErrStorageFailure || code == ErrWriteConflict
}
