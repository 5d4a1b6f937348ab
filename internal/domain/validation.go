package domain

import (
	"fmt"
	"strings"
)

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in a request.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func NewMissingFieldError(field string) ValidationError {
	return ValidationError{Field: field, Message: "is required"}
}

func NewInvalidFormatError(field string, value interface{}) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf("has invalid format: %v", value)}
}

func NewOutOfRangeError(field string, value, min, max interface{}) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf("value %v is out of range [%v, %v]", value, min, max)}
}

// NewValidationFailedError wraps field errors as an INVALID_INPUT domain error.
func NewValidationFailedError(errs ValidationErrors) *DomainError {
	return NewError(ErrInvalidInput, "Request validation failed", errs)
}
