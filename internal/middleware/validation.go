package middleware

import (
	"net/url"
	"strconv"

	"quizierra/internal/domain"
	"quizierra/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Keys under which validated path and query values are stored in fiber locals.
const (
	LocalUserID = "validated_user_id"
	LocalLimit  = "validated_limit"
)

// MaxHistoryLimit caps the history query parameter.
const MaxHistoryLimit = 500

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.Validator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware() *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validation.NewValidator(),
	}
}

// ValidateUserIDParam validates the :id path parameter as a user identifier.
func (vm *ValidationMiddleware) ValidateUserIDParam() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Params("id")
		// Path parameters arrive percent-encoded.
		if unescaped, err := url.PathUnescape(userID); err == nil {
			userID = unescaped
		}

		if errs := vm.validator.ValidateUserID(userID); len(errs) > 0 {
			return errs // This will be handled by ErrorHandler middleware
		}

		c.Locals(LocalUserID, userID)
		return c.Next()
	}
}

// ValidateHistoryLimit validates the optional limit query parameter.
// A missing limit is stored as 0, which selects the service default.
func (vm *ValidationMiddleware) ValidateHistoryLimit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := 0
		if limitStr := c.Query("limit"); limitStr != "" {
			parsed, err := parseLimit(limitStr)
			if err != nil {
				return domain.ValidationErrors{domain.NewInvalidFormatError("limit", limitStr)}
			}
			if parsed < 1 || parsed > MaxHistoryLimit {
				return domain.ValidationErrors{domain.NewOutOfRangeError("limit", parsed, 1, MaxHistoryLimit)}
			}
			limit = parsed
		}

		c.Locals(LocalLimit, limit)
		return c.Next()
	}
}

// parseLimit parses a decimal limit, rejecting signs and whitespace.
func parseLimit(s string) (int, error) {
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}
