package validation

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"quizierra/internal/domain"

	"github.com/go-playground/validator/v10"
)

// MaxIDLength bounds user and question identifiers in bytes.
const MaxIDLength = 128

// Validator provides request validation functionality
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("opaqueid", func(fl validator.FieldLevel) bool {
		return isValidID(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Struct validates a tagged request struct and converts failures into domain.ValidationErrors.
func (v *Validator) Struct(s interface{}) domain.ValidationErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return domain.ValidationErrors{{Field: "request", Message: err.Error()}}
	}

	errs := make(domain.ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, toValidationError(fe))
	}
	return errs
}

func toValidationError(fe validator.FieldError) domain.ValidationError {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return domain.NewMissingFieldError(field)
	case "gt", "gte", "lt", "lte", "min", "max":
		return domain.ValidationError{Field: field, Message: fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param())}
	default:
		return domain.NewInvalidFormatError(field, fe.Value())
	}
}

// ValidateUserID validates a user identifier
func (v *Validator) ValidateUserID(userID string) domain.ValidationErrors {
	return validateID("user_id", userID)
}

// ValidateQuestionID validates a question identifier
func (v *Validator) ValidateQuestionID(questionID string) domain.ValidationErrors {
	return validateID("question_id", questionID)
}

// ValidateSelectRequest checks a selection request before any storage access.
func (v *Validator) ValidateSelectRequest(req domain.SelectRequest) domain.ValidationErrors {
	errs := v.ValidateUserID(req.UserID)

	if req.TargetProbability != nil {
		p := *req.TargetProbability
		if math.IsNaN(p) || p <= 0 || p >= 1 {
			errs = append(errs, domain.ValidationError{Field: "target_probability", Message: fmt.Sprintf("%v is not strictly between 0 and 1", p)})
		}
	}
	if req.ExcludeLastN != nil && *req.ExcludeLastN < 0 {
		errs = append(errs, domain.ValidationError{Field: "exclude_last_n", Message: "must not be negative"})
	}
	for i, id := range req.Restriction {
		if idErrs := validateID(fmt.Sprintf("allowed_question_ids[%d]", i), id); len(idErrs) > 0 {
			errs = append(errs, idErrs...)
		}
	}
	return errs
}

// ValidateOutcomeRequest validates the record-outcome request
func (v *Validator) ValidateOutcomeRequest(req domain.OutcomeRequest) domain.ValidationErrors {
	errs := v.ValidateUserID(req.UserID)
	errs = append(errs, v.ValidateQuestionID(req.QuestionID)...)
	if req.ResponseTimeMs != nil && *req.ResponseTimeMs < 0 {
		errs = append(errs, domain.ValidationError{Field: "response_time_ms", Message: "must not be negative"})
	}
	return errs
}

// ValidateQuestionInput validates a question registration
func (v *Validator) ValidateQuestionInput(in domain.QuestionInput) domain.ValidationErrors {
	errs := v.ValidateQuestionID(in.ID)
	if in.InitialDifficulty != nil {
		d := *in.InitialDifficulty
		if math.IsNaN(d) || math.IsInf(d, 0) {
			errs = append(errs, domain.NewInvalidFormatError("difficulty", d))
		}
	}
	return errs
}

func validateID(field, id string) domain.ValidationErrors {
	if strings.TrimSpace(id) == "" {
		return domain.ValidationErrors{domain.NewMissingFieldError(field)}
	}
	if len(id) > MaxIDLength {
		return domain.ValidationErrors{domain.NewOutOfRangeError(field+" length", len(id), 1, MaxIDLength)}
	}
	if !isValidID(id) {
		return domain.ValidationErrors{domain.NewInvalidFormatError(field, id)}
	}
	return nil
}

// isValidID accepts any printable UTF-8 string without surrounding whitespace.
func isValidID(s string) bool {
	if s == "" || len(s) > MaxIDLength || !utf8.ValidString(s) {
		return false
	}
	if strings.TrimSpace(s) != s {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
