package config

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// validate is a singleton validator instance
var validate = validator.New()

// ValidationError reports an invalid problem definition
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid problem: " + e.Reason
	}
	return fmt.Sprintf("invalid problem: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// ErrInvalid matches any ValidationError
var ErrInvalid = &ValidationError{}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// formatValidationError turns the first struct tag failure into a
// ValidationError
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	for _, e := range validationErrs {
		field := e.Namespace()
		param := e.Param()

		switch e.Tag() {
		case "required":
			return invalid(field, "field is required")
		case "min":
			if e.Kind() == reflect.Slice || e.Kind() == reflect.Map || e.Kind() == reflect.String {
				return invalid(field, "must have at least %s entries", param)
			}
			return invalid(field, "must be at least %s", param)
		case "gt":
			return invalid(field, "must be greater than %s", param)
		case "gte":
			return invalid(field, "must be at least %s", param)
		default:
			return invalid(field, "validation failed (%s)", e.Tag())
		}
	}
	return err
}
