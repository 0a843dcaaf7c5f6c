package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/deppfellow/countstore/internal/errs"
	"github.com/go-playground/validator/v10"
)

// Validatable is implemented by types that know how to validate themselves.
//
// Typical pattern:
//   - Define a struct with validator tags (`validate:"required"`)
//   - Implement Validate() error that calls validation.Struct(v)
//     and/or returns CustomValidationErrors for rules tags can't express
type Validatable interface {
	Validate() error
}

// CustomValidationError represents a single validation issue for a specific field.
// This is used for validation errors that cannot be expressed via validator tags.
type CustomValidationError struct {
	Field   string
	Message string
}

// CustomValidationErrors is a slice of custom validation errors that satisfies error.
type CustomValidationErrors []CustomValidationError

func (c CustomValidationErrors) Error() string {
	return "Validation failed"
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Struct validates v against its `validate` struct tags.
//
// It returns nil or an *errs.ValidationError with one FieldError per failed field.
func Struct(v any) error {
	if err := instance().Struct(v); err != nil {
		return toValidationError(err)
	}
	return nil
}

// Check runs v.Validate() and normalizes any failure into *errs.ValidationError.
func Check(v Validatable) error {
	if err := v.Validate(); err != nil {
		return toValidationError(err)
	}
	return nil
}

func toValidationError(err error) error {
	var already *errs.ValidationError
	if errors.As(err, &already) {
		return err
	}

	msg, fieldErrors := extractValidationError(err)
	if fieldErrors == nil {
		// Not a validation failure (e.g. InvalidValidationError for a nil value).
		return err
	}
	return errs.NewValidationError(msg, fieldErrors)
}

func extractValidationError(err error) (string, []errs.FieldError) {
	var fieldErrors []errs.FieldError

	var customValidationErrors CustomValidationErrors
	if errors.As(err, &customValidationErrors) {
		for _, err := range customValidationErrors {
			fieldErrors = append(fieldErrors, errs.FieldError{
				Field: err.Field,
				Error: err.Message,
			})
		}
		return "Validation failed", fieldErrors
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "", nil
	}

	for _, err := range validationErrors {
		field := fieldPath(err)
		var msg string

		switch err.Tag() {
		case "required":
			msg = "is required"

		case "min":
			// min means minimum length for strings and minimum value otherwise.
			if err.Type().Kind() == reflect.String {
				msg = fmt.Sprintf("must be at least %s characters", err.Param())
			} else {
				msg = fmt.Sprintf("must be at least %s", err.Param())
			}

		case "max":
			if err.Type().Kind() == reflect.String {
				msg = fmt.Sprintf("must not exceed %s characters", err.Param())
			} else {
				msg = fmt.Sprintf("must not exceed %s", err.Param())
			}

		case "oneof":
			msg = fmt.Sprintf("must be one of: %s", err.Param())

		case "url":
			msg = "must be a valid URL"

		case "gtefield":
			msg = fmt.Sprintf("must not be before %s", strings.ToLower(err.Param()))

		case "dive":
			msg = "some items are invalid"

		default:
			if err.Param() != "" {
				msg = fmt.Sprintf("%s: %s:%s", field, err.Tag(), err.Param())
			} else {
				msg = fmt.Sprintf("%s: %s", field, err.Tag())
			}
		}

		fieldErrors = append(fieldErrors, errs.FieldError{
			Field: field,
			Error: msg,
		})
	}

	return "Validation failed", fieldErrors
}

// fieldPath turns "Config.Search.APIKey" into "search.apikey".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}
