// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/heatpump-outbox/internal/errors"
)

// deviceIDRegex allows the characters that are safe inside an MQTT topic level.
var deviceIDRegex = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,128}$`)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// DeviceID validates a heat pump device identifier.
var DeviceID = validation.NewStringRuleWithError(
	func(s string) bool {
		return deviceIDRegex.MatchString(s)
	},
	validation.NewError(
		"validation_device_id",
		"must be 1-128 characters of letters, digits, '.', '_', ':' or '-'",
	),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// AtLeastOne validates that at least one of the given pointers is non-nil.
type AtLeastOne struct {
	Fields []any
}

// Validate implements validation.Rule. The value itself is ignored.
func (r AtLeastOne) Validate(_ any) error {
	for _, field := range r.Fields {
		if !isNilPointer(field) {
			return nil
		}
	}
	return validation.NewError("validation_at_least_one", "at least one setting must be provided")
}

func isNilPointer(v any) bool {
	switch p := v.(type) {
	case nil:
		return true
	case *float64:
		return p == nil
	case *int:
		return p == nil
	case *string:
		return p == nil
	}
	return false
}
