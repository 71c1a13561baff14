// Package validation validates request payloads.
//
// It leans on the `validator` library: rules live in struct tags
// (`validate:"required,dirpath"`), payloads implement Validatable, and
// failures are flattened into field-level errors the client can render
// next to form inputs.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/archonhq/archon/internal/errs"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validatable is implemented by request payload types that know how to
// validate themselves.
//
// Typical pattern:
//   - define a request struct with validator tags
//   - implement Validate() error running validator.Struct(req)
//   - return validator.ValidationErrors, or CustomValidationErrors for
//     checks that tags can't express
type Validatable interface {
	Validate() error
}

// CustomValidationError is a single validation issue for a specific field,
// used for rules that can't be expressed via validator tags.
type CustomValidationError struct {
	Field   string
	Message string
}

// CustomValidationErrors is a slice of custom validation errors that
// satisfies error.
type CustomValidationErrors []CustomValidationError

func (c CustomValidationErrors) Error() string {
	return "Validation failed"
}

// BindAndValidate binds the request into payload and validates it.
//
// Flow:
//  1. c.Bind(payload) populates the struct from body/params.
//  2. payload.Validate() applies the rules.
//  3. Failures come back as a 400 *errs.HTTPError with field errors.
//
// payload must be a pointer to a struct or binding misbehaves.
func BindAndValidate(c echo.Context, payload Validatable) error {
	if err := c.Bind(payload); err != nil {
		// Echo's bind errors embed the useful part after "message=".
		// Parsing it is brittle but the alternative is a useless generic 400.
		message := strings.Split(strings.Split(err.Error(), ",")[1], "message=")[1]
		return errs.NewBadRequestError(message, false, nil, nil, nil)
	}

	if msg, fieldErrors := validateStruct(payload); fieldErrors != nil {
		return errs.NewBadRequestError(msg, true, nil, fieldErrors, nil)
	}

	return nil
}

// validateStruct runs v.Validate() and extracts field errors on failure.
func validateStruct(v Validatable) (string, []errs.FieldError) {
	if err := v.Validate(); err != nil {
		return extractValidationError(err)
	}
	return "", nil
}

func extractValidationError(err error) (string, []errs.FieldError) {
	var fieldErrors []errs.FieldError

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		// Not tag-based: must be our CustomValidationErrors.
		customValidationErrors := err.(CustomValidationErrors)
		for _, err := range customValidationErrors {
			fieldErrors = append(fieldErrors, errs.FieldError{
				Field: err.Field,
				Error: err.Message,
			})
		}
		// validationErrors is nil here, so the loop below is a no-op.
	}

	// Translate validator tags into messages a human can act on.
	for _, err := range validationErrors {
		field := strings.ToLower(err.Field())
		var msg string

		switch err.Tag() {
		case "required":
			msg = "is required"

		case "min":
			// min on strings is length, on numbers it's value.
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

		case "email":
			msg = "must be a valid email address"

		case "uuid":
			msg = "must be a valid UUID"

		case "dirpath":
			msg = "must be a valid directory path"

		case "dive":
			msg = "some items are invalid"

		default:
			// Fallback with tag name and param to help debugging.
			if err.Param() != "" {
				msg = fmt.Sprintf("%s: %s:%s", field, err.Tag(), err.Param())
			} else {
				msg = fmt.Sprintf("%s: %s", field, err.Tag())
			}
		}

		fieldErrors = append(fieldErrors, errs.FieldError{
			Field: strings.ToLower(err.Field()),
			Error: msg,
		})
	}

	return "Validation failed", fieldErrors
}

// uuidRegex matches the canonical xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx form.
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValidUUID checks format only, not version/variant semantics.
func IsValidUUID(uuid string) bool {
	return uuidRegex.MatchString(uuid)
}
