package errs

import (
	"net/http"
)

// NewUnauthorizedError creates a 401 Unauthorized HTTPError.
//
// Parameters:
//   - message: text to send to the client
//   - override: a flag middleware/handlers can use to decide whether to
//     replace the message (e.g. sanitizing in prod).
func NewUnauthorizedError(message string, override bool) *HTTPError {
	return &HTTPError{
		Code:     MakeUpperCaseWithUnderscores(http.StatusText(http.StatusUnauthorized)),
		Message:  message,
		Status:   http.StatusUnauthorized,
		Override: override,
	}
}

// NewForbiddenError creates a 403 Forbidden HTTPError.
func NewForbiddenError(message string, override bool) *HTTPError {
	return &HTTPError{
		Code:     MakeUpperCaseWithUnderscores(http.StatusText(http.StatusForbidden)),
		Message:  message,
		Status:   http.StatusForbidden,
		Override: override,
	}
}

// NewBadRequestError creates a 400 Bad Request HTTPError.
//
// This supports extra payload:
//   - code: optional custom code string (if nil, defaults to "BAD_REQUEST")
//   - errors: optional slice of field errors (validation errors)
//   - action: optional client instruction
//
// This is designed for payload validation and "you sent garbage" cases.
func NewBadRequestError(message string, override bool, code *string, errors []FieldError, action *Action) *HTTPError {
	// Default code comes from HTTP status text:
	// http.StatusText(400) => "Bad Request" => "BAD_REQUEST"
	formattedCode := MakeUpperCaseWithUnderscores(http.StatusText(http.StatusBadRequest))

	// Callers supplying a custom code are assumed to have formatted it.
	if code != nil {
		formattedCode = *code
	}

	return &HTTPError{
		Code:     formattedCode,
		Message:  message,
		Status:   http.StatusBadRequest,
		Override: override,
		Errors:   errors,
		Action:   action,
	}
}

// NewNotFoundError creates a 404 Not Found HTTPError.
//
// Supports optional custom code override similar to NewBadRequestError.
func NewNotFoundError(message string, override bool, code *string) *HTTPError {
	formattedCode := MakeUpperCaseWithUnderscores(http.StatusText(http.StatusNotFound))

	if code != nil {
		formattedCode = *code
	}

	return &HTTPError{
		Code:     formattedCode,
		Message:  message,
		Status:   http.StatusNotFound,
		Override: override,
	}
}

// NewTooManyRequestsError creates a 429 Too Many Requests HTTPError.
//
// retryAfter, when non-empty, is attached as a retry_after action so clients
// know when the rate limit window resets.
func NewTooManyRequestsError(message string, retryAfter string) *HTTPError {
	var action *Action
	if retryAfter != "" {
		action = &Action{
			Type:    ActionTypeRetryAfter,
			Message: "Rate limit exceeded, retry later",
			Value:   retryAfter,
		}
	}

	return &HTTPError{
		Code:     MakeUpperCaseWithUnderscores(http.StatusText(http.StatusTooManyRequests)),
		Message:  message,
		Status:   http.StatusTooManyRequests,
		Override: true,
		Action:   action,
	}
}

// NewServiceUnavailableError creates a 503 Service Unavailable HTTPError.
//
// Used when a circuit breaker is open or a bulkhead rejects the call. The
// code parameter lets callers distinguish the two (e.g. "CIRCUIT_OPEN" vs
// "BULKHEAD_FULL"); nil falls back to "SERVICE_UNAVAILABLE".
func NewServiceUnavailableError(message string, code *string, retryAfter string) *HTTPError {
	formattedCode := MakeUpperCaseWithUnderscores(http.StatusText(http.StatusServiceUnavailable))
	if code != nil {
		formattedCode = *code
	}

	var action *Action
	if retryAfter != "" {
		action = &Action{
			Type:    ActionTypeRetryAfter,
			Message: "Dependency is recovering, retry later",
			Value:   retryAfter,
		}
	}

	return &HTTPError{
		Code:     formattedCode,
		Message:  message,
		Status:   http.StatusServiceUnavailable,
		Override: true,
		Action:   action,
	}
}

// NewInternalServerError creates a 500 Internal Server Error HTTPError.
//
// Note:
//   - message is the generic status text, not the real internal error message.
//   - this is a security-friendly default: clients don't need stack traces.
//   - Override is false: generic 500s should not be overridden.
func NewInternalServerError() *HTTPError {
	return &HTTPError{
		Code:     MakeUpperCaseWithUnderscores(http.StatusText(http.StatusInternalServerError)),
		Message:  http.StatusText(http.StatusInternalServerError),
		Status:   http.StatusInternalServerError,
		Override: false,
	}
}

// ValidationError converts a generic validation error into a 400 Bad Request
// HTTPError, so call sites can do:
//
//	return errs.ValidationError(err)
//
// and clients get a consistent error structure.
func ValidationError(err error) *HTTPError {
	return NewBadRequestError("Validation failed: "+err.Error(), false, nil, nil, nil)
}
