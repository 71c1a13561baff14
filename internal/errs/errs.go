// Package errs defines custom error types and utilities.
//
// Its purpose is to create specific error structures
// (e.g. FieldErrors for request payloads or HTTPError for API responses)
// to ensure the client receives meaningful, actionable, and consistent
// error messages.
//
// - Return consistent error shapes to API clients (JSON).
// - Support field-level validation errors for request payloads.
// - Support "action hints" (like retry-after) that frontends can interpret.
// - Provide errors that play nicely with Go's standard errors package.
package errs

import "strings"

// FieldError represents a field-level validation error.
// Example:
//
//	{ "field": "root", "error": "is required" }
type FieldError struct {
	// Field is the field name/key the error relates to (e.g. "root").
	Field string `json:"field"`

	// Error is the human-readable error message.
	Error string `json:"error"`
}

// ActionType is a string-based enum describing what the client should do.
type ActionType string

const (
	// ActionTypeRedirect tells the client it should redirect somewhere.
	// Usually "Value" holds the URL or route.
	ActionTypeRedirect ActionType = "redirect"

	// ActionTypeRetryAfter tells the client when it makes sense to try
	// again. "Value" holds a duration string (e.g. "15s"). Used when a
	// circuit breaker is open or a rate limit window is exhausted.
	ActionTypeRetryAfter ActionType = "retry_after"
)

// Action describes an optional "what the client should do next" instruction.
type Action struct {
	// Type is the kind of action (e.g. "retry_after").
	Type ActionType `json:"type"`

	// Message is human-readable guidance for the client/UI.
	Message string `json:"message"`

	// Value is the payload for the action (e.g. a duration or URL).
	Value string `json:"value"`
}

// HTTPError is the main custom error type for API responses.
//
// It implements the `error` interface via Error() and is designed to be
// serialized directly to JSON.
// Fields:
//   - Code: machine-friendly error code (e.g. "CIRCUIT_OPEN").
//   - Message: human-friendly message.
//   - Status: HTTP status code.
//   - Override: flag to let middleware decide whether to override the message.
//   - Errors: list of per-field errors (validation).
//   - Action: client instruction (optional).
type HTTPError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Status   int    `json:"status"`
	Override bool   `json:"override"`

	// Errors holds field-level validation errors, typically for payloads.
	Errors []FieldError `json:"errors"`

	// Action is an optional client instruction (retry-after, redirect, etc.).
	Action *Action `json:"action"`
}

// Error makes *HTTPError satisfy the built-in `error` interface.
// Printing/logging the error shows the client-facing message.
func (e *HTTPError) Error() string {
	return e.Message
}

// Is customizes how errors.Is(...) treats HTTPError.
//
// It matches on type only: any *HTTPError target matches, regardless of
// Code/Status. Use errors.As and inspect fields when the distinction matters.
func (e *HTTPError) Is(target error) bool {
	_, ok := target.(*HTTPError)
	return ok
}

// WithMessage returns a copy of this HTTPError with Message replaced.
//
// Useful when a base error acts as a template and call sites customize the
// message without mutating the shared value.
func (e *HTTPError) WithMessage(message string) *HTTPError {
	return &HTTPError{
		Code:     e.Code,
		Message:  message,
		Status:   e.Status,
		Override: e.Override,
		Errors:   e.Errors,
		Action:   e.Action,
	}
}

// MakeUpperCaseWithUnderscores converts a string into
// UPPER_CASE_WITH_UNDERSCORES format.
//
// Example:
//
//	"Service Unavailable" -> "SERVICE_UNAVAILABLE"
//
// Used to create stable machine-readable error codes from HTTP status text.
func MakeUpperCaseWithUnderscores(str string) string {
	return strings.ToUpper(strings.ReplaceAll(str, " ", "_"))
}
