package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeUpperCaseWithUnderscores(t *testing.T) {
	assert.Equal(t, "SERVICE_UNAVAILABLE", MakeUpperCaseWithUnderscores("Service Unavailable"))
	assert.Equal(t, "NOT_FOUND", MakeUpperCaseWithUnderscores("Not Found"))
	assert.Equal(t, "OK", MakeUpperCaseWithUnderscores("ok"))
	assert.Equal(t, "", MakeUpperCaseWithUnderscores(""))
}

func TestHTTPErrorError(t *testing.T) {
	err := &HTTPError{Message: "something broke"}
	assert.Equal(t, "something broke", err.Error())
}

func TestHTTPErrorIsMatchesOnType(t *testing.T) {
	err := NewNotFoundError("Scan not found", true, nil)

	assert.True(t, errors.Is(err, &HTTPError{}))
	assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", err), &HTTPError{}))
	assert.False(t, errors.Is(errors.New("plain"), &HTTPError{}))
}

func TestHTTPErrorWithMessage(t *testing.T) {
	base := NewBadRequestError("original", true, nil, []FieldError{{Field: "root", Error: "is required"}}, nil)

	derived := base.WithMessage("customized")

	assert.Equal(t, "customized", derived.Message)
	assert.Equal(t, "original", base.Message, "the template must not be mutated")
	assert.Equal(t, base.Code, derived.Code)
	assert.Equal(t, base.Status, derived.Status)
	assert.Equal(t, base.Errors, derived.Errors)
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *HTTPError
		wantCode   string
		wantStatus int
	}{
		{"unauthorized", NewUnauthorizedError("no session", true), "UNAUTHORIZED", http.StatusUnauthorized},
		{"forbidden", NewForbiddenError("no access", false), "FORBIDDEN", http.StatusForbidden},
		{"bad request", NewBadRequestError("bad", false, nil, nil, nil), "BAD_REQUEST", http.StatusBadRequest},
		{"not found", NewNotFoundError("gone", false, nil), "NOT_FOUND", http.StatusNotFound},
		{"internal", NewInternalServerError(), "INTERNAL_SERVER_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.Status)
		})
	}
}

func TestCustomCodeOverrides(t *testing.T) {
	code := "SCAN_RUN_ALREADY_EXISTS"
	err := NewBadRequestError("duplicate", true, &code, nil, nil)
	assert.Equal(t, "SCAN_RUN_ALREADY_EXISTS", err.Code)

	code404 := "SCAN_NOT_FOUND"
	err = NewNotFoundError("gone", true, &code404)
	assert.Equal(t, "SCAN_NOT_FOUND", err.Code)
}

func TestNewTooManyRequestsError(t *testing.T) {
	err := NewTooManyRequestsError("slow down", "30s")

	assert.Equal(t, http.StatusTooManyRequests, err.Status)
	assert.Equal(t, "TOO_MANY_REQUESTS", err.Code)
	require.NotNil(t, err.Action)
	assert.Equal(t, ActionTypeRetryAfter, err.Action.Type)
	assert.Equal(t, "30s", err.Action.Value)

	noRetry := NewTooManyRequestsError("slow down", "")
	assert.Nil(t, noRetry.Action)
}

func TestNewServiceUnavailableError(t *testing.T) {
	code := "CIRCUIT_OPEN"
	err := NewServiceUnavailableError("dependency down", &code, "15s")

	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
	assert.Equal(t, "CIRCUIT_OPEN", err.Code)
	require.NotNil(t, err.Action)
	assert.Equal(t, ActionTypeRetryAfter, err.Action.Type)
	assert.Equal(t, "15s", err.Action.Value)

	plain := NewServiceUnavailableError("down", nil, "")
	assert.Equal(t, "SERVICE_UNAVAILABLE", plain.Code)
	assert.Nil(t, plain.Action)
}

func TestValidationError(t *testing.T) {
	err := ValidationError(errors.New("root is empty"))

	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Contains(t, err.Message, "root is empty")
}
