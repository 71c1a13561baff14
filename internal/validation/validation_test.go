package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/archonhq/archon/internal/errs"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testValidator = validator.New()

// scanPayload mirrors the shape of a typical request struct: tag-based
// rules, pointer receiver Validate.
type scanPayload struct {
	Root  string `json:"root" validate:"required"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=200"`
	Mode  string `json:"mode" validate:"omitempty,oneof=text json"`
}

func (p *scanPayload) Validate() error {
	return testValidator.Struct(p)
}

// customPayload exercises the CustomValidationErrors path.
type customPayload struct {
	Root string `json:"root"`
}

func (p *customPayload) Validate() error {
	if strings.Contains(p.Root, "..") {
		return CustomValidationErrors{
			{Field: "root", Message: "must not contain path traversal"},
		}
	}
	return nil
}

func newJSONContext(t *testing.T, body string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestBindAndValidateSuccess(t *testing.T) {
	c := newJSONContext(t, `{"root":"/srv/repo","limit":10,"mode":"json"}`)

	payload := &scanPayload{}
	require.NoError(t, BindAndValidate(c, payload))

	assert.Equal(t, "/srv/repo", payload.Root)
	assert.Equal(t, 10, payload.Limit)
}

func TestBindAndValidateFieldErrors(t *testing.T) {
	c := newJSONContext(t, `{"limit":500,"mode":"yaml"}`)

	err := BindAndValidate(c, &scanPayload{})
	require.Error(t, err)

	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	require.Len(t, httpErr.Errors, 3)

	byField := map[string]string{}
	for _, fe := range httpErr.Errors {
		byField[fe.Field] = fe.Error
	}
	assert.Equal(t, "is required", byField["root"])
	assert.Equal(t, "must not exceed 200", byField["limit"])
	assert.Equal(t, "must be one of: text json", byField["mode"])
}

func TestBindAndValidateBindFailure(t *testing.T) {
	c := newJSONContext(t, `{"root": not-json}`)

	err := BindAndValidate(c, &scanPayload{})
	require.Error(t, err)

	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
}

func TestBindAndValidateCustomErrors(t *testing.T) {
	c := newJSONContext(t, `{"root":"../etc"}`)

	err := BindAndValidate(c, &customPayload{})
	require.Error(t, err)

	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Len(t, httpErr.Errors, 1)
	assert.Equal(t, "root", httpErr.Errors[0].Field)
	assert.Equal(t, "must not contain path traversal", httpErr.Errors[0].Error)
}

func TestExtractValidationErrorMessages(t *testing.T) {
	type payload struct {
		Name  string `validate:"required"`
		Bio   string `validate:"omitempty,min=10"`
		Email string `validate:"omitempty,email"`
		ID    string `validate:"omitempty,uuid"`
	}

	err := testValidator.Struct(payload{Bio: "short", Email: "nope", ID: "nope"})
	require.Error(t, err)

	msg, fieldErrors := extractValidationError(err)
	assert.Equal(t, "Validation failed", msg)
	require.Len(t, fieldErrors, 4)

	byField := map[string]string{}
	for _, fe := range fieldErrors {
		byField[fe.Field] = fe.Error
	}
	assert.Equal(t, "is required", byField["name"])
	assert.Equal(t, "must be at least 10 characters", byField["bio"])
	assert.Equal(t, "must be a valid email address", byField["email"])
	assert.Equal(t, "must be a valid UUID", byField["id"])
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("2d3e1f60-8a41-4f30-9c7b-0f6f2a1f9d11"))
	assert.True(t, IsValidUUID("2D3E1F60-8A41-4F30-9C7B-0F6F2A1F9D11"))
	assert.False(t, IsValidUUID("not-a-uuid"))
	assert.False(t, IsValidUUID("2d3e1f60-8a41-4f30-9c7b"))
	assert.False(t, IsValidUUID(""))
}
