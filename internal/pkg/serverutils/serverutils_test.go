package serverutils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	SessionId string `json:"session_id" validate:"required"`
	Message   string `json:"message" validate:"required,max=5"`
}

type upstreamErr struct{}

func (upstreamErr) Error() string   { return "model unavailable" }
func (upstreamErr) Retryable() bool { return true }

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(sampleRequest{SessionId: "a", Message: "hi"}))

	err := ValidateRequest(sampleRequest{Message: "too long"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "is required", ve.Fields["session_id"])
	assert.Equal(t, "must be at most 5 characters", ve.Fields["message"])
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/validation", func(c *fiber.Ctx) error { return ValidateRequest(sampleRequest{}) })
	app.Get("/upstream", func(c *fiber.Ctx) error { return upstreamErr{} })
	app.Get("/notfound", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusNotFound, "no such session") })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("db exploded") })

	tests := []struct {
		path      string
		status    int
		retryable bool
		message   string
	}{
		{"/validation", 400, false, "Validation failed"},
		{"/upstream", 502, true, "model unavailable"},
		{"/notfound", 404, false, "no such session"},
		{"/boom", 500, false, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			raw, _ := io.ReadAll(resp.Body)
			var body BaseResponse[json.RawMessage]
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.status, body.Code)
			assert.Equal(t, tt.retryable, body.Retryable)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}
