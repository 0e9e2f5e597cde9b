package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"body too large", fiber.ErrRequestEntityTooLarge, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad request", fiber.ErrBadRequest, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", fiber.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"method not allowed", fiber.ErrMethodNotAllowed, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{"unhandled", errors.New("boom"), http.StatusInternalServerError, "SERVICE_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// no CORS middleware: the handler must set the headers on its own
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop(), "https://ui.example.com")})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", "https://ui.example.com")
			resp, err := app.Test(req, -1)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "https://ui.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
			body := decode(t, resp)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.wantCode, body["code"])
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body["error"], "boom")
		})
	}
}
