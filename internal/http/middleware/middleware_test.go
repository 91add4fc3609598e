package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docvoice/internal/apperr"
	"docvoice/internal/auth"
	authMocks "docvoice/internal/auth/mocks"
	"docvoice/internal/logger"
	"docvoice/internal/model"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())

	app.Get("/test", func(c *fiber.Ctx) error {
		rid := c.Locals(RequestIDLocalKey).(string)
		if logger.RequestID(c.UserContext()) != rid {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.SendString(rid)
	})

	t.Run("should generate new request id if not present", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		ridHeader := resp.Header.Get(RequestIDHeader)
		assert.NotEmpty(t, ridHeader)

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, ridHeader, buf.String())
	})

	t.Run("should preserve existing request id", func(t *testing.T) {
		existingID := "test-id-123"
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, existingID)

		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, existingID, resp.Header.Get(RequestIDHeader))

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, existingID, buf.String())
	})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	loc := time.UTC

	app.Use(RequestID())
	app.Use(LoggerWithWriter(&buf, loc))

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var logData map[string]any
	err := json.Unmarshal(buf.Bytes(), &logData)
	assert.NoError(t, err)

	assert.NotEmpty(t, logData["request_id"])
	assert.Equal(t, "GET", logData["method"])
	assert.Equal(t, "/test", logData["path"])
	assert.Equal(t, float64(fiber.StatusAccepted), logData["status"])
	assert.NotNil(t, logData["latency"])
	assert.NotEmpty(t, logData["ts"])
}

func TestLogger_ErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperr.StatusOf(err))
		},
	})
	app.Use(LoggerWithWriter(&buf, nil))
	app.Get("/pdf", func(c *fiber.Ctx) error {
		return apperr.New(apperr.ExtractionError, "failed to read PDF")
	})

	resp, _ := app.Test(httptest.NewRequest("GET", "/pdf", nil))
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var logData map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logData))
	assert.Equal(t, float64(fiber.StatusUnprocessableEntity), logData["status"])
	assert.Equal(t, "info", logData["level"])
}

func TestRequireAuth(t *testing.T) {
	verifier := new(authMocks.MockVerifier)
	resolver := auth.NewResolver(verifier, "https://issuer", "api://docvoice")

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(apperr.StatusOf(err)).SendString(apperr.KindOf(err).Code())
		},
	})
	app.Use(RequireAuth(resolver))
	app.Get("/me", func(c *fiber.Ctx) error {
		p, ok := Principal(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(p)
	})

	verifier.On("Verify", mock.Anything, "good", "https://issuer", "api://docvoice").
		Return(auth.Claims{ObjectID: "oid-1", Email: "a@b.c", Roles: []string{"Premium"}}, nil)
	verifier.On("Verify", mock.Anything, "old", "https://issuer", "api://docvoice").
		Return(auth.Claims{}, auth.ErrTokenExpired)
	verifier.On("Verify", mock.Anything, "bad", "https://issuer", "api://docvoice").
		Return(auth.Claims{}, errors.New("signature mismatch"))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "missing header", header: "", wantStatus: 401, wantBody: "AUTH_NO_TOKEN"},
		{name: "no scheme", header: "good", wantStatus: 401, wantBody: "AUTH_INVALID_TOKEN"},
		{name: "expired", header: "Bearer old", wantStatus: 401, wantBody: "AUTH_TOKEN_EXPIRED"},
		{name: "bad signature", header: "Bearer bad", wantStatus: 401, wantBody: "AUTH_TOKEN_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, _ := app.Test(req)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			buf := new(bytes.Buffer)
			buf.ReadFrom(resp.Body)
			assert.Equal(t, tt.wantBody, buf.String())
		})
	}

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		resp, _ := app.Test(req)

		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var p model.Principal
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
		assert.Equal(t, "oid-1", p.ID)
		assert.Equal(t, model.TierPremium, p.Tier)
	})
}
