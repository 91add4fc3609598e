package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docvoice/internal/apperr"
	"docvoice/internal/http/middleware"
	"docvoice/internal/logger"
)

// errorPayload is the error response body.
type errorPayload struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Details   string `json:"details,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes the error body for the given status and code.
func writeError(c *fiber.Ctx, status int, code, message, details string) error {
	return c.Status(status).JSON(errorPayload{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: requestIDFromCtx(c),
		Details:   details,
	})
}

// ErrorHandler returns the Fiber global error handler.
// Typed failures keep their code and message; details are written only when exposeDetails is set.
// Anything else renders as INTERNAL_ERROR.
func ErrorHandler(exposeDetails bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if e, ok := apperr.As(err); ok {
			details := ""
			if exposeDetails {
				details = e.Details()
			}
			if e.Status() >= fiber.StatusInternalServerError {
				logger.C(c.UserContext()).Error().Err(err).Str("code", e.Code()).Msg("request failed")
			}
			return writeError(c, e.Status(), e.Code(), e.Message(), details)
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			switch fe.Code {
			case fiber.StatusBadRequest:
				return writeError(c, fe.Code, "BAD_REQUEST", "bad request", "")
			case fiber.StatusNotFound:
				return writeError(c, fe.Code, "NOT_FOUND", "resource not found", "")
			case fiber.StatusMethodNotAllowed:
				return writeError(c, fe.Code, "METHOD_NOT_ALLOWED", "method not allowed", "")
			case fiber.StatusRequestEntityTooLarge:
				return writeError(c, fe.Code, apperr.TooLarge.Code(), "request body too large", "")
			}
			if fe.Code < fiber.StatusInternalServerError {
				return writeError(c, fe.Code, "REQUEST_ERROR", fe.Message, "")
			}
		}

		logger.C(c.UserContext()).Error().Err(err).Msg("unhandled error")
		details := ""
		if exposeDetails {
			details = err.Error()
		}
		return writeError(c, fiber.StatusInternalServerError, apperr.InternalError.Code(), "internal server error", details)
	}
}
