package handler

import (
	"errors"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"cyberprint/internal/http/middleware"
	"cyberprint/internal/service"
)

// invalidCodeMessage is returned for every OTP failure so callers cannot tell a wrong
// code from an expired or missing one.
const invalidCodeMessage = "invalid or expired code"

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: middleware.RequestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError classifies a service error and renders it. Only validation messages
// are shown verbatim; everything else gets a fixed message per class.
func writeServiceError(c *fiber.Ctx, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", verr.Message)

	case errors.Is(err, service.ErrCodeMismatch),
		errors.Is(err, service.ErrCodeExpired),
		errors.Is(err, service.ErrNoLiveCode):
		return writeError(c, fiber.StatusForbidden, "INVALID_CODE", invalidCodeMessage)
	case errors.Is(err, service.ErrGrantInvalid):
		return writeError(c, fiber.StatusForbidden, "GRANT_INVALID", "access grant is invalid or expired")
	case errors.Is(err, service.ErrAuthorization):
		return writeError(c, fiber.StatusForbidden, "FORBIDDEN", "operation not permitted")

	case errors.Is(err, service.ErrCenterNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "center not found")
	case errors.Is(err, service.ErrDocumentNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "resource not found")

	case errors.Is(err, service.ErrAlreadyPrinted):
		return writeError(c, fiber.StatusConflict, "ALREADY_PRINTED", "document already printed")
	case errors.Is(err, service.ErrAlreadyConsumed):
		return writeError(c, fiber.StatusConflict, "ALREADY_CONSUMED", "code already used")
	case errors.Is(err, service.ErrCodeStillLive):
		return writeError(c, fiber.StatusConflict, "CODE_STILL_LIVE", "a code was already sent and is still valid")
	case errors.Is(err, service.ErrNotDelivered):
		return writeError(c, fiber.StatusConflict, "NOT_DELIVERED", "document has not been delivered for printing")
	case errors.Is(err, service.ErrConflict):
		return writeError(c, fiber.StatusConflict, "INVALID_STATE", "document state does not allow this operation")

	case errors.Is(err, service.ErrContentUnavailable):
		return writeError(c, fiber.StatusServiceUnavailable, "CONTENT_UNAVAILABLE", "content temporarily unavailable, retry")
	case errors.Is(err, service.ErrTransient):
		return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
	}

	reportInternal(c, err)
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

func reportInternal(c *fiber.Ctx, err error) {
	zap.L().Error("request_failed",
		zap.String("request_id", middleware.RequestIDFromCtx(c)),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("request_id", middleware.RequestIDFromCtx(c))
		scope.SetTag("route", c.Route().Path)
		sentry.CaptureException(err)
	})
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "missing or invalid bearer token")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "FILE_TOO_LARGE", "request body too large")
		case fiber.StatusTooManyRequests:
			return writeError(c, status, "RATE_LIMITED", "too many requests")
		default:
			reportInternal(c, err)
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
