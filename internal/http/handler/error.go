package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"deptportal/internal/category"
	"deptportal/internal/http/middleware"
	"deptportal/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
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

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "authentication required")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "FILE_TOO_LARGE", "request body too large")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}

// failureStatus maps an upload failure kind to its HTTP status and error code.
func failureStatus(k service.Kind) (int, string) {
	switch k {
	case service.KindMissingOwnerIdentifier:
		return fiber.StatusBadRequest, "MISSING_OWNER_ID"
	case service.KindUnsupportedMediaType:
		return fiber.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE"
	case service.KindFileTooLarge:
		return fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"
	case service.KindCompressionFailed:
		return fiber.StatusInternalServerError, "COMPRESSION_FAILED"
	default:
		return fiber.StatusInternalServerError, "FILESYSTEM_ERROR"
	}
}

// writeUploadError renders errors from the upload service. Failure messages are already safe.
func writeUploadError(c *fiber.Ctx, err error) error {
	if errors.Is(err, category.ErrUnknownCategory) {
		return writeError(c, fiber.StatusNotFound, "UNKNOWN_CATEGORY", "unknown upload category")
	}
	if kind, ok := service.KindOf(err); ok {
		status, code := failureStatus(kind)
		return writeError(c, status, code, err.Error())
	}
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}
