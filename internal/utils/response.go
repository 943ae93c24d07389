package utils

import (
	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
)

// Error codes carried by failure envelopes.
const (
	CodeValidation        = "validation_error"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeStaleState        = "stale_state"
	CodeInvalidTransition = "invalid_transition"
	CodeAlreadyCompleted  = "already_completed"
	CodeLimitExceeded     = "limit_exceeded"
	CodeRateLimited       = "rate_limited"
	CodeUploadsDisabled   = "uploads_disabled"
	CodeInternal          = "internal_error"
)

// ErrorResponse describes the failure envelope.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SendEntity sends a success envelope carrying value under key, e.g. {"success":true,"assignment":{...}}.
func SendEntity(c *fiber.Ctx, status int, key string, value interface{}, message string) error {
	if message == "" {
		message = "success"
	}
	if status == 0 {
		status = fiber.StatusOK
	}

	body := fiber.Map{
		"success": true,
		"message": message,
	}
	if key != "" {
		body[key] = value
	}

	return c.Status(status).JSON(body)
}

// SendSuccess sends a success envelope without an entity.
func SendSuccess(c *fiber.Ctx, message string) error {
	return SendEntity(c, fiber.StatusOK, "", nil, message)
}

// Fail sends a failure envelope with an explicit error code.
func Fail(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	if message == "" {
		message = "error"
	}
	if code == "" {
		code = codeForStatus(status)
	}

	return c.Status(status).JSON(ErrorResponse{
		Success: false,
		Error:   fiberStatusText(status),
		Code:    code,
		Message: message,
		Details: details,
	})
}

// SendError sends a failure envelope whose code is derived from the status.
func SendError(c *fiber.Ctx, status int, message string) error {
	return Fail(c, status, "", message, nil)
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return CodeValidation
	case fiber.StatusUnauthorized:
		return CodeUnauthorized
	case fiber.StatusForbidden:
		return CodeForbidden
	case fiber.StatusNotFound:
		return CodeNotFound
	case fiber.StatusConflict:
		return CodeStaleState
	case fiber.StatusUnprocessableEntity:
		return CodeInvalidTransition
	case fiber.StatusTooManyRequests:
		return CodeRateLimited
	default:
		return CodeInternal
	}
}

func fiberStatusText(status int) string {
	if text := fiberutils.StatusMessage(status); text != "" {
		return text
	}
	return "Error"
}
