package response

import "github.com/gofiber/fiber/v2"

// Error codes
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeUnknownAdapter   = "UNKNOWN_ADAPTER"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeStorageError     = "STORAGE_ERROR"
	CodeProviderError    = "PROVIDER_ERROR"
	CodeServiceError     = "SERVICE_ERROR"
	CodeUnavailable      = "UNAVAILABLE"
	CodeRateLimited      = "RATE_LIMITED"
)

// ErrorResponse is the failure envelope. The UI reads error as a plain string.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
		Details: details,
	})
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func UnknownAdapter(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, CodeUnknownAdapter, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func MethodNotAllowed(c *fiber.Ctx) error {
	return Error(c, fiber.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed", nil)
}

func StorageError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeStorageError, message, nil)
}

func ProviderError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeProviderError, message, nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

func Unavailable(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusServiceUnavailable, CodeUnavailable, message, nil)
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Too many requests, please try again later", nil)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
