package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/motionforge/api/internal/middleware"
	"github.com/motionforge/api/internal/provider"
	"github.com/motionforge/api/internal/service"
	"github.com/motionforge/api/pkg/response"
	"go.uber.org/zap"
)

// writeError maps service and provider errors onto the response envelope.
// Provider payloads and per-adapter details stay in the log.
func writeError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var (
		validationErr *service.ValidationError
		unknownErr    *provider.UnknownAdapterError
		storageErr    *service.StorageError
		allFailedErr  *provider.AllAdaptersFailedError
		statusErr     *provider.StatusError
		submitErr     *provider.SubmitError
	)

	switch {
	case errors.As(err, &validationErr):
		var details interface{}
		if validationErr.Field != "" {
			details = map[string]string{validationErr.Field: validationErr.Message}
		}
		return response.ValidationError(c, validationErr.Error(), details)
	case errors.As(err, &unknownErr):
		return response.UnknownAdapter(c, unknownErr.Error())
	case errors.Is(err, service.ErrWatchNotFound):
		return response.NotFound(c, "No watch record for this job")
	case errors.Is(err, service.ErrWatcherDisabled):
		return response.Unavailable(c, "Server-side watcher is disabled")
	}

	logger.Error("request failed",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("path", c.Path()),
		zap.Error(err),
	)

	switch {
	case errors.As(err, &storageErr):
		return response.StorageError(c, "Failed to store image")
	case errors.As(err, &allFailedErr):
		return response.ProviderError(c, allFailedErr.Summary())
	case errors.As(err, &statusErr):
		return response.ProviderError(c, upstreamMessage("Failed to fetch job status", statusErr.HTTPStatus))
	case errors.As(err, &submitErr):
		return response.ProviderError(c, upstreamMessage("Failed to submit job", submitErr.HTTPStatus))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return response.ServiceError(c, "Request canceled")
	default:
		return response.ServiceError(c, "Internal server error")
	}
}

func upstreamMessage(msg string, status int) string {
	if status == 0 {
		return msg
	}
	return fmt.Sprintf("%s (provider returned %d)", msg, status)
}

// ErrorHandler renders errors that escape the handlers, including the ones
// raised before any middleware runs (body over the limit), so it sets the
// CORS headers itself.
func ErrorHandler(logger *zap.Logger, allowOrigins string) fiber.ErrorHandler {
	setCORS := middleware.CORSHeaders(allowOrigins)

	return func(c *fiber.Ctx, err error) error {
		setCORS(c)

		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			logger.Error("unhandled error",
				zap.String("request_id", middleware.GetRequestID(c)),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		errCode := response.CodeServiceError
		switch code {
		case fiber.StatusRequestEntityTooLarge:
			code = fiber.StatusBadRequest
			errCode = response.CodeValidationError
			message = "Request body too large"
		case fiber.StatusBadRequest:
			errCode = response.CodeValidationError
		case fiber.StatusNotFound:
			errCode = response.CodeNotFound
		case fiber.StatusMethodNotAllowed:
			errCode = response.CodeMethodNotAllowed
		}

		return response.Error(c, code, errCode, message, nil)
	}
}

// MethodNotAllowed answers routes registered for another method
func MethodNotAllowed(c *fiber.Ctx) error {
	return response.MethodNotAllowed(c)
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
