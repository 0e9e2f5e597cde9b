package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/motionforge/api/internal/model"
	"github.com/motionforge/api/internal/service"
	"github.com/motionforge/api/pkg/response"
	"go.uber.org/zap"
)

type WatchHandler struct {
	service   *service.WatchService
	validator *validator.Validate
	logger    *zap.Logger
}

func NewWatchHandler(svc *service.WatchService, v *validator.Validate, logger *zap.Logger) *WatchHandler {
	return &WatchHandler{
		service:   svc,
		validator: v,
		logger:    logger.With(zap.String("component", "watch-handler")),
	}
}

// Start handles POST /watch
func (h *WatchHandler) Start(c *fiber.Ctx) error {
	if !h.service.Enabled() {
		return writeError(c, h.logger, service.ErrWatcherDisabled)
	}

	var req model.WatchRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartWatch(c.Context(), &req)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return response.Accepted(c, result)
}

// Status handles GET /watch/:jobId?adapterId=
func (h *WatchHandler) Status(c *fiber.Ctx) error {
	if !h.service.Enabled() {
		return writeError(c, h.logger, service.ErrWatcherDisabled)
	}

	jobID := strings.TrimSpace(c.Params("jobId"))
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	rec, err := h.service.GetRecord(c.Context(), c.Query("adapterId"), jobID)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return response.OK(c, fiber.Map{
		"success": true,
		"watch":   rec,
		"done":    rec.Done(),
	})
}
