package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/motionforge/api/internal/middleware"
	"github.com/motionforge/api/internal/model"
	"github.com/motionforge/api/internal/service"
	"github.com/motionforge/api/pkg/response"
	"go.uber.org/zap"
)

// Multipart field names. The second name of each pair is the one the
// legacy web UI sends.
var (
	promptFields = []string{"prompt", "promptText"}
	imageFields  = []string{"image", "promptImage"}
)

// AdapterDescriber lists the configured adapters
type AdapterDescriber interface {
	Describe() []model.AdapterInfo
}

type GenerateHandler struct {
	service   *service.GenerationService
	adapters  AdapterDescriber
	validator *validator.Validate
	logger    *zap.Logger
}

func NewGenerateHandler(svc *service.GenerationService, adapters AdapterDescriber, v *validator.Validate, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{
		service:   svc,
		adapters:  adapters,
		validator: v,
		logger:    logger.With(zap.String("component", "generate-handler")),
	}
}

// Generate handles POST /generate
func (h *GenerateHandler) Generate(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return response.ValidationError(c, "Request must be multipart/form-data", nil)
	}

	in := service.SubmitInput{Prompt: firstValue(form, promptFields)}

	if fh := firstFile(form, imageFields); fh != nil {
		data, err := readLimited(fh, h.service.MaxImageBytes())
		if err != nil {
			return response.ValidationError(c, "Failed to read image", nil)
		}
		in.Image = data
		in.Filename = fh.Filename
		in.ContentType = fh.Header.Get(fiber.HeaderContentType)
		if in.ContentType == "" || strings.HasPrefix(in.ContentType, fiber.MIMEOctetStream) {
			in.ContentType = http.DetectContentType(data)
		}
	}

	handle, err := h.service.Submit(c.Context(), in)
	if err != nil {
		return writeError(c, h.logger, err)
	}

	h.logger.Info("job submitted",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("job_id", handle.JobID),
		zap.String("adapter", handle.AdapterID),
	)

	return response.OK(c, model.GenerateResponse{
		Success:   true,
		JobID:     handle.JobID,
		TaskID:    handle.JobID,
		AdapterID: handle.AdapterID,
		Status:    handle.InitialState,
	})
}

// Status handles POST /status
func (h *GenerateHandler) Status(c *fiber.Ctx) error {
	var req model.StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	status, err := h.service.Poll(c.Context(), model.JobHandle{
		JobID:     req.ResolvedJobID(),
		AdapterID: req.AdapterID,
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}

	return response.OK(c, model.NewStatusResponse(status))
}

// Adapters handles GET /adapters
func (h *GenerateHandler) Adapters(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{
		"success":  true,
		"adapters": h.adapters.Describe(),
	})
}

func firstValue(form *multipart.Form, names []string) string {
	for _, name := range names {
		if values := form.Value[name]; len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}
	return ""
}

func firstFile(form *multipart.Form, names []string) *multipart.FileHeader {
	for _, name := range names {
		if files := form.File[name]; len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

// readLimited reads at most max+1 bytes so an oversized upload is detected
// without buffering all of it
func readLimited(fh *multipart.FileHeader, max int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(io.LimitReader(f, max+1))
}
