package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/motionforge/api/internal/model"
	"github.com/motionforge/api/internal/provider"
	"go.uber.org/zap"
)

// Submission outcomes reported to Metrics
const (
	SubmissionAccepted          = "accepted"
	SubmissionInvalid           = "invalid"
	SubmissionStorageError      = "storage_error"
	SubmissionAllAdaptersFailed = "all_adapters_failed"
	SubmissionCanceled          = "canceled"
)

const maxPromptRunes = 1000

// AdapterRegistry is the part of provider.Registry the orchestrator needs
type AdapterRegistry interface {
	SubmitWithReport(ctx context.Context, prompt, imageURL string) (*provider.SubmitReport, error)
	PollFor(ctx context.Context, adapterID, jobID string) (*model.NormalizedStatus, error)
	Primary() string
}

// Metrics observes submissions
type Metrics interface {
	Submission(outcome string)
	AssetUploaded(size int)
}

type nopMetrics struct{}

func (nopMetrics) Submission(string) {}
func (nopMetrics) AssetUploaded(int) {}

// SubmitInput is a generate request as received from the client
type SubmitInput struct {
	Prompt      string `validate:"required,max=1000"`
	Image       []byte `validate:"min=1"`
	Filename    string
	ContentType string `validate:"required"`
}

// GenerationService is the job orchestrator: it validates input, stores the
// source image and submits through the adapter registry. It keeps no job state.
type GenerationService struct {
	assets        *AssetService
	registry      AdapterRegistry
	maxImageBytes int64
	metrics       Metrics
	logger        *zap.Logger
	validate      *validator.Validate
}

// NewGenerationService creates the orchestrator. metrics may be nil.
func NewGenerationService(assets *AssetService, registry AdapterRegistry, maxImageBytes int64, metrics Metrics, logger *zap.Logger) *GenerationService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &GenerationService{
		assets:        assets,
		registry:      registry,
		maxImageBytes: maxImageBytes,
		metrics:       metrics,
		logger:        logger.With(zap.String("component", "generation-service")),
		validate:      validator.New(),
	}
}

// MaxImageBytes is the largest accepted source image
func (s *GenerationService) MaxImageBytes() int64 {
	return s.maxImageBytes
}

// Submit validates the input, stores the image and creates a provider job.
// Exactly one of the results is non-nil.
func (s *GenerationService) Submit(ctx context.Context, in SubmitInput) (*model.JobHandle, error) {
	in.Prompt = strings.TrimSpace(in.Prompt)
	contentType, err := s.validateInput(&in)
	if err != nil {
		s.metrics.Submission(SubmissionInvalid)
		return nil, err
	}

	asset, err := s.assets.Put(ctx, in.Filename, in.Image, contentType)
	if err != nil {
		s.metrics.Submission(SubmissionStorageError)
		s.logger.Error("asset store failed", zap.Error(err))
		return nil, err
	}
	s.metrics.AssetUploaded(len(in.Image))

	report, err := s.registry.SubmitWithReport(ctx, in.Prompt, asset.URL)
	if err != nil {
		var allErr *provider.AllAdaptersFailedError
		switch {
		case errors.As(err, &allErr):
			s.metrics.Submission(SubmissionAllAdaptersFailed)
			s.logger.Error("all provider adapters failed",
				zap.String("asset_key", asset.Key),
				zap.Error(err),
			)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			s.metrics.Submission(SubmissionCanceled)
		}
		// no job references the asset
		s.discard(ctx, asset.Key)
		return nil, err
	}

	for _, f := range report.Failures {
		s.logger.Warn("adapter skipped during fallback",
			zap.String("adapter", f.AdapterID),
			zap.Error(f.Err),
		)
	}
	s.metrics.Submission(SubmissionAccepted)
	return report.Handle, nil
}

// Poll fetches the normalized status of a job from the adapter that created it.
// An empty adapter id selects the primary adapter.
func (s *GenerationService) Poll(ctx context.Context, handle model.JobHandle) (*model.NormalizedStatus, error) {
	jobID := strings.TrimSpace(handle.JobID)
	if jobID == "" {
		return nil, &ValidationError{Field: "jobId", Message: "is required"}
	}
	adapterID := strings.TrimSpace(handle.AdapterID)
	if adapterID == "" {
		adapterID = s.registry.Primary()
	}

	status, err := s.registry.PollFor(ctx, adapterID, jobID)
	if err != nil {
		return nil, err
	}
	if err := status.Validate(); err != nil {
		return nil, &provider.StatusError{AdapterID: adapterID, JobID: jobID, Err: err}
	}
	return status, nil
}

func (s *GenerationService) validateInput(in *SubmitInput) (string, error) {
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return "", fieldError(verrs[0])
		}
		return "", &ValidationError{Message: err.Error()}
	}

	if int64(len(in.Image)) > s.maxImageBytes {
		return "", &ValidationError{
			Field:   "image",
			Message: fmt.Sprintf("must be at most %s", formatBytes(s.maxImageBytes)),
		}
	}

	mediaType, _, err := mime.ParseMediaType(in.ContentType)
	if err != nil {
		return "", &ValidationError{Field: "image", Message: "has an invalid content type"}
	}
	for _, allowed := range model.ValidImageContentTypes {
		if mediaType == allowed {
			return mediaType, nil
		}
	}
	return "", &ValidationError{
		Field:   "image",
		Message: fmt.Sprintf("must be one of %s", strings.Join(model.ValidImageContentTypes, ", ")),
	}
}

// discard removes an asset nothing will reference. It runs detached from
// ctx so a finished request still cleans up.
func (s *GenerationService) discard(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.assets.Discard(ctx, key); err != nil {
		s.logger.Warn("failed to discard orphaned asset", zap.String("key", key), zap.Error(err))
	}
}

func fieldError(fe validator.FieldError) *ValidationError {
	switch fe.Field() {
	case "Prompt":
		if fe.Tag() == "max" {
			return &ValidationError{Field: "prompt", Message: fmt.Sprintf("must be at most %d characters", maxPromptRunes)}
		}
		return &ValidationError{Field: "prompt", Message: "is required"}
	case "Image":
		return &ValidationError{Field: "image", Message: "is required"}
	case "ContentType":
		return &ValidationError{Field: "image", Message: "content type is required"}
	default:
		return &ValidationError{Field: strings.ToLower(fe.Field()), Message: fe.Tag()}
	}
}

func formatBytes(n int64) string {
	const mib = 1 << 20
	if n >= mib && n%mib == 0 {
		return fmt.Sprintf("%d MiB", n/mib)
	}
	return fmt.Sprintf("%d bytes", n)
}
