package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/motionforge/api/internal/model"
	"go.uber.org/zap"
)

// Recorder observes adapter calls, e.g. for metrics
type Recorder interface {
	SubmitAttempt(adapterID string, err error)
	Poll(adapterID string, state model.JobState, err error)
}

type nopRecorder struct{}

func (nopRecorder) SubmitAttempt(string, error) {}
func (nopRecorder) Poll(string, model.JobState, error) {}

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the registry logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = logger.With(zap.String("component", "provider-registry"))
	}
}

// WithRecorder sets the observer for adapter calls
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) {
		r.recorder = rec
	}
}

// WithClock overrides the time source used to stamp job handles
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// SubmitReport is the outcome of a successful fallback submission,
// including the adapters that were tried and failed first.
type SubmitReport struct {
	Handle   *model.JobHandle
	Failures []AdapterFailure
}

// Registry holds the ordered adapter list. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	adapters  []Adapter
	byID      map[string]int
	transport Transport
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistry validates the adapters and builds a registry that tries them in order
func NewRegistry(adapters []Adapter, transport Transport, opts ...Option) (*Registry, error) {
	if len(adapters) == 0 {
		return nil, errors.New("at least one provider adapter is required")
	}
	if transport == nil {
		return nil, errors.New("provider transport is required")
	}

	r := &Registry{
		adapters:  make([]Adapter, len(adapters)),
		byID:      make(map[string]int, len(adapters)),
		transport: transport,
		recorder:  nopRecorder{},
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	copy(r.adapters, adapters)

	for i, a := range r.adapters {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate adapter id %q", a.ID)
		}
		r.byID[a.ID] = i
	}

	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Primary returns the id of the highest priority adapter
func (r *Registry) Primary() string {
	return r.adapters[0].ID
}

// IDs returns adapter ids in priority order
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		ids[i] = a.ID
	}
	return ids
}

// Has reports whether adapterID is configured
func (r *Registry) Has(adapterID string) bool {
	_, ok := r.byID[adapterID]
	return ok
}

// Describe lists the adapters for operators, without credentials
func (r *Registry) Describe() []model.AdapterInfo {
	infos := make([]model.AdapterInfo, len(r.adapters))
	for i, a := range r.adapters {
		infos[i] = a.Info()
	}
	return infos
}

// SubmitWithFallback creates a job on the first adapter that accepts it
func (r *Registry) SubmitWithFallback(ctx context.Context, prompt, imageURL string) (*model.JobHandle, error) {
	report, err := r.SubmitWithReport(ctx, prompt, imageURL)
	if err != nil {
		return nil, err
	}
	return report.Handle, nil
}

// SubmitWithReport tries each adapter in order and stops at the first
// success. If every adapter fails the error is *AllAdaptersFailedError
// carrying each failure in attempt order.
func (r *Registry) SubmitWithReport(ctx context.Context, prompt, imageURL string) (*SubmitReport, error) {
	var failures []AdapterFailure

	for _, a := range r.adapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		handle, err := r.submitOne(ctx, a, prompt, imageURL)
		r.recorder.SubmitAttempt(a.ID, err)
		if err != nil {
			r.logger.Warn("adapter rejected submission",
				zap.String("adapter", a.ID),
				zap.Error(err),
			)
			failures = append(failures, AdapterFailure{AdapterID: a.ID, Err: err})
			continue
		}

		handle.CreatedAt = r.now()
		r.logger.Info("job submitted",
			zap.String("adapter", a.ID),
			zap.String("job_id", handle.JobID),
			zap.Int("failed_adapters", len(failures)),
		)
		return &SubmitReport{Handle: handle, Failures: failures}, nil
	}

	return nil, &AllAdaptersFailedError{Failures: failures}
}

func (r *Registry) submitOne(ctx context.Context, a Adapter, prompt, imageURL string) (*model.JobHandle, error) {
	req, err := a.BuildSubmitRequest(prompt, imageURL)
	if err != nil {
		return nil, &SubmitError{AdapterID: a.ID, Err: err}
	}

	resp, err := r.transport.Do(ctx, req)
	if err != nil {
		return nil, &SubmitError{AdapterID: a.ID, Err: err}
	}

	return a.ParseSubmitResponse(resp.StatusCode, resp.Body)
}

// PollFor fetches a job status from the adapter that created the job.
// There is no fallback: job ids are only meaningful to their own adapter.
func (r *Registry) PollFor(ctx context.Context, adapterID, jobID string) (*model.NormalizedStatus, error) {
	idx, ok := r.byID[adapterID]
	if !ok {
		return nil, &UnknownAdapterError{AdapterID: adapterID}
	}
	a := r.adapters[idx]

	status, err := r.pollOne(ctx, a, jobID)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			statusErr.JobID = jobID
		}
		r.recorder.Poll(a.ID, "", err)
		r.logger.Warn("status check failed",
			zap.String("adapter", a.ID),
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return nil, err
	}

	r.recorder.Poll(a.ID, status.State, nil)
	return status, nil
}

func (r *Registry) pollOne(ctx context.Context, a Adapter, jobID string) (*model.NormalizedStatus, error) {
	req, err := a.BuildStatusRequest(jobID)
	if err != nil {
		return nil, &StatusError{AdapterID: a.ID, Err: err}
	}

	resp, err := r.transport.Do(ctx, req)
	if err != nil {
		return nil, &StatusError{AdapterID: a.ID, Err: err}
	}

	return a.ParseStatusResponse(resp.StatusCode, resp.Body)
}
