package model

import (
	"errors"
	"time"
)

// JobHandle identifies a job created by one provider adapter.
// It is created once per submit and never mutated; polls must be routed to
// AdapterID because provider job ids are not portable across contract versions.
type JobHandle struct {
	JobID        string    `json:"jobId"`
	AdapterID    string    `json:"adapterId"`
	CreatedAt    time.Time `json:"createdAt"`
	InitialState JobState  `json:"initialState"`
}

// NormalizedStatus is the single status shape returned for every adapter
type NormalizedStatus struct {
	State         JobState `json:"state"`
	Progress      *float64 `json:"progress,omitempty"`
	VideoURL      string   `json:"videoUrl,omitempty"`
	FailureReason string   `json:"failureReason,omitempty"`
}

var (
	ErrInvalidState       = errors.New("invalid job state")
	ErrProgressOutOfRange = errors.New("progress out of range")
	ErrMissingVideoURL    = errors.New("succeeded status without video url")
	ErrUnexpectedVideoURL = errors.New("video url on non-succeeded status")
	ErrMissingFailure     = errors.New("failed status without failure reason")
	ErrUnexpectedFailure  = errors.New("failure reason on non-failed status")
)

// Validate checks the state/payload exclusivity rules
func (s *NormalizedStatus) Validate() error {
	if !s.State.IsValid() {
		return ErrInvalidState
	}
	if s.Progress != nil && (*s.Progress < 0 || *s.Progress > 1) {
		return ErrProgressOutOfRange
	}

	switch s.State {
	case JobStateSucceeded:
		if s.VideoURL == "" {
			return ErrMissingVideoURL
		}
		if s.FailureReason != "" {
			return ErrUnexpectedFailure
		}
	case JobStateFailed:
		if s.FailureReason == "" {
			return ErrMissingFailure
		}
		if s.VideoURL != "" {
			return ErrUnexpectedVideoURL
		}
	default:
		if s.VideoURL != "" {
			return ErrUnexpectedVideoURL
		}
		if s.FailureReason != "" {
			return ErrUnexpectedFailure
		}
	}

	return nil
}

// ProgressValue returns progress or 0 when absent
func (s *NormalizedStatus) ProgressValue() float64 {
	if s.Progress == nil {
		return 0
	}
	return *s.Progress
}
