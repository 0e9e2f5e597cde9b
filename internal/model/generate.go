package model

import "time"

// GenerateResponse is returned by POST /generate.
// TaskID repeats JobID for clients that still read taskId.
type GenerateResponse struct {
	Success   bool     `json:"success"`
	JobID     string   `json:"jobId"`
	TaskID    string   `json:"taskId"`
	AdapterID string   `json:"adapterId"`
	Status    JobState `json:"status"`
}

// StatusRequest is the body of POST /status.
// TaskID is accepted as an alias of JobID for older clients.
type StatusRequest struct {
	JobID     string `json:"jobId" validate:"required_without=TaskID,max=256"`
	TaskID    string `json:"taskId" validate:"max=256"`
	AdapterID string `json:"adapterId" validate:"max=128"`
	Action    string `json:"action" validate:"required,oneof=status"`
}

// ResolvedJobID returns JobID, falling back to TaskID
func (r *StatusRequest) ResolvedJobID() string {
	if r.JobID != "" {
		return r.JobID
	}
	return r.TaskID
}

// StatusResponse is returned by POST /status. Absent fields are rendered as null.
type StatusResponse struct {
	Success  bool     `json:"success"`
	Status   JobState `json:"status"`
	Progress *float64 `json:"progress"`
	VideoURL *string  `json:"videoUrl"`
	Failure  *string  `json:"failure"`
}

// NewStatusResponse converts a normalized status into the wire shape
func NewStatusResponse(s *NormalizedStatus) *StatusResponse {
	resp := &StatusResponse{
		Success:  true,
		Status:   s.State,
		Progress: s.Progress,
	}
	if s.VideoURL != "" {
		url := s.VideoURL
		resp.VideoURL = &url
	}
	if s.FailureReason != "" {
		reason := s.FailureReason
		resp.Failure = &reason
	}
	return resp
}

// WatchRequest is the body of POST /watch
type WatchRequest struct {
	JobID     string `json:"jobId" validate:"required,max=256"`
	AdapterID string `json:"adapterId" validate:"max=128"`
}

// WatchStartResponse is returned by POST /watch
type WatchStartResponse struct {
	Success   bool   `json:"success"`
	JobID     string `json:"jobId"`
	AdapterID string `json:"adapterId"`
	TaskID    string `json:"taskId"`
}

// WatchRecord is the latest status observed by the server-side watcher.
// Status is nil until the first successful poll. A timeout is recorded with
// TimedOut set and the last observed status left untouched.
type WatchRecord struct {
	JobID     string            `json:"jobId"`
	AdapterID string            `json:"adapterId"`
	Status    *NormalizedStatus `json:"status"`
	TimedOut  bool              `json:"timedOut"`
	Error     string            `json:"error,omitempty"`
	Polls     int               `json:"polls"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Done reports whether the watcher has stopped for this job
func (r *WatchRecord) Done() bool {
	return r.TimedOut || r.Error != "" || (r.Status != nil && r.Status.State.IsTerminal())
}

// WatchPayload is the asynq task payload for the watcher
type WatchPayload struct {
	JobID     string    `json:"jobId"`
	AdapterID string    `json:"adapterId"`
	CreatedAt time.Time `json:"createdAt"`
}

// AdapterInfo describes a configured adapter without credentials
type AdapterInfo struct {
	ID        string `json:"id"`
	SubmitURL string `json:"submitUrl"`
	StatusURL string `json:"statusUrl"`
}
