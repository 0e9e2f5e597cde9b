package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/motionforge/api/internal/model"
)

const jobIDPlaceholder = "{id}"

var validate = validator.New()

// RequestMap tells an adapter where to put the prompt and the image URL
type RequestMap struct {
	PromptField string         `yaml:"prompt_field" validate:"required"`
	ImageField  string         `yaml:"image_field" validate:"required"`
	Static      map[string]any `yaml:"static"`
}

// ResponseMap tells an adapter where to find values in provider responses
type ResponseMap struct {
	IDField          string                    `yaml:"id_field" validate:"required"`
	StatusField      string                    `yaml:"status_field" validate:"required"`
	ProgressField    string                    `yaml:"progress_field"`
	ProgressScale    ProgressScale             `yaml:"progress_scale" validate:"omitempty,oneof=unit percent"`
	OutputField      string                    `yaml:"output_field" validate:"required"`
	FailureField     string                    `yaml:"failure_field"`
	FailureCodeField string                    `yaml:"failure_code_field"`
	States           map[string]model.JobState `yaml:"states"`
}

// Adapter is one provider contract version: endpoints, headers and field
// names. All four request/response functions are pure; network I/O is done
// by the Registry through a Transport.
type Adapter struct {
	ID         string      `yaml:"id" validate:"required,max=128"`
	BaseURL    string      `yaml:"base_url" validate:"required,url"`
	SubmitPath string      `yaml:"submit_path" validate:"required,startswith=/"`
	StatusPath string      `yaml:"status_path" validate:"required,startswith=/,contains={id}"`
	Headers    []Header    `yaml:"headers" validate:"dive"`
	Request    RequestMap  `yaml:"request"`
	Response   ResponseMap `yaml:"response"`

	apiKey string
}

// WithCredential returns a copy of the adapter that authenticates with apiKey
func (a Adapter) WithCredential(apiKey string) Adapter {
	a.apiKey = apiKey
	return a
}

// WithBaseURL returns a copy of the adapter pointed at baseURL
func (a Adapter) WithBaseURL(baseURL string) Adapter {
	a.BaseURL = baseURL
	return a
}

// HasCredential reports whether a bearer credential is configured
func (a Adapter) HasCredential() bool {
	return a.apiKey != ""
}

// Validate checks the adapter configuration, including every field path
func (a Adapter) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("adapter %q: %w", a.ID, err)
	}

	paths := map[string]string{
		"request.prompt_field":  a.Request.PromptField,
		"request.image_field":   a.Request.ImageField,
		"response.id_field":     a.Response.IDField,
		"response.status_field": a.Response.StatusField,
		"response.output_field": a.Response.OutputField,
	}
	for name, optional := range map[string]string{
		"response.progress_field":     a.Response.ProgressField,
		"response.failure_field":      a.Response.FailureField,
		"response.failure_code_field": a.Response.FailureCodeField,
	} {
		if optional != "" {
			paths[name] = optional
		}
	}
	for name, p := range paths {
		if _, err := parsePath(p); err != nil {
			return fmt.Errorf("adapter %q: %s: %w", a.ID, name, err)
		}
	}

	// request paths are assigned, so they must not index into arrays
	probe := map[string]any{}
	if err := assignPath(probe, a.Request.PromptField, ""); err != nil {
		return fmt.Errorf("adapter %q: %w", a.ID, err)
	}
	if err := assignPath(probe, a.Request.ImageField, ""); err != nil {
		return fmt.Errorf("adapter %q: %w", a.ID, err)
	}

	for raw, state := range a.Response.States {
		if !state.IsValid() {
			return fmt.Errorf("adapter %q: status %q maps to invalid state %q", a.ID, raw, state)
		}
	}
	return nil
}

// SubmitURL is the absolute URL of the submit endpoint
func (a Adapter) SubmitURL() string {
	return strings.TrimRight(a.BaseURL, "/") + a.SubmitPath
}

// StatusURL is the absolute URL of the status endpoint for jobID
func (a Adapter) StatusURL(jobID string) string {
	path := strings.ReplaceAll(a.StatusPath, jobIDPlaceholder, url.PathEscape(jobID))
	return strings.TrimRight(a.BaseURL, "/") + path
}

// Info describes the adapter for operators
func (a Adapter) Info() model.AdapterInfo {
	return model.AdapterInfo{
		ID:        a.ID,
		SubmitURL: a.SubmitURL(),
		StatusURL: strings.TrimRight(a.BaseURL, "/") + a.StatusPath,
	}
}

// BuildSubmitRequest builds the provider call that creates a job
func (a Adapter) BuildSubmitRequest(prompt, imageURL string) (*Request, error) {
	body := make(map[string]any, len(a.Request.Static)+2)
	for k, v := range a.Request.Static {
		body[k] = deepCopy(v)
	}
	if err := assignPath(body, a.Request.PromptField, prompt); err != nil {
		return nil, fmt.Errorf("adapter %s: %w", a.ID, err)
	}
	if err := assignPath(body, a.Request.ImageField, imageURL); err != nil {
		return nil, fmt.Errorf("adapter %s: %w", a.ID, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("adapter %s: failed to marshal request: %w", a.ID, err)
	}

	headers := a.baseHeaders()
	headers = append(headers, Header{Name: "Content-Type", Value: "application/json"})

	return &Request{
		Method:  http.MethodPost,
		URL:     a.SubmitURL(),
		Headers: headers,
		Body:    payload,
	}, nil
}

// ParseSubmitResponse turns the provider's answer into a job handle.
// CreatedAt is left for the caller to stamp.
func (a Adapter) ParseSubmitResponse(httpStatus int, body []byte) (*model.JobHandle, error) {
	if !isSuccess(httpStatus) {
		return nil, &SubmitError{
			AdapterID:       a.ID,
			HTTPStatus:      httpStatus,
			ProviderMessage: providerMessage(body),
		}
	}

	doc, err := decodeBody(body)
	if err != nil {
		return nil, &SubmitError{AdapterID: a.ID, HTTPStatus: httpStatus, ProviderMessage: "undecodable response body", Err: err}
	}

	jobID, ok := lookupString(doc, a.Response.IDField)
	if !ok {
		return nil, &SubmitError{
			AdapterID:       a.ID,
			HTTPStatus:      httpStatus,
			ProviderMessage: fmt.Sprintf("response has no %q field", a.Response.IDField),
		}
	}

	state := model.JobStateQueued
	if raw, ok := lookupString(doc, a.Response.StatusField); ok {
		if s, ok := normalizeState(raw, a.Response.States); ok {
			state = s
		}
	}

	return &model.JobHandle{
		JobID:        jobID,
		AdapterID:    a.ID,
		InitialState: state,
	}, nil
}

// BuildStatusRequest builds the provider call that reads a job's status
func (a Adapter) BuildStatusRequest(jobID string) (*Request, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("adapter %s: job id is required", a.ID)
	}
	return &Request{
		Method:  http.MethodGet,
		URL:     a.StatusURL(jobID),
		Headers: a.baseHeaders(),
	}, nil
}

// ParseStatusResponse translates this adapter's status payload into a NormalizedStatus
func (a Adapter) ParseStatusResponse(httpStatus int, body []byte) (*model.NormalizedStatus, error) {
	if !isSuccess(httpStatus) {
		return nil, &StatusError{
			AdapterID:       a.ID,
			HTTPStatus:      httpStatus,
			ProviderMessage: providerMessage(body),
		}
	}

	doc, err := decodeBody(body)
	if err != nil {
		return nil, &StatusError{AdapterID: a.ID, HTTPStatus: httpStatus, ProviderMessage: "undecodable response body", Err: err}
	}

	raw, ok := lookupString(doc, a.Response.StatusField)
	if !ok {
		return nil, &StatusError{
			AdapterID:       a.ID,
			HTTPStatus:      httpStatus,
			ProviderMessage: fmt.Sprintf("response has no %q field", a.Response.StatusField),
		}
	}
	state, ok := normalizeState(raw, a.Response.States)
	if !ok {
		return nil, &StatusError{
			AdapterID:       a.ID,
			HTTPStatus:      httpStatus,
			ProviderMessage: fmt.Sprintf("unrecognized status %q", raw),
		}
	}

	status := &model.NormalizedStatus{State: state}
	status.Progress = a.progress(doc)

	switch state {
	case model.JobStateSucceeded:
		videoURL, ok := lookupString(doc, a.Response.OutputField)
		if !ok {
			return nil, &StatusError{
				AdapterID:       a.ID,
				HTTPStatus:      httpStatus,
				ProviderMessage: fmt.Sprintf("succeeded without %q", a.Response.OutputField),
			}
		}
		status.VideoURL = videoURL
	case model.JobStateFailed:
		status.FailureReason = a.failureReason(doc, raw)
	}

	return status, nil
}

func (a Adapter) progress(doc any) *float64 {
	if a.Response.ProgressField == "" {
		return nil
	}
	raw, ok := lookupPath(doc, a.Response.ProgressField)
	if !ok {
		return nil
	}
	value, percent, ok := progressValue(raw)
	if !ok {
		return nil
	}

	scale := a.Response.ProgressScale
	if scale == "" {
		scale = ProgressScaleUnit
	}
	if percent {
		scale = ProgressScalePercent
	}
	p := NormalizeProgress(value, scale)
	return &p
}

func (a Adapter) failureReason(doc any, rawStatus string) string {
	var reason, code string
	if a.Response.FailureField != "" {
		reason, _ = lookupString(doc, a.Response.FailureField)
	}
	if a.Response.FailureCodeField != "" {
		code, _ = lookupString(doc, a.Response.FailureCodeField)
	}

	switch {
	case reason != "" && code != "":
		return fmt.Sprintf("%s (%s)", reason, code)
	case reason != "":
		return reason
	case code != "":
		return code
	default:
		return fmt.Sprintf("provider reported status %s", rawStatus)
	}
}

func (a Adapter) baseHeaders() []Header {
	headers := make([]Header, 0, len(a.Headers)+3)
	if a.apiKey != "" {
		headers = append(headers, Header{Name: "Authorization", Value: "Bearer " + a.apiKey})
	}
	headers = append(headers, Header{Name: "Accept", Value: "application/json"})
	return append(headers, a.Headers...)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func decodeBody(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty body")
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

const maxProviderMessage = 300

// providerMessage extracts a readable error message from a provider error body
func providerMessage(body []byte) string {
	if doc, err := decodeBody(body); err == nil {
		for _, path := range []string{"error.message", "error", "message", "failure", "detail", "errors[0].message"} {
			if msg, ok := lookupString(doc, path); ok {
				return truncate(msg)
			}
		}
	}
	return truncate(strings.TrimSpace(string(body)))
}

func truncate(s string) string {
	if len(s) <= maxProviderMessage {
		return s
	}
	return s[:maxProviderMessage] + "..."
}
