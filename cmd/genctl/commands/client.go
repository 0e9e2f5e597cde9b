package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/motionforge/api/internal/model"
	"github.com/motionforge/api/pkg/response"
)

// APIClient talks to a running generation server
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a client for the server at baseURL
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a {success:false} answer from the server
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Submit uploads the image at imagePath with prompt
func (c *APIClient) Submit(ctx context.Context, prompt, imagePath string) (*model.GenerateResponse, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("prompt", prompt); err != nil {
		return nil, err
	}

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(imagePath)))
	hdr.Set("Content-Type", imageContentType(imagePath, data))
	part, err := w.CreatePart(hdr)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var result model.GenerateResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Status fetches the normalized status of a job
func (c *APIClient) Status(ctx context.Context, jobID, adapterID string) (*model.NormalizedStatus, error) {
	payload, err := json.Marshal(model.StatusRequest{
		JobID:     jobID,
		AdapterID: adapterID,
		Action:    "status",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/status", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var result model.StatusResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}

	status := &model.NormalizedStatus{
		State:    result.Status,
		Progress: result.Progress,
	}
	if result.VideoURL != nil {
		status.VideoURL = *result.VideoURL
	}
	if result.Failure != nil {
		status.FailureReason = *result.Failure
	}
	return status, nil
}

func (c *APIClient) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp response.ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func imageContentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return http.DetectContentType(data)
}
