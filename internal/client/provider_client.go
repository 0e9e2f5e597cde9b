package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/motionforge/api/internal/provider"
	"go.uber.org/zap"
)

const maxProviderResponse = 4 << 20

// ProviderClient performs provider requests over HTTP. It implements
// provider.Transport; non-2xx answers are returned as responses, not errors.
type ProviderClient struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewProviderClient creates a provider HTTP client with the given per-call timeout
func NewProviderClient(timeout time.Duration, logger *zap.Logger) *ProviderClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ProviderClient{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(zap.String("component", "provider-client")),
	}
}

// Do executes req and returns the raw status code and body
func (c *ProviderClient) Do(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// set directly so header names keep their configured casing
	for _, h := range req.Headers {
		httpReq.Header[h.Name] = []string{h.Value}
	}

	c.logger.Debug("→ provider request",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("✗ provider request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponse))
	if err != nil {
		c.logger.Warn("✗ failed to read provider response",
			zap.String("method", req.Method),
			zap.String("url", req.URL),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("← provider response",
		zap.Int("status", resp.StatusCode),
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Duration("elapsed", time.Since(start)),
		zap.ByteString("body", respBody),
	)

	return &provider.Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}
