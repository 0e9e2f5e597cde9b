package provider

import (
	"context"
	"net/http"
)

// Header is a single HTTP header. Name casing is sent exactly as configured,
// since some provider versions are strict about it.
type Header struct {
	Name  string `yaml:"name" json:"name" validate:"required"`
	Value string `yaml:"value" json:"value"`
}

// Request is a provider call described as plain data. Adapters build
// requests; a Transport performs them.
type Request struct {
	Method  string
	URL     string
	Headers []Header
	Body    []byte
}

// Header returns the value of the first header matching name case-insensitively
func (r *Request) Header(name string) string {
	for _, h := range r.Headers {
		if http.CanonicalHeaderKey(h.Name) == http.CanonicalHeaderKey(name) {
			return h.Value
		}
	}
	return ""
}

// Response is the raw outcome of a provider call. Non-2xx statuses are not
// transport errors; adapters interpret them.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport performs provider requests
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}
