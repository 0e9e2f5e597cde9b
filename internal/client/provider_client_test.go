package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/motionforge/api/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProviderClient_Do(t *testing.T) {
	var gotHeaders http.Header
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"bad model"}`))
	}))
	defer srv.Close()

	c := NewProviderClient(5*time.Second, zap.NewNop())
	resp, err := c.Do(context.Background(), &provider.Request{
		Method: http.MethodPost,
		URL:    srv.URL + "/v1/generations",
		Headers: []provider.Header{
			{Name: "x-api-version", Value: "1"},
			{Name: "Authorization", Value: "Bearer k"},
		},
		Body: []byte(`{"prompt":"p"}`),
	})
	require.NoError(t, err, "non-2xx is not a transport error")

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.JSONEq(t, `{"error":"bad model"}`, string(resp.Body))
	assert.Equal(t, `{"prompt":"p"}`, gotBody)
	assert.Equal(t, "1", gotHeaders.Get("X-Api-Version"))
	assert.Equal(t, "Bearer k", gotHeaders.Get("Authorization"))
}

func TestProviderClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewProviderClient(time.Second, zap.NewNop())
	_, err := c.Do(context.Background(), &provider.Request{Method: http.MethodGet, URL: url + "/v1/tasks/x"})
	assert.Error(t, err)
}
