package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/motionforge/api/internal/model"
	"github.com/motionforge/api/internal/service"
)

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (e *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{}, nil
}

type stubAdapters struct{}

func (stubAdapters) Has(adapterID string) bool { return adapterID == "runway-2024-11-06" }
func (stubAdapters) Primary() string { return "runway-2024-11-06" }

func newWatchApp(t *testing.T, enqueuer service.TaskEnqueuer) (*fiber.App, *service.WatchService) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	svc := service.NewWatchService(rdb, enqueuer, stubAdapters{}, 0)
	h := NewWatchHandler(svc, validator.New(), zap.NewNop())

	app := fiber.New()
	app.Post("/watch", h.Start)
	app.Get("/watch/:jobId", h.Status)
	return app, svc
}

func watchRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/watch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestWatchStart(t *testing.T) {
	enqueuer := &stubEnqueuer{}
	app, _ := newWatchApp(t, enqueuer)

	resp, err := app.Test(watchRequest(`{"jobId":"task-1"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	got := decode(t, resp)
	assert.Equal(t, "task-1", got["jobId"])
	assert.Equal(t, "runway-2024-11-06", got["adapterId"])
	assert.Equal(t, "watch:runway-2024-11-06:task-1", got["taskId"])
	require.Len(t, enqueuer.tasks, 1)
	assert.Equal(t, service.TaskTypeWatch, enqueuer.tasks[0].Type())
}

func TestWatchStart_Errors(t *testing.T) {
	app, _ := newWatchApp(t, &stubEnqueuer{})

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"malformed", `{`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing job", `{"adapterId":"runway-2024-11-06"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown adapter", `{"jobId":"x","adapterId":"nope"}`, http.StatusBadRequest, "UNKNOWN_ADAPTER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(watchRequest(tt.body), -1)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decode(t, resp)["code"])
		})
	}
}

func TestWatch_Disabled(t *testing.T) {
	app, _ := newWatchApp(t, nil)

	resp, err := app.Test(watchRequest(`{"jobId":"task-1"}`), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/watch/task-1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWatchStatus(t *testing.T) {
	app, svc := newWatchApp(t, &stubEnqueuer{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/watch/task-1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, svc.SaveRecord(context.Background(), &model.WatchRecord{
		JobID:     "task-1",
		AdapterID: "runway-2024-11-06",
		Status: &model.NormalizedStatus{
			State:    model.JobStateSucceeded,
			VideoURL: "https://cdn.test/v.mp4",
		},
		Polls: 3,
	}))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/watch/task-1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode(t, resp)
	assert.Equal(t, true, got["done"])
	watch := got["watch"].(map[string]interface{})
	assert.Equal(t, float64(3), watch["polls"])
	status := watch["status"].(map[string]interface{})
	assert.Equal(t, "SUCCEEDED", status["state"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/watch/task-1?adapterId=runway-2024-11-06", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/watch/task-1?adapterId=nope", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "UNKNOWN_ADAPTER", decode(t, resp)["code"])
}
