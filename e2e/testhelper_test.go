package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/motionforge/api/internal/client"
	"github.com/motionforge/api/internal/handler"
	"github.com/motionforge/api/internal/metrics"
	"github.com/motionforge/api/internal/middleware"
	"github.com/motionforge/api/internal/poller"
	"github.com/motionforge/api/internal/provider"
	"github.com/motionforge/api/internal/service"
	ws "github.com/motionforge/api/internal/websocket"
	"github.com/motionforge/api/internal/worker"
)

const (
	testAPIKey        = "test-provider-key"
	testAssetsBaseURL = "https://assets.test"
	testMaxImageBytes = 1 << 20
)

// fakeResponse is a canned provider answer
type fakeResponse struct {
	status int
	body   string
}

// providerCall is one request received by the fake provider
type providerCall struct {
	method string
	path   string
	auth   string
	body   map[string]interface{}
}

// fakeProvider serves every adapter contract from one httptest server,
// answering by request path
type fakeProvider struct {
	srv *httptest.Server

	mu     sync.Mutex
	submit map[string]fakeResponse
	status map[string]fakeResponse
	calls  []providerCall
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	fp := &fakeProvider{
		submit: make(map[string]fakeResponse),
		status: make(map[string]fakeResponse),
	}
	fp.srv = httptest.NewServer(http.HandlerFunc(fp.serve))
	t.Cleanup(fp.srv.Close)
	return fp
}

func (fp *fakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	call := providerCall{
		method: r.Method,
		path:   r.URL.Path,
		auth:   r.Header.Get("Authorization"),
	}
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&call.body)
	}

	fp.mu.Lock()
	fp.calls = append(fp.calls, call)
	routes := fp.status
	if r.Method == http.MethodPost {
		routes = fp.submit
	}
	resp, ok := routes[r.URL.Path]
	fp.mu.Unlock()

	if !ok {
		resp = fakeResponse{status: http.StatusNotFound, body: `{"error":"not found"}`}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

func (fp *fakeProvider) onSubmit(path string, status int, body string) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.submit[path] = fakeResponse{status: status, body: body}
}

func (fp *fakeProvider) onStatus(path string, status int, body string) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.status[path] = fakeResponse{status: status, body: body}
}

func (fp *fakeProvider) submitCalls() []providerCall {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	var out []providerCall
	for _, c := range fp.calls {
		if c.method == http.MethodPost {
			out = append(out, c)
		}
	}
	return out
}

// storedObject is one asset written through recordingStore
type storedObject struct {
	key         string
	contentType string
	size        int
}

// recordingStore is an in-memory asset store that records every call
type recordingStore struct {
	mu      sync.Mutex
	puts    []storedObject
	deletes []string
	failPut bool
}

func (s *recordingStore) Upload(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return "", fmt.Errorf("bucket unavailable")
	}
	s.puts = append(s.puts, storedObject{key: key, contentType: contentType, size: len(data)})
	return s.GetPublicURL(key), nil
}

func (s *recordingStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	return nil
}

func (s *recordingStore) GetPublicURL(key string) string {
	return testAssetsBaseURL + "/" + key
}

func (s *recordingStore) snapshot() ([]storedObject, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storedObject(nil), s.puts...), append([]string(nil), s.deletes...)
}

// recordingEnqueuer stands in for the asynq client
type recordingEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (e *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	provider *fakeProvider
	store    *recordingStore
	enqueuer *recordingEnqueuer
	worker   *worker.WatchWorker
	hub      *ws.Hub
}

// setupApp creates a Fiber app wired like main.go, with the provider
// replaced by an httptest server and Redis by miniredis.
func setupApp(t *testing.T) *testApp {
	t.Helper()
	return setupAppWithBodyLimit(t, 2*testMaxImageBytes)
}

func setupAppWithBodyLimit(t *testing.T, bodyLimit int) *testApp {
	t.Helper()

	logger := zap.NewNop()
	fp := newFakeProvider(t)
	store := &recordingStore{}
	enqueuer := &recordingEnqueuer{}

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	validate := validator.New()
	collector := metrics.NewCollector("motionforge", logger)

	// Same resolution as main.go with provider.base_url pointed at the fake
	var adapters []provider.Adapter
	for _, a := range provider.DefaultAdapters() {
		adapters = append(adapters, a.WithBaseURL(fp.srv.URL).WithCredential(testAPIKey))
	}
	registry, err := provider.NewRegistry(adapters, client.NewProviderClient(5*time.Second, logger),
		provider.WithLogger(logger),
		provider.WithRecorder(collector),
	)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	// Services
	assetService := service.NewAssetService(store, logger)
	generationService := service.NewGenerationService(assetService, registry, testMaxImageBytes, collector, logger)
	watchService := service.NewWatchService(redisClient, enqueuer, registry, time.Second)

	// Handlers
	generateHandler := handler.NewGenerateHandler(generationService, registry, validate, logger)
	watchHandler := handler.NewWatchHandler(watchService, validate, logger)

	watchWorker := worker.NewWatchWorker(generationService, watchService, hub, poller.Poller{
		Interval: 10 * time.Millisecond,
		Timeout:  time.Second,
	}, logger)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          handler.ErrorHandler(logger, "*"),
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.CORS("*"))

	// Base routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"storage":  "memory",
				"adapters": registry.IDs(),
				"watcher":  watchService.Enabled(),
				"redis":    watchService.Ping(c.Context()) == nil,
			},
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{})))
	app.Get("/adapters", generateHandler.Adapters)

	app.Post("/generate", generateHandler.Generate)
	app.Post("/status", generateHandler.Status)
	app.All("/generate", handler.MethodNotAllowed)
	app.All("/status", handler.MethodNotAllowed)

	app.Post("/watch", watchHandler.Start)
	app.Get("/watch/:jobId", watchHandler.Status)
	app.All("/watch", handler.MethodNotAllowed)

	return &testApp{
		app:      app,
		provider: fp,
		store:    store,
		enqueuer: enqueuer,
		worker:   watchWorker,
		hub:      hub,
	}
}

// serve runs the app on a real listener and returns its base URL. Requests
// rejected by the server before routing only go through this path.
func serve(t *testing.T, app *fiber.App) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

// jpegImage returns n bytes starting with a JPEG signature
func jpegImage(n int) []byte {
	data := bytes.Repeat([]byte{0x42}, n)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'})
	return data
}

// newGenerateRequest builds a multipart POST /generate request
func newGenerateRequest(t *testing.T, prompt string, image []byte, contentType string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if prompt != "" {
		_ = writer.WriteField("prompt", prompt)
	}
	if image != nil {
		partHeader := make(textproto.MIMEHeader)
		partHeader.Set("Content-Disposition", `form-data; name="image"; filename="cat.jpg"`)
		partHeader.Set("Content-Type", contentType)
		part, err := writer.CreatePart(partHeader)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		_, _ = part.Write(image)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, "/generate", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// assertFailureEnvelope checks {success:false, error:"..."}
func assertFailureEnvelope(t *testing.T, body map[string]interface{}) {
	t.Helper()
	if body["success"] != false {
		t.Errorf("expected success=false, got %v", body["success"])
	}
	if msg, ok := body["error"].(string); !ok || msg == "" {
		t.Errorf("expected non-empty error string, got %v", body["error"])
	}
}
