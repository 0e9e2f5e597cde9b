package e2e

import (
	"net/http"
	"strings"
	"testing"
)

func TestStatus_RoutedToCreatingAdapter(t *testing.T) {
	ta := setupApp(t)
	ta.provider.onStatus("/v1/generations/gen-7", http.StatusOK, `{"id":"gen-7","status":"RUNNING","progress":50}`)

	resp, err := doRequest(ta.app, http.MethodPost, "/status", `{"jobId":"gen-7","adapterId":"gen-v1","action":"status"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)
	body := parseJSON(t, resp)
	if body["status"] != "RUNNING" {
		t.Errorf("expected status RUNNING, got %v", body["status"])
	}
	if body["progress"] != 0.5 {
		t.Errorf("expected progress 0.5, got %v", body["progress"])
	}
	for _, key := range []string{"videoUrl", "failure"} {
		v, ok := body[key]
		if !ok || v != nil {
			t.Errorf("expected %s to be present and null, got %v (present=%v)", key, v, ok)
		}
	}
}

func TestStatus_SucceededNestedOutput(t *testing.T) {
	ta := setupApp(t)
	ta.provider.onStatus("/v2/tasks/t-1", http.StatusOK,
		`{"id":"t-1","status":"SUCCEEDED","progress":100,"output":{"video_url":"https://cdn.test/out.mp4"}}`)

	resp, err := doRequest(ta.app, http.MethodPost, "/status", `{"jobId":"t-1","adapterId":"gen-v2-nested","action":"status"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)
	body := parseJSON(t, resp)
	if body["status"] != "SUCCEEDED" {
		t.Errorf("expected status SUCCEEDED, got %v", body["status"])
	}
	if body["videoUrl"] != "https://cdn.test/out.mp4" {
		t.Errorf("expected videoUrl from output.video_url, got %v", body["videoUrl"])
	}
	if body["progress"] != 1.0 {
		t.Errorf("expected progress 1, got %v", body["progress"])
	}
}

func TestStatus_LegacyTaskIDUsesPrimaryAdapter(t *testing.T) {
	ta := setupApp(t)
	ta.provider.onStatus("/v1/tasks/rw-task-42", http.StatusOK,
		`{"id":"rw-task-42","status":"SUCCEEDED","progress":1,"output":["https://cdn.test/a.mp4"]}`)

	resp, err := doRequest(ta.app, http.MethodPost, "/status", `{"taskId":"rw-task-42","action":"status"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)
	body := parseJSON(t, resp)
	if body["videoUrl"] != "https://cdn.test/a.mp4" {
		t.Errorf("expected videoUrl from output[0], got %v", body["videoUrl"])
	}
}

func TestStatus_ProviderReportedFailure(t *testing.T) {
	ta := setupApp(t)
	ta.provider.onStatus("/v1/tasks/rw-bad", http.StatusOK,
		`{"id":"rw-bad","status":"FAILED","failure":"Prompt rejected","failureCode":"SAFETY"}`)

	resp, err := doRequest(ta.app, http.MethodPost, "/status", `{"jobId":"rw-bad","adapterId":"runway-2024-11-06","action":"status"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)
	body := parseJSON(t, resp)
	if body["success"] != true {
		t.Errorf("provider FAILED is a normal status, got success=%v", body["success"])
	}
	if body["status"] != "FAILED" {
		t.Errorf("expected status FAILED, got %v", body["status"])
	}
	if msg, _ := body["failure"].(string); !strings.Contains(msg, "Prompt rejected") {
		t.Errorf("expected failure reason, got %v", body["failure"])
	}
}

func TestStatus_TerminalIsStable(t *testing.T) {
	ta := setupApp(t)
	ta.provider.onStatus("/v1/tasks/done", http.StatusOK,
		`{"id":"done","status":"SUCCEEDED","output":["https://cdn.test/d.mp4"]}`)

	var first string
	for i := 0; i < 3; i++ {
		resp, err := doRequest(ta.app, http.MethodPost, "/status", `{"jobId":"done","action":"status"}`, nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		body := readBody(t, resp)
		if i == 0 {
			first = body
		} else if body != first {
			t.Errorf("poll %d differs from first: %s vs %s", i, body, first)
		}
	}
}

func TestStatus_Errors(t *testing.T) {
	ta := setupApp(t)
	ta.provider.onStatus("/v1/tasks/garbled", http.StatusOK, `{"id":"garbled","status":"DANCING"}`)
	ta.provider.onStatus("/v1/tasks/gone", http.StatusNotFound, `{"error":"task not found"}`)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"malformed json", `{"jobId":`, http.StatusBadRequest},
		{"missing job id", `{"adapterId":"gen-v1","action":"status"}`, http.StatusBadRequest},
		{"wrong action", `{"jobId":"x","action":"generate"}`, http.StatusBadRequest},
		{"unknown adapter", `{"jobId":"x","adapterId":"veo-9","action":"status"}`, http.StatusBadRequest},
		{"unrecognized provider status", `{"jobId":"garbled","action":"status"}`, http.StatusInternalServerError},
		{"provider 404", `{"jobId":"gone","action":"status"}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := doRequest(ta.app, http.MethodPost, "/status", tt.body, nil)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			assertStatus(t, resp, tt.wantStatus)
			body := parseJSON(t, resp)
			assertFailureEnvelope(t, body)
			if msg, _ := body["error"].(string); strings.Contains(msg, "task not found") {
				t.Errorf("provider payload leaked into client error: %q", msg)
			}
		})
	}
}
