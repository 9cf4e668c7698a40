package assistants

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/vinayprograms/researchdesk/internal/agentchat"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
	Query  string
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Client) {
	t.Helper()
	api := &fakeAPI{routes: make(map[string]string)}
	srv := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(srv.Close)
	return api, New(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1/"})
}

func (f *fakeAPI) route(method, suffix, body string) {
	f.routes[method+" "+suffix] = body
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	req := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &req.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v1")
	body, ok := f.routes[r.Method+" "+path]
	if !ok {
		http.Error(w, `{"error":{"message":"not found"}}`, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func (f *fakeAPI) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func TestCreateThread(t *testing.T) {
	api, client := newFakeAPI(t)
	api.route("POST", "/threads", `{"id":"thread_1","object":"thread","created_at":1}`)

	id, err := client.CreateThread(context.Background())
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	if id != "thread_1" {
		t.Errorf("thread id = %q, want thread_1", id)
	}
}

func TestAddMessage(t *testing.T) {
	api, client := newFakeAPI(t)
	api.route("POST", "/threads/thread_1/messages", `{"id":"msg_1","object":"thread.message","role":"user","content":[]}`)

	if err := client.AddMessage(context.Background(), "thread_1", "find competitors"); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	req := api.last()
	if req.Body["role"] != "user" {
		t.Errorf("role = %v, want user", req.Body["role"])
	}
	if req.Body["content"] != "find competitors" {
		t.Errorf("content = %v", req.Body["content"])
	}
}

func TestCreateRunRequiresAction(t *testing.T) {
	api, client := newFakeAPI(t)
	api.route("POST", "/threads/thread_1/runs", `{
		"id": "run_1",
		"object": "thread.run",
		"status": "requires_action",
		"required_action": {
			"type": "submit_tool_outputs",
			"submit_tool_outputs": {
				"tool_calls": [
					{"id": "call_1", "type": "function", "function": {"name": "google_search", "arguments": "{\"search_keyword\":\"ai\"}"}}
				]
			}
		}
	}`)

	run, err := client.CreateRun(context.Background(), "thread_1", "asst_1")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.ID != "run_1" || run.Status != agentchat.RunRequiresAction {
		t.Errorf("run = %+v", run)
	}
	if len(run.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(run.ToolCalls))
	}
	tc := run.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "google_search" || tc.Arguments != `{"search_keyword":"ai"}` {
		t.Errorf("tool call = %+v", tc)
	}
	if api.last().Body["assistant_id"] != "asst_1" {
		t.Errorf("assistant_id = %v", api.last().Body["assistant_id"])
	}
}

func TestGetRunFailed(t *testing.T) {
	api, client := newFakeAPI(t)
	api.route("GET", "/threads/thread_1/runs/run_1", `{
		"id": "run_1",
		"status": "failed",
		"last_error": {"code": "rate_limit_exceeded", "message": "slow down"}
	}`)

	run, err := client.GetRun(context.Background(), "thread_1", "run_1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != agentchat.RunFailed {
		t.Errorf("status = %s, want failed", run.Status)
	}
	if run.LastError != "rate_limit_exceeded: slow down" {
		t.Errorf("last error = %q", run.LastError)
	}
}

func TestSubmitToolOutputs(t *testing.T) {
	api, client := newFakeAPI(t)
	api.route("POST", "/threads/thread_1/runs/run_1/submit_tool_outputs", `{"id":"run_1","status":"queued"}`)

	run, err := client.SubmitToolOutputs(context.Background(), "thread_1", "run_1", []agentchat.ToolOutput{
		{CallID: "call_1", Output: "result"},
	})
	if err != nil {
		t.Fatalf("SubmitToolOutputs: %v", err)
	}
	if run.Status != agentchat.RunQueued {
		t.Errorf("status = %s, want queued", run.Status)
	}
	outputs, ok := api.last().Body["tool_outputs"].([]any)
	if !ok || len(outputs) != 1 {
		t.Fatalf("tool_outputs = %v", api.last().Body["tool_outputs"])
	}
	out := outputs[0].(map[string]any)
	if out["tool_call_id"] != "call_1" || out["output"] != "result" {
		t.Errorf("output = %v", out)
	}
}

func TestCancelRun(t *testing.T) {
	api, client := newFakeAPI(t)
	api.route("POST", "/threads/thread_1/runs/run_1/cancel", `{"id":"run_1","status":"cancelling"}`)

	if err := client.CancelRun(context.Background(), "thread_1", "run_1"); err != nil {
		t.Fatalf("CancelRun: %v", err)
	}
}

func TestRunMessagesKeepsAssistantText(t *testing.T) {
	api, client := newFakeAPI(t)
	api.route("GET", "/threads/thread_1/messages", `{
		"object": "list",
		"data": [
			{"id": "m1", "role": "assistant", "content": [{"type": "text", "text": {"value": "first", "annotations": []}}]},
			{"id": "m2", "role": "user", "content": [{"type": "text", "text": {"value": "ignored", "annotations": []}}]},
			{"id": "m3", "role": "assistant", "content": [
				{"type": "image_file", "image_file": {"file_id": "f"}},
				{"type": "text", "text": {"value": "second", "annotations": []}}
			]}
		],
		"has_more": false
	}`)

	texts, err := client.RunMessages(context.Background(), "thread_1", "run_1")
	if err != nil {
		t.Fatalf("RunMessages: %v", err)
	}
	if len(texts) != 2 || texts[0] != "first" || texts[1] != "second" {
		t.Errorf("texts = %v, want [first second]", texts)
	}
	query := api.last().Query
	if !strings.Contains(query, "run_id=run_1") || !strings.Contains(query, "order=asc") {
		t.Errorf("query = %q", query)
	}
}

func TestErrorsAreWrapped(t *testing.T) {
	_, client := newFakeAPI(t)

	_, err := client.GetRun(context.Background(), "thread_x", "run_x")
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
	if !strings.Contains(err.Error(), "get run run_x") {
		t.Errorf("error = %v", err)
	}
}
