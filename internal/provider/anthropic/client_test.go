package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tracelens/playground/internal/domain"
	"github.com/tracelens/playground/internal/params"
)

func intPtr(n int) *int { return &n }

func testInstance() *domain.PromptInstance {
	return &domain.PromptInstance{
		ID: 1,
		Model: domain.ModelConfig{
			Provider:  domain.ProviderAnthropic,
			ModelName: "claude-3-5-sonnet-20241022",
			InvocationParameters: []params.Value{
				{InvocationName: "max_tokens", CanonicalName: params.MaxCompletionTokens, Int: intPtr(256)},
			},
		},
		Template: domain.ChatTemplate{
			Messages: []domain.Message{
				{ID: 1, Role: domain.RoleSystem, Content: "You are a helpful assistant."},
				{ID: 2, Role: domain.RoleUser, Content: "Say hello."},
			},
		},
	}
}

func TestBuildRequestBody(t *testing.T) {
	c := NewClient("test-key")
	body := c.buildRequestBody(testInstance(), false)

	if body["model"] != "claude-3-5-sonnet-20241022" {
		t.Errorf("model = %v", body["model"])
	}
	if body["max_tokens"] != 256 {
		t.Errorf("max_tokens = %v, want 256", body["max_tokens"])
	}
	if body["system"] != "You are a helpful assistant." {
		t.Errorf("system = %v", body["system"])
	}

	messages, ok := body["messages"].([]map[string]any)
	if !ok || len(messages) != 1 {
		t.Fatalf("messages = %v", body["messages"])
	}
	if messages[0]["role"] != "user" {
		t.Errorf("role = %v, want user", messages[0]["role"])
	}
}

func TestBuildRequestBody_DefaultMaxTokens(t *testing.T) {
	c := NewClient("test-key")
	inst := testInstance()
	inst.Model.InvocationParameters = nil

	body := c.buildRequestBody(inst, false)
	if body["max_tokens"] != defaultMaxTokens {
		t.Errorf("max_tokens = %v, want %d", body["max_tokens"], defaultMaxTokens)
	}
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		if key := r.Header.Get("x-api-key"); key != "test-key" {
			t.Errorf("x-api-key = %q", key)
		}
		if version := r.Header.Get("anthropic-version"); version == "" {
			t.Error("missing anthropic-version header")
		}

		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-sonnet-20241022","content":[{"type":"text","text":"Hello there!"}],"stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":4}}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	result, err := c.Complete(context.Background(), testInstance())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if result.Message.Content != "Hello there!" {
		t.Errorf("content = %q", result.Message.Content)
	}
	if result.FinishReason != "end_turn" {
		t.Errorf("finish reason = %q, want end_turn", result.FinishReason)
	}
	if result.Usage.TotalTokens != 16 {
		t.Errorf("total tokens = %d, want 16", result.Usage.TotalTokens)
	}
}

func TestComplete_ToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"Checking."},{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{"city":"Paris"}}],"stop_reason":"tool_use","usage":{"input_tokens":20,"output_tokens":15}}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	result, err := c.Complete(context.Background(), testInstance())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if len(result.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(result.Message.ToolCalls))
	}

	var call map[string]any
	if err := json.Unmarshal(result.Message.ToolCalls[0].Payload, &call); err != nil {
		t.Fatal(err)
	}
	if call["type"] != "tool_use" || call["name"] != "get_weather" {
		t.Errorf("tool call payload = %v", call)
	}
}

func TestComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens is required"}}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), testInstance())
	if err == nil {
		t.Fatal("Complete() expected error")
	}
	if !strings.Contains(err.Error(), "max_tokens is required") {
		t.Errorf("error = %v", err)
	}
}

func TestStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		events := []string{
			`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"usage":{"input_tokens":12,"output_tokens":0}}}`,
			`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo!"}}`,
			`{"type":"content_block_stop","index":0}`,
			`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":4}}`,
			`{"type":"message_stop"}`,
		}
		for _, event := range events {
			fmt.Fprintf(w, "data: %s\n\n", event)
		}
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	events, err := c.Stream(context.Background(), testInstance())
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var content strings.Builder
	var usage *domain.Usage
	for event := range events {
		if event.Err != nil {
			t.Fatalf("stream event error = %v", event.Err)
		}
		content.WriteString(event.ContentDelta)
		if event.Usage != nil {
			usage = event.Usage
		}
	}

	if content.String() != "Hello!" {
		t.Errorf("streamed content = %q, want Hello!", content.String())
	}
	if usage == nil || usage.CompletionTokens != 4 {
		t.Errorf("usage = %+v, want 4 completion tokens", usage)
	}
}

func TestStream_ToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		events := []string{
			`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_weather"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"\"Paris\"}"}}`,
			`{"type":"content_block_stop","index":0}`,
			`{"type":"message_stop"}`,
		}
		for _, event := range events {
			fmt.Fprintf(w, "data: %s\n\n", event)
		}
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	events, err := c.Stream(context.Background(), testInstance())
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var call *domain.ToolCall
	for event := range events {
		if event.Err != nil {
			t.Fatalf("stream event error = %v", event.Err)
		}
		if event.ToolCall != nil {
			call = event.ToolCall
		}
	}
	if call == nil {
		t.Fatal("no tool call emitted")
	}

	var payload struct {
		Type  string         `json:"type"`
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
	}
	if err := json.Unmarshal(call.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Type != "tool_use" || payload.Name != "get_weather" {
		t.Errorf("payload = %+v", payload)
	}
	if payload.Input["city"] != "Paris" {
		t.Errorf("input = %v, want city Paris", payload.Input)
	}
}
