package openai

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
	"github.com/tracelens/playground/internal/testutil"
)

func floatPtr(f float64) *float64 { return &f }

func testInstance() *domain.PromptInstance {
	return &domain.PromptInstance{
		ID: 1,
		Model: domain.ModelConfig{
			Provider:  domain.ProviderOpenAI,
			ModelName: "gpt-4o",
			InvocationParameters: []params.Value{
				{InvocationName: "temperature", CanonicalName: params.Temperature, Float: floatPtr(0.5)},
			},
		},
		Template: domain.ChatTemplate{
			Messages: []domain.Message{
				{ID: 1, Role: domain.RoleUser, Content: "Say hello."},
			},
		},
	}
}

func TestBuildRequestBody(t *testing.T) {
	c := NewClient("test-key")
	inst := testInstance()
	inst.Template.Messages = append(inst.Template.Messages, domain.Message{
		ID:   2,
		Role: domain.RoleAI,
		ToolCalls: []domain.ToolCall{
			{Payload: json.RawMessage(`{"id":"call_1","function":{"name":"get_weather","arguments":"{}"}}`)},
		},
	})
	inst.Tools = []domain.Tool{
		{ID: 1, Definition: json.RawMessage(`{"type":"function","function":{"name":"get_weather","parameters":{}}}`)},
	}

	body := c.buildRequestBody(inst, false)

	if body["model"] != "gpt-4o" {
		t.Errorf("model = %v, want gpt-4o", body["model"])
	}
	if body["temperature"] != 0.5 {
		t.Errorf("temperature = %v, want 0.5", body["temperature"])
	}
	if _, ok := body["stream"]; ok {
		t.Error("stream should be absent for non-streaming requests")
	}

	messages, ok := body["messages"].([]map[string]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %v", body["messages"])
	}
	if messages[0]["role"] != "user" {
		t.Errorf("first role = %v, want user", messages[0]["role"])
	}
	if messages[1]["role"] != "assistant" {
		t.Errorf("second role = %v, want assistant", messages[1]["role"])
	}
	if _, ok := messages[1]["tool_calls"]; !ok {
		t.Error("assistant message dropped its tool calls")
	}

	tools, ok := body["tools"].([]json.RawMessage)
	if !ok || len(tools) != 1 {
		t.Errorf("tools = %v", body["tools"])
	}
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization = %q", auth)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["model"] != "gpt-4o" {
			t.Errorf("model = %v, want gpt-4o", body["model"])
		}

		fmt.Fprint(w, `{"id":"chatcmpl-1","choices":[{"index":0,"message":{"role":"assistant","content":"Hello!"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	result, err := c.Complete(context.Background(), testInstance())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if result.Message.Content != "Hello!" {
		t.Errorf("content = %q, want Hello!", result.Message.Content)
	}
	if result.Message.Role != domain.RoleAI {
		t.Errorf("role = %q, want ai", result.Message.Role)
	}
	if result.FinishReason != "stop" {
		t.Errorf("finish reason = %q, want stop", result.FinishReason)
	}
	if result.Usage.TotalTokens != 12 {
		t.Errorf("total tokens = %d, want 12", result.Usage.TotalTokens)
	}
}

func TestComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	c := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), testInstance())
	if err == nil {
		t.Fatal("Complete() expected error")
	}

	apiErr, ok := err.(*domain.APIError)
	if !ok {
		t.Fatalf("error type = %T, want *domain.APIError", err)
	}
	if apiErr.HTTPStatusCode() != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.HTTPStatusCode())
	}
	if !strings.Contains(apiErr.Message, "Incorrect API key") {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestComplete_VCR(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "chat_completion")
	defer cleanup()

	c := NewClient("test-key", WithHTTPClient(testutil.VCRHTTPClient(r)))
	result, err := c.Complete(context.Background(), testInstance())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if !strings.Contains(result.Message.Content, "Hello") {
		t.Errorf("content = %q, want greeting", result.Message.Content)
	}
	if result.Usage.PromptTokens != 10 {
		t.Errorf("prompt tokens = %d, want 10", result.Usage.PromptTokens)
	}
}

func TestStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["stream"] != true {
			t.Error("stream flag not set")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
			`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":"lo!"}}]}`,
			`{"id":"chatcmpl-1","choices":[],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`,
		}
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
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
	if usage == nil || usage.TotalTokens != 12 {
		t.Errorf("usage = %+v, want total 12", usage)
	}
}

func TestEndpoint_AzureAPIVersion(t *testing.T) {
	c := NewClient("test-key",
		WithBaseURL("https://example.openai.azure.com/openai/deployments/gpt-4o"),
		WithAPIVersion("2024-02-01"))

	got := c.endpoint()
	want := "https://example.openai.azure.com/openai/deployments/gpt-4o/chat/completions?api-version=2024-02-01"
	if got != want {
		t.Errorf("endpoint() = %q, want %q", got, want)
	}
}
