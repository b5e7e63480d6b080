// Package anthropic replays prompt instances against the Anthropic
// Messages API.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tracelens/playground/internal/domain"
	"github.com/tracelens/playground/internal/params"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	defaultMaxTokens = 1024
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client is an HTTP client for the Anthropic Messages API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the provider key this client serves.
func (c *Client) Key() domain.ProviderKey {
	return domain.ProviderAnthropic
}

// buildRequestBody flattens the instance into the Messages API shape.
// System messages lift out into the top-level system field; the Messages
// API rejects them inline.
func (c *Client) buildRequestBody(inst *domain.PromptInstance, stream bool) MessageRequest {
	body := MessageRequest(params.ToWire(inst.Model.InvocationParameters))

	var system []string
	messages := make([]map[string]any, 0, len(inst.Template.Messages))
	for _, msg := range inst.Template.Messages {
		if msg.Role == domain.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		m := map[string]any{
			"role":    wireRole(msg.Role),
			"content": msg.Content,
		}
		if len(msg.ToolCalls) > 0 {
			blocks := make([]json.RawMessage, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				text, _ := json.Marshal(map[string]string{"type": "text", "text": msg.Content})
				blocks = append(blocks, text)
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, tc.Payload)
			}
			m["content"] = blocks
		}
		messages = append(messages, m)
	}

	body["model"] = inst.Model.ModelName
	body["messages"] = messages
	if len(system) > 0 {
		body["system"] = strings.Join(system, "\n\n")
	}
	if _, ok := body["max_tokens"]; !ok {
		body["max_tokens"] = defaultMaxTokens
	}
	if stream {
		body["stream"] = true
	}

	if len(inst.Tools) > 0 {
		tools := make([]json.RawMessage, 0, len(inst.Tools))
		for _, tool := range inst.Tools {
			tools = append(tools, tool.Definition)
		}
		body["tools"] = tools
	}

	return body
}

func wireRole(role domain.Role) string {
	if role == domain.RoleAI {
		return "assistant"
	}
	return "user"
}

// Complete runs the instance and returns the final assistant message.
func (c *Client) Complete(ctx context.Context, inst *domain.PromptInstance) (*domain.CompletionResult, error) {
	respBody, err := c.post(ctx, c.buildRequestBody(inst, false))
	if err != nil {
		return nil, err
	}

	var result MessageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	msg := domain.Message{Role: domain.RoleAI}
	var text strings.Builder
	for _, block := range result.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			payload, err := json.Marshal(block)
			if err != nil {
				continue
			}
			msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{Payload: payload})
		}
	}
	msg.Content = text.String()

	return &domain.CompletionResult{
		Message:      msg,
		FinishReason: result.StopReason,
		Usage: domain.Usage{
			PromptTokens:     result.Usage.InputTokens,
			CompletionTokens: result.Usage.OutputTokens,
			TotalTokens:      result.Usage.InputTokens + result.Usage.OutputTokens,
		},
	}, nil
}

// Stream runs the instance and emits content deltas as SSE events arrive.
func (c *Client) Stream(ctx context.Context, inst *domain.PromptInstance) (<-chan domain.CompletionEvent, error) {
	body, err := json.Marshal(c.buildRequestBody(inst, true))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	out := make(chan domain.CompletionEvent)
	go c.streamReader(resp.Body, out)
	return out, nil
}

func (c *Client) streamReader(body io.ReadCloser, out chan<- domain.CompletionEvent) {
	defer close(out)
	defer body.Close()

	// tool_use blocks arrive as an opening content_block_start plus
	// input_json_delta fragments; buffer until the block closes.
	var pendingTool *ContentBlock
	var pendingInput strings.Builder

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			out <- domain.CompletionEvent{Err: fmt.Errorf("failed to unmarshal event: %w", err)}
			return
		}

		switch event.Type {
		case "content_block_start":
			if event.ContentBlock != nil && event.ContentBlock.Type == "tool_use" {
				block := *event.ContentBlock
				pendingTool = &block
				pendingInput.Reset()
			}
		case "content_block_delta":
			if event.Delta == nil {
				continue
			}
			switch event.Delta.Type {
			case "text_delta":
				out <- domain.CompletionEvent{ContentDelta: event.Delta.Text}
			case "input_json_delta":
				pendingInput.WriteString(event.Delta.PartialJSON)
			}
		case "content_block_stop":
			if pendingTool == nil {
				continue
			}
			if pendingInput.Len() > 0 {
				pendingTool.Input = json.RawMessage(pendingInput.String())
			}
			if payload, err := json.Marshal(pendingTool); err == nil {
				out <- domain.CompletionEvent{ToolCall: &domain.ToolCall{Payload: payload}}
			}
			pendingTool = nil
		case "message_delta":
			if event.Usage != nil {
				out <- domain.CompletionEvent{Usage: &domain.Usage{
					CompletionTokens: event.Usage.OutputTokens,
					TotalTokens:      event.Usage.InputTokens + event.Usage.OutputTokens,
					PromptTokens:     event.Usage.InputTokens,
				}}
			}
		case "message_stop":
			return
		case "error":
			out <- domain.CompletionEvent{Err: fmt.Errorf("stream error event: %s", data)}
			return
		}
	}

	if err := scanner.Err(); err != nil {
		out <- domain.CompletionEvent{Err: fmt.Errorf("stream read error: %w", err)}
	}
}

func (c *Client) post(ctx context.Context, reqBody MessageRequest) ([]byte, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func (c *Client) do(ctx context.Context, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func parseAPIError(status int, body []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return domain.ErrUpstream(apiErr.Error.Message).WithStatusCode(status)
	}
	return domain.ErrUpstream(fmt.Sprintf("API error (status %d): %s", status, string(body))).WithStatusCode(status)
}
