// Package openai replays prompt instances against OpenAI-compatible chat
// completion APIs, including Azure OpenAI deployments.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tracelens/playground/internal/domain"
	"github.com/tracelens/playground/internal/params"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	userAgent      = "tracelens-playground/1.0"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (e.g. an Azure deployment).
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

// WithAPIVersion appends an api-version query parameter to every request,
// as Azure OpenAI deployments require.
func WithAPIVersion(version string) ClientOption {
	return func(c *Client) {
		c.apiVersion = version
	}
}

// WithProviderKey overrides the provider key this client registers under.
// Used to mount the same client as azure_openai.
func WithProviderKey(key domain.ProviderKey) ClientOption {
	return func(c *Client) {
		c.key = key
	}
}

// Client is an HTTP client for OpenAI-compatible chat completion APIs.
type Client struct {
	key        domain.ProviderKey
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

// NewClient creates a new client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		key:        domain.ProviderOpenAI,
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
	return c.key
}

// buildRequestBody flattens the instance into the wire request. Reconciled
// invocation parameters merge in under their snake_case names; the instance
// fields take precedence over any colliding parameter key.
func (c *Client) buildRequestBody(inst *domain.PromptInstance, stream bool) map[string]any {
	body := params.ToWire(inst.Model.InvocationParameters)

	messages := make([]map[string]any, 0, len(inst.Template.Messages))
	for _, msg := range inst.Template.Messages {
		m := map[string]any{"role": wireRole(msg.Role)}
		if msg.Content != "" || len(msg.ToolCalls) == 0 {
			m["content"] = msg.Content
		}
		if len(msg.ToolCalls) > 0 {
			calls := make([]json.RawMessage, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				calls = append(calls, tc.Payload)
			}
			m["tool_calls"] = calls
		}
		messages = append(messages, m)
	}

	body["model"] = inst.Model.ModelName
	body["messages"] = messages
	if stream {
		body["stream"] = true
		body["stream_options"] = map[string]any{"include_usage": true}
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
	switch role {
	case domain.RoleAI:
		return "assistant"
	case domain.RoleSystem:
		return "system"
	case domain.RoleTool:
		return "tool"
	default:
		return "user"
	}
}

func (c *Client) endpoint() string {
	u := c.baseURL + "/chat/completions"
	if c.apiVersion != "" {
		u += "?api-version=" + url.QueryEscape(c.apiVersion)
	}
	return u
}

// Complete runs the instance and returns the final assistant message.
func (c *Client) Complete(ctx context.Context, inst *domain.PromptInstance) (*domain.CompletionResult, error) {
	respBody, err := c.post(ctx, c.buildRequestBody(inst, false))
	if err != nil {
		return nil, err
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, domain.ErrUpstream("completion returned no choices")
	}

	choice := result.Choices[0]
	msg := domain.Message{
		Role:    domain.NormalizeRole(choice.Message.Role),
		Content: choice.Message.Content,
	}
	for _, raw := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{Payload: raw})
	}

	return &domain.CompletionResult{
		Message:      msg,
		FinishReason: choice.FinishReason,
		Usage: domain.Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
	}, nil
}

// Stream runs the instance and emits content deltas until the upstream
// stream ends.
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

	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			out <- domain.CompletionEvent{Err: fmt.Errorf("failed to unmarshal chunk: %w", err)}
			return
		}

		event := domain.CompletionEvent{}
		if len(chunk.Choices) > 0 {
			event.ContentDelta = chunk.Choices[0].Delta.Content
			for _, raw := range chunk.Choices[0].Delta.ToolCalls {
				event.ToolCall = &domain.ToolCall{Payload: raw}
			}
		}
		if chunk.Usage != nil {
			event.Usage = &domain.Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		out <- event
	}

	if err := scanner.Err(); err != nil {
		out <- domain.CompletionEvent{Err: fmt.Errorf("stream read error: %w", err)}
	}
}

func (c *Client) post(ctx context.Context, reqBody map[string]any) ([]byte, error) {
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
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("User-Agent", userAgent)
	if c.apiVersion != "" {
		// Azure deployments accept the key in the api-key header as well.
		httpReq.Header.Set("api-key", c.apiKey)
	}

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
