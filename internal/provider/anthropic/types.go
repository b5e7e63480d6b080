package anthropic

import "encoding/json"

// MessageRequest is the wire request for the Messages API. Invocation
// parameters merge in as top-level keys before encoding.
type MessageRequest map[string]any

// MessageResponse is the non-streaming Messages API response.
type MessageResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// ContentBlock is one block of response content. Text blocks carry Text;
// tool_use blocks carry Name and Input.
type ContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Usage reports token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// streamEvent is one SSE event from a streaming Messages call. The type
// field discriminates; only the fields for that type are populated.
type streamEvent struct {
	Type         string          `json:"type"`
	Index        int             `json:"index"`
	ContentBlock *ContentBlock   `json:"content_block,omitempty"`
	Delta        *streamDelta    `json:"delta,omitempty"`
	Message      *MessageResponse `json:"message,omitempty"`
	Usage        *Usage          `json:"usage,omitempty"`
}

type streamDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

type errorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
