// Package domain holds the canonical playground types: editable prompt
// instances built from recorded spans, their chat templates, and the
// provider-adapted tool shapes they carry.
package domain

import (
	"encoding/json"

	"github.com/tracelens/playground/internal/params"
)

// ProviderKey identifies a model provider.
type ProviderKey string

const (
	ProviderOpenAI      ProviderKey = "openai"
	ProviderAzureOpenAI ProviderKey = "azure_openai"
	ProviderAnthropic   ProviderKey = "anthropic"
)

// KnownProvider reports whether key names a provider this service has
// first-class support for. Unknown keys are still carried best-effort:
// tool shapes pass through unadapted.
func KnownProvider(key ProviderKey) bool {
	switch key {
	case ProviderOpenAI, ProviderAzureOpenAI, ProviderAnthropic:
		return true
	}
	return false
}

// Role is the normalized chat role.
type Role string

const (
	RoleUser   Role = "user"
	RoleAI     Role = "ai"
	RoleSystem Role = "system"
	RoleTool   Role = "tool"
)

// Message is one editable chat message. IDs come from a per-transformation
// counter so the UI can address messages stably.
type Message struct {
	ID        int        `json:"id"`
	Role      Role       `json:"role"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a tool invocation carried by a message, stored in the owning
// provider's canonical wire shape. For unrecognized providers the source
// shape passes through untouched.
type ToolCall struct {
	Payload json.RawMessage `json:"payload"`
}

// Tool is an editable tool definition in the owning provider's schema.
type Tool struct {
	ID         int             `json:"id"`
	Definition json.RawMessage `json:"definition"`
}

// ChatTemplate is the editable message list plus any template variables
// recovered from the recorded prompt template.
type ChatTemplate struct {
	Messages  []Message      `json:"messages"`
	Variables map[string]any `json:"variables,omitempty"`
}

// ModelConfig captures which model to invoke and how.
type ModelConfig struct {
	Provider   ProviderKey `json:"provider"`
	ModelName  string      `json:"model_name"`
	BaseURL    string      `json:"base_url,omitempty"`
	Endpoint   string      `json:"endpoint,omitempty"`
	APIVersion string      `json:"api_version,omitempty"`

	InvocationParameters          []params.Value      `json:"invocation_parameters"`
	SupportedInvocationParameters []params.Definition `json:"supported_invocation_parameters,omitempty"`
}

// PromptInstance is the editable playground state seeded from a span.
// Output holds structured output messages when the span recorded them;
// OutputText holds the plain-string fallback from output.value. At most one
// of the two is populated.
type PromptInstance struct {
	ID         int          `json:"id"`
	Model      ModelConfig  `json:"model"`
	Template   ChatTemplate `json:"template"`
	Tools      []Tool       `json:"tools,omitempty"`
	Output     []Message    `json:"output,omitempty"`
	OutputText string       `json:"output_text,omitempty"`
}

// Usage is token usage reported by a provider after a replay.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionEvent is one streaming event from a replayed completion.
type CompletionEvent struct {
	ContentDelta string     // text fragment
	ToolCall     *ToolCall  // provider-canonical tool call, when the model invoked one
	Usage        *Usage     // final event often carries token counts
	Err          error      // in-stream errors
}

// CompletionResult is the final message of a replayed completion.
type CompletionResult struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Usage        Usage   `json:"usage"`
}
