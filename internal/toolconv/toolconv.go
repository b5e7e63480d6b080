// Package toolconv adapts tool definitions and tool calls between the
// shapes recorded on spans and each provider's canonical wire schema.
//
// Adaptation is a strategy table keyed by provider. Unknown providers map
// through an explicit passthrough strategy: the source shape is preserved
// untouched rather than guessed at.
package toolconv

import (
	"encoding/json"

	"github.com/tracelens/playground/internal/domain"
)

// sourceToolCall is the recorded tool-call shape. Spans commonly carry the
// OpenInference convention { function: { name, arguments } }, sometimes
// wrapped in a { tool_call: ... } envelope.
type sourceToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type toolCallEnvelope struct {
	ToolCall json.RawMessage `json:"tool_call"`
}

// argumentsString renders recorded arguments as the JSON string OpenAI-style
// APIs expect. Arguments recorded as an object are re-serialized; arguments
// recorded as a JSON string are unwrapped.
func argumentsString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// argumentsObject renders recorded arguments as the object Anthropic-style
// APIs expect under "input".
func argumentsObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if json.Valid([]byte(s)) {
			return json.RawMessage(s)
		}
		return json.RawMessage(`{}`)
	}
	return raw
}

type toolCallStrategy func(src sourceToolCall) (json.RawMessage, error)

func openAIToolCall(src sourceToolCall) (json.RawMessage, error) {
	out := map[string]any{
		"function": map[string]any{
			"name":      src.Function.Name,
			"arguments": argumentsString(src.Function.Arguments),
		},
	}
	if src.ID != "" {
		out["id"] = src.ID
	}
	return json.Marshal(out)
}

func anthropicToolCall(src sourceToolCall) (json.RawMessage, error) {
	out := map[string]any{
		"type":  "tool_use",
		"name":  src.Function.Name,
		"input": argumentsObject(src.Function.Arguments),
	}
	if src.ID != "" {
		out["id"] = src.ID
	}
	return json.Marshal(out)
}

var toolCallStrategies = map[domain.ProviderKey]toolCallStrategy{
	domain.ProviderOpenAI:      openAIToolCall,
	domain.ProviderAzureOpenAI: openAIToolCall,
	domain.ProviderAnthropic:   anthropicToolCall,
}

// AdaptToolCall converts one recorded tool-call entry into the target
// provider's canonical shape. Nullish or empty entries return ok=false and
// should be dropped silently. Unknown providers pass the source through.
func AdaptToolCall(provider domain.ProviderKey, raw json.RawMessage) (json.RawMessage, bool) {
	if isNullish(raw) {
		return nil, false
	}

	// Unwrap the optional { tool_call: ... } envelope.
	var env toolCallEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.ToolCall) > 0 && !isNullish(env.ToolCall) {
		raw = env.ToolCall
	}

	strategy, ok := toolCallStrategies[provider]
	if !ok {
		return raw, true
	}

	var src sourceToolCall
	if err := json.Unmarshal(raw, &src); err != nil || src.Function.Name == "" {
		// Not the expected source shape; carry it through untouched.
		return raw, true
	}

	adapted, err := strategy(src)
	if err != nil {
		return raw, true
	}
	return adapted, true
}

// sourceTool is a provider-agnostic view of a recorded tool definition,
// decoded from either the OpenAI function wrapper or the Anthropic schema.
type sourceTool struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

func decodeSourceTool(raw json.RawMessage) (sourceTool, bool) {
	// OpenAI flavor: { type: "function", function: { name, description, parameters } }
	var openAI struct {
		Function *struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			Parameters  json.RawMessage `json:"parameters"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &openAI); err == nil && openAI.Function != nil && openAI.Function.Name != "" {
		return sourceTool{
			Name:        openAI.Function.Name,
			Description: openAI.Function.Description,
			Schema:      openAI.Function.Parameters,
		}, true
	}

	// Anthropic flavor: { name, description, input_schema }
	var anthropic struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"input_schema"`
	}
	if err := json.Unmarshal(raw, &anthropic); err == nil && anthropic.Name != "" {
		return sourceTool{
			Name:        anthropic.Name,
			Description: anthropic.Description,
			Schema:      anthropic.InputSchema,
		}, true
	}

	return sourceTool{}, false
}

func emptySchema(s json.RawMessage) json.RawMessage {
	if len(s) == 0 {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return s
}

type toolStrategy func(src sourceTool) (json.RawMessage, error)

func openAITool(src sourceTool) (json.RawMessage, error) {
	fn := map[string]any{
		"name":       src.Name,
		"parameters": emptySchema(src.Schema),
	}
	if src.Description != "" {
		fn["description"] = src.Description
	}
	return json.Marshal(map[string]any{"type": "function", "function": fn})
}

func anthropicTool(src sourceTool) (json.RawMessage, error) {
	out := map[string]any{
		"name":         src.Name,
		"input_schema": emptySchema(src.Schema),
	}
	if src.Description != "" {
		out["description"] = src.Description
	}
	return json.Marshal(out)
}

var toolStrategies = map[domain.ProviderKey]toolStrategy{
	domain.ProviderOpenAI:      openAITool,
	domain.ProviderAzureOpenAI: openAITool,
	domain.ProviderAnthropic:   anthropicTool,
}

// AdaptToolDefinition converts a recorded tool definition into the target
// provider's schema. Unknown providers and unrecognized source shapes pass
// through untouched.
func AdaptToolDefinition(provider domain.ProviderKey, raw json.RawMessage) (json.RawMessage, bool) {
	if isNullish(raw) {
		return nil, false
	}

	strategy, ok := toolStrategies[provider]
	if !ok {
		return raw, true
	}

	src, ok := decodeSourceTool(raw)
	if !ok {
		return raw, true
	}

	adapted, err := strategy(src)
	if err != nil {
		return raw, true
	}
	return adapted, true
}

func isNullish(raw json.RawMessage) bool {
	switch string(raw) {
	case "", "null", "{}":
		return true
	}
	return false
}
