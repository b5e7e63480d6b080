// Package catalog declares which invocation parameters each supported
// provider/model accepts. It is the in-process source of truth the UI's
// model-parameter query reads, and the filter the span transformer trusts
// when recovering parameters from recorded attributes.
package catalog

import (
	"encoding/json"
	"strings"

	"github.com/tracelens/playground/internal/domain"
	"github.com/tracelens/playground/internal/params"
)

func intPtr(n int) *int          { return &n }
func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

func openAIDefinitions() []params.Definition {
	return []params.Definition{
		{
			Kind:           params.KindBoundedFloat,
			InvocationName: "temperature",
			CanonicalName:  params.Temperature,
			Label:          "Temperature",
			BoundedFloat:   &params.BoundedFloatDefinition{Default: floatPtr(1), Min: 0, Max: 2},
		},
		{
			Kind:           params.KindBoundedFloat,
			InvocationName: "topP",
			CanonicalName:  params.TopP,
			Label:          "Top P",
			BoundedFloat:   &params.BoundedFloatDefinition{Default: floatPtr(1), Min: 0, Max: 1},
		},
		{
			Kind:           params.KindInt,
			InvocationName: "maxTokens",
			CanonicalName:  params.MaxCompletionTokens,
			Label:          "Max Tokens",
			Int:            &params.IntDefinition{Min: intPtr(1)},
		},
		{
			Kind:           params.KindStringList,
			InvocationName: "stop",
			CanonicalName:  params.StopSequences,
			Label:          "Stop Sequences",
			StringList:     &params.StringListDefinition{},
		},
		{
			Kind:           params.KindInt,
			InvocationName: "seed",
			CanonicalName:  params.RandomSeed,
			Label:          "Seed",
			Int:            &params.IntDefinition{},
		},
		{
			Kind:           params.KindJSON,
			InvocationName: "toolChoice",
			CanonicalName:  params.ToolChoice,
			Label:          "Tool Choice",
			JSON:           &params.JSONDefinition{},
		},
		{
			Kind:           params.KindJSON,
			InvocationName: "responseFormat",
			CanonicalName:  params.ResponseFormat,
			Label:          "Response Format",
			JSON:           &params.JSONDefinition{},
		},
	}
}

// reasoningDefinitions replace sampling knobs for OpenAI reasoning models,
// which reject temperature/top_p and use max_completion_tokens.
func reasoningDefinitions() []params.Definition {
	return []params.Definition{
		{
			Kind:           params.KindInt,
			InvocationName: "maxCompletionTokens",
			CanonicalName:  params.MaxCompletionTokens,
			Label:          "Max Completion Tokens",
			Int:            &params.IntDefinition{Min: intPtr(1)},
		},
		{
			Kind:           params.KindString,
			InvocationName: "reasoningEffort",
			CanonicalName:  params.ReasoningEffort,
			Label:          "Reasoning Effort",
			String:         &params.StringDefinition{Default: strPtr("medium")},
		},
		{
			Kind:           params.KindInt,
			InvocationName: "seed",
			CanonicalName:  params.RandomSeed,
			Label:          "Seed",
			Int:            &params.IntDefinition{},
		},
		{
			Kind:           params.KindJSON,
			InvocationName: "toolChoice",
			CanonicalName:  params.ToolChoice,
			Label:          "Tool Choice",
			JSON:           &params.JSONDefinition{},
		},
		{
			Kind:           params.KindJSON,
			InvocationName: "responseFormat",
			CanonicalName:  params.ResponseFormat,
			Label:          "Response Format",
			JSON:           &params.JSONDefinition{},
		},
	}
}

func anthropicDefinitions() []params.Definition {
	return []params.Definition{
		{
			Kind:           params.KindInt,
			InvocationName: "maxTokens",
			CanonicalName:  params.MaxCompletionTokens,
			Label:          "Max Tokens",
			Required:       true,
			Int:            &params.IntDefinition{Default: intPtr(1024), Min: intPtr(1)},
		},
		{
			Kind:           params.KindBoundedFloat,
			InvocationName: "temperature",
			CanonicalName:  params.Temperature,
			Label:          "Temperature",
			BoundedFloat:   &params.BoundedFloatDefinition{Default: floatPtr(1), Min: 0, Max: 1},
		},
		{
			Kind:           params.KindBoundedFloat,
			InvocationName: "topP",
			CanonicalName:  params.TopP,
			Label:          "Top P",
			BoundedFloat:   &params.BoundedFloatDefinition{Min: 0, Max: 1},
		},
		{
			Kind:           params.KindStringList,
			InvocationName: "stopSequences",
			CanonicalName:  params.StopSequences,
			Label:          "Stop Sequences",
			StringList:     &params.StringListDefinition{},
		},
		{
			Kind:           params.KindJSON,
			InvocationName: "toolChoice",
			CanonicalName:  params.ToolChoice,
			Label:          "Tool Choice",
			JSON:           &params.JSONDefinition{},
		},
		{
			Kind:           params.KindJSON,
			InvocationName: "thinking",
			CanonicalName:  params.ExtendedThinking,
			Label:          "Extended Thinking",
			JSON:           &params.JSONDefinition{Default: json.RawMessage(`{"type":"disabled"}`)},
		},
	}
}

// isReasoningModel reports whether an OpenAI model name belongs to the
// o-series reasoning family.
func isReasoningModel(model string) bool {
	m := strings.ToLower(model)
	for _, prefix := range []string{"o1", "o3", "o4"} {
		if m == prefix || strings.HasPrefix(m, prefix+"-") {
			return true
		}
	}
	return false
}

// Lookup returns the supported invocation-parameter definitions for a
// provider/model pair. Unknown providers yield an empty set: the
// transformer then keeps no parameters and the reconciler contributes no
// defaults, which is the degraded behavior we want.
func Lookup(provider domain.ProviderKey, model string) []params.Definition {
	switch provider {
	case domain.ProviderOpenAI, domain.ProviderAzureOpenAI:
		if isReasoningModel(model) {
			return reasoningDefinitions()
		}
		return openAIDefinitions()
	case domain.ProviderAnthropic:
		return anthropicDefinitions()
	default:
		return nil
	}
}
