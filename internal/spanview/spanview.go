// Package spanview converts a recorded trace span's free-form attribute
// blob into a structured, editable prompt instance.
//
// Every section of the attributes parses independently: a failure in one
// degrades to a partial result and a named parsing-error kind instead of
// aborting the whole transformation. The single exception is the top-level
// JSON parse, which short-circuits to a fixed default instance.
package spanview

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tracelens/playground/internal/domain"
	"github.com/tracelens/playground/internal/params"
	"github.com/tracelens/playground/internal/toolconv"
)

// Span is the read-only input record. Attributes is a JSON-encoded blob of
// flat dotted attribute keys, with no guarantee of being well-formed.
type Span struct {
	Attributes string `json:"attributes"`
}

// Result pairs the seeded instance with the parsing failures encountered
// along the way.
type Result struct {
	Instance      domain.PromptInstance    `json:"instance"`
	ParsingErrors []domain.ParsingErrorKind `json:"parsing_errors"`
}

// Options configures a transformation.
type Options struct {
	// Supported filters which invocation-parameter keys are trusted. Keys
	// without a matching definition are dropped, not merely unmapped.
	Supported []params.Definition

	// DefaultProvider is used when the model name infers no provider.
	DefaultProvider domain.ProviderKey

	// DefaultModel seeds the instance when the span carries no model name.
	DefaultModel string

	// IDs supplies instance/message/tool ids. A fresh source is used when nil.
	IDs *IDSource
}

const (
	fallbackModel           = "gpt-4o"
	defaultSystemContent    = "You are a helpful assistant."
	defaultUserContent      = "{{question}}"
	responseFormatWireKey   = "response_format"
	azureAPIVersionQueryKey = "api-version"
)

func (o Options) withDefaults() Options {
	if o.DefaultProvider == "" {
		o.DefaultProvider = domain.ProviderOpenAI
	}
	if o.DefaultModel == "" {
		o.DefaultModel = fallbackModel
	}
	if o.IDs == nil {
		o.IDs = NewIDSource()
	}
	return o
}

// AttrPath escapes the dots in an attribute key so gjson reads it as a
// single flat key instead of a nested path.
func AttrPath(key string) string {
	return strings.ReplaceAll(key, ".", `\.`)
}

// InferProvider matches known model-name markers, falling back to the
// supplied default. Matching is case-insensitive.
func InferProvider(modelName string, fallback domain.ProviderKey) domain.ProviderKey {
	m := strings.ToLower(modelName)
	switch {
	case strings.Contains(m, "gpt"), strings.Contains(m, "o1"):
		return domain.ProviderOpenAI
	case strings.Contains(m, "claude"):
		return domain.ProviderAnthropic
	}
	return fallback
}

// DefaultTemplate is the canned two-message template used when a span
// yields no usable input messages.
func DefaultTemplate(ids *IDSource) domain.ChatTemplate {
	return domain.ChatTemplate{
		Messages: []domain.Message{
			{ID: ids.NextMessageID(), Role: domain.RoleSystem, Content: defaultSystemContent},
			{ID: ids.NextMessageID(), Role: domain.RoleUser, Content: defaultUserContent},
		},
	}
}

// Transform parses span attributes into an editable prompt instance. It
// never fails: every parsing problem maps to a ParsingErrorKind on the
// result and the instance degrades to defaults for the affected section.
func Transform(span Span, opts Options) Result {
	opts = opts.withDefaults()
	ids := opts.IDs

	if !gjson.Valid(span.Attributes) {
		return Result{
			Instance:      defaultInstance(opts, ids),
			ParsingErrors: []domain.ParsingErrorKind{domain.ParsingErrSpanAttributes},
		}
	}

	attrs := span.Attributes
	var errs []domain.ParsingErrorKind
	add := func(kind domain.ParsingErrorKind) {
		for _, k := range errs {
			if k == kind {
				return
			}
		}
		errs = append(errs, kind)
	}

	instance := domain.PromptInstance{ID: ids.NextInstanceID()}

	// Model name and provider. The provider always resolves, even when the
	// model name is missing.
	modelName := opts.DefaultModel
	provider := opts.DefaultProvider
	if res := gjson.Get(attrs, AttrPath(LLMModelName)); res.Type == gjson.String && res.Str != "" {
		modelName = res.Str
		provider = InferProvider(modelName, opts.DefaultProvider)
	} else {
		add(domain.ParsingErrModelConfig)
	}

	values, paramErrs := extractInvocationParameters(attrs, opts.Supported)
	for _, kind := range paramErrs {
		add(kind)
	}

	instance.Model = domain.ModelConfig{
		Provider:                      provider,
		ModelName:                     modelName,
		InvocationParameters:          values,
		SupportedInvocationParameters: opts.Supported,
	}
	applyRecordedURL(attrs, &instance.Model)

	// Input messages. A failed section falls back to the canned template.
	if msgs, ok := extractMessages(attrs, LLMInputMessages, provider, ids); ok {
		instance.Template = domain.ChatTemplate{Messages: msgs}
	} else {
		add(domain.ParsingErrInputMessages)
		instance.Template = DefaultTemplate(ids)
	}

	// Output messages, with output.value as the plain-string fallback.
	if msgs, ok := extractMessages(attrs, LLMOutputMessages, provider, ids); ok {
		instance.Output = msgs
	} else {
		add(domain.ParsingErrOutputMessages)
		if res := gjson.Get(attrs, AttrPath(OutputValue)); res.Exists() {
			instance.OutputText = domain.NormalizeMessageContent(res.Value())
		} else {
			add(domain.ParsingErrOutputValue)
		}
	}

	// Tools. Absent is not an error; present-but-malformed is.
	if tools, kind := extractTools(attrs, provider, ids); kind == "" {
		instance.Tools = tools
	} else {
		add(kind)
	}

	// Prompt template variables. Absent is not an error.
	if vars, kind := extractTemplateVariables(attrs); kind == "" {
		instance.Template.Variables = vars
	} else {
		add(kind)
	}

	return Result{Instance: instance, ParsingErrors: errs}
}

func defaultInstance(opts Options, ids *IDSource) domain.PromptInstance {
	return domain.PromptInstance{
		ID: ids.NextInstanceID(),
		Model: domain.ModelConfig{
			Provider:                      opts.DefaultProvider,
			ModelName:                     opts.DefaultModel,
			SupportedInvocationParameters: opts.Supported,
		},
		Template: DefaultTemplate(ids),
	}
}

// extractInvocationParameters recovers typed parameter values from the
// JSON-string-within-JSON blob. Keys are camelized and filtered against the
// supported definitions; unmatched keys are dropped silently. The
// response_format key is validated independently so a malformed value never
// blocks the remaining parameters.
func extractInvocationParameters(attrs string, supported []params.Definition) ([]params.Value, []domain.ParsingErrorKind) {
	res := gjson.Get(attrs, AttrPath(LLMInvocationParameters))
	if res.Type != gjson.String {
		return nil, []domain.ParsingErrorKind{domain.ParsingErrInvocationParameters, domain.ParsingErrResponseFormat}
	}

	var blob map[string]any
	if err := json.Unmarshal([]byte(res.Str), &blob); err != nil {
		return nil, []domain.ParsingErrorKind{domain.ParsingErrInvocationParameters, domain.ParsingErrResponseFormat}
	}

	var errs []domain.ParsingErrorKind

	if rf, present := blob[responseFormatWireKey]; present {
		if _, isObject := rf.(map[string]any); !isObject {
			errs = append(errs, domain.ParsingErrResponseFormat)
			delete(blob, responseFormatWireKey)
		}
	}

	camelized := make(map[string]any, len(blob))
	for key, value := range blob {
		camelized[params.SnakeToCamel(key)] = value
	}

	var values []params.Value
	badValue := false
	for _, def := range supported {
		raw, present := camelized[def.InvocationName]
		if !present {
			continue
		}
		v, err := params.Coerce(def, raw)
		if err != nil {
			badValue = true
			continue
		}
		values = append(values, v)
	}
	if badValue {
		errs = append(errs, domain.ParsingErrInvocationParameters)
	}

	return values, errs
}

// spanMessage mirrors the recorded { message: { ... } } entry shape.
type spanMessage struct {
	Message struct {
		Role     string `json:"role"`
		Content  any    `json:"content"`
		Contents []struct {
			MessageContent struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"message_content"`
		} `json:"contents"`
		Name      string            `json:"name"`
		ToolCalls []json.RawMessage `json:"tool_calls"`
	} `json:"message"`
}

// extractMessages decodes an ordered message list. When content is absent
// but multi-part contents are present, only the first text part is kept:
// images and later text parts are dropped. That is the documented shape of
// the seeded template, not a parsing failure.
func extractMessages(attrs, path string, provider domain.ProviderKey, ids *IDSource) ([]domain.Message, bool) {
	res := gjson.Get(attrs, AttrPath(path))
	if !res.Exists() || !res.IsArray() {
		return nil, false
	}

	var wrapped []spanMessage
	if err := json.Unmarshal([]byte(res.Raw), &wrapped); err != nil {
		return nil, false
	}

	messages := make([]domain.Message, 0, len(wrapped))
	for _, w := range wrapped {
		msg := domain.Message{
			ID:   ids.NextMessageID(),
			Role: domain.NormalizeRole(w.Message.Role),
		}

		switch {
		case w.Message.Content != nil:
			msg.Content = domain.NormalizeMessageContent(w.Message.Content)
		case len(w.Message.Contents) > 0:
			for _, part := range w.Message.Contents {
				if part.MessageContent.Type == "text" {
					msg.Content = part.MessageContent.Text
					break
				}
			}
		}

		for _, raw := range w.Message.ToolCalls {
			if adapted, ok := toolconv.AdaptToolCall(provider, raw); ok {
				msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{Payload: adapted})
			}
		}

		messages = append(messages, msg)
	}

	return messages, true
}

// spanTool mirrors the recorded { tool: { json_schema } } entry shape. The
// schema arrives either as a JSON string or, from some instrumentations,
// already as an object.
type spanTool struct {
	Tool struct {
		JSONSchema json.RawMessage `json:"json_schema"`
	} `json:"tool"`
}

func extractTools(attrs string, provider domain.ProviderKey, ids *IDSource) ([]domain.Tool, domain.ParsingErrorKind) {
	res := gjson.Get(attrs, AttrPath(LLMTools))
	if !res.Exists() {
		return nil, ""
	}
	if !res.IsArray() {
		return nil, domain.ParsingErrTools
	}

	var wrapped []spanTool
	if err := json.Unmarshal([]byte(res.Raw), &wrapped); err != nil {
		return nil, domain.ParsingErrTools
	}

	var tools []domain.Tool
	for _, w := range wrapped {
		schema := w.Tool.JSONSchema
		if len(schema) == 0 {
			return nil, domain.ParsingErrTools
		}

		var encoded string
		if err := json.Unmarshal(schema, &encoded); err == nil {
			if !json.Valid([]byte(encoded)) {
				return nil, domain.ParsingErrTools
			}
			schema = json.RawMessage(encoded)
		}

		adapted, ok := toolconv.AdaptToolDefinition(provider, schema)
		if !ok {
			continue
		}
		tools = append(tools, domain.Tool{ID: ids.NextToolID(), Definition: adapted})
	}

	return tools, ""
}

func extractTemplateVariables(attrs string) (map[string]any, domain.ParsingErrorKind) {
	res := gjson.Get(attrs, AttrPath(LLMPromptTemplateVariables))
	if !res.Exists() {
		return nil, ""
	}
	if res.Type != gjson.String {
		return nil, domain.ParsingErrPromptTemplateVariables
	}

	var vars map[string]any
	if err := json.Unmarshal([]byte(res.Str), &vars); err != nil {
		return nil, domain.ParsingErrPromptTemplateVariables
	}
	return vars, ""
}

// applyRecordedURL derives the endpoint, base URL, and API version from the
// recorded request URL. The endpoint is the URL origin; the base URL is the
// full URL minus the trailing segment matching url.path; the API version is
// the api-version query parameter when present (Azure deployments).
func applyRecordedURL(attrs string, model *domain.ModelConfig) {
	full := gjson.Get(attrs, AttrPath(URLFull))
	if full.Type != gjson.String || full.Str == "" {
		return
	}

	u, err := url.Parse(full.Str)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return
	}

	model.Endpoint = u.Scheme + "://" + u.Host
	model.APIVersion = u.Query().Get(azureAPIVersionQueryKey)

	base := full.Str
	if path := gjson.Get(attrs, AttrPath(URLPath)); path.Type == gjson.String && path.Str != "" {
		if i := strings.IndexByte(base, '?'); i >= 0 {
			base = base[:i]
		}
		base = strings.TrimSuffix(base, path.Str)
		base = strings.TrimSuffix(base, "/")
	}
	model.BaseURL = base
}
