package spanview

// OpenInference semantic-convention attribute keys, recorded on spans as
// flat dotted names.
// Reference: https://github.com/Arize-ai/openinference/blob/main/spec/semantic_conventions.md
const (
	// LLMModelName specifies the model name (e.g. "gpt-4o").
	LLMModelName = "llm.model_name"

	// LLMInvocationParameters contains the invocation parameters as a JSON string.
	LLMInvocationParameters = "llm.invocation_parameters"

	// LLMInputMessages holds the ordered input message list.
	LLMInputMessages = "llm.input_messages"

	// LLMOutputMessages holds the ordered output message list.
	LLMOutputMessages = "llm.output_messages"

	// LLMTools holds the tool definitions offered to the model.
	LLMTools = "llm.tools"

	// LLMPromptTemplateVariables contains template variables as a JSON string.
	LLMPromptTemplateVariables = "llm.prompt_template.variables"

	// OutputValue contains the output data as a plain string.
	OutputValue = "output.value"

	// URLFull is the full request URL of the recorded invocation.
	URLFull = "url.full"

	// URLPath is the path portion of the recorded request URL.
	URLPath = "url.path"
)
