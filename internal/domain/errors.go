package domain

import (
	"fmt"
	"net/http"
)

// ParsingErrorKind names one section of span attributes that failed to
// parse during span-to-instance transformation. Kinds are stable
// identifiers surfaced verbatim to the UI, not free text.
type ParsingErrorKind string

const (
	ParsingErrSpanAttributes          ParsingErrorKind = "SpanAttributesParsingError"
	ParsingErrInputMessages           ParsingErrorKind = "InputMessagesParsingError"
	ParsingErrOutputMessages          ParsingErrorKind = "OutputMessagesParsingError"
	ParsingErrOutputValue             ParsingErrorKind = "OutputValueParsingError"
	ParsingErrModelConfig             ParsingErrorKind = "ModelConfigParsingError"
	ParsingErrInvocationParameters    ParsingErrorKind = "ModelConfigWithInvocationParametersParsingError"
	ParsingErrResponseFormat          ParsingErrorKind = "ModelConfigWithResponseFormatParsingError"
	ParsingErrTools                   ParsingErrorKind = "ToolsParsingError"
	ParsingErrPromptTemplateVariables ParsingErrorKind = "PromptTemplateVariablesParsingError"
)

// ErrorType categorizes an API error at the service boundary.
type ErrorType string

const (
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeUpstream       ErrorType = "upstream"
	ErrorTypeServer         ErrorType = "server"
)

// APIError is the canonical error returned by HTTP handlers and provider
// clients. Parsing failures inside the transformer are not errors; they are
// ParsingErrorKind values carried in the transform result.
type APIError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Param   string    `json:"param,omitempty"`

	// StatusCode overrides the type's default HTTP status when non-zero.
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the HTTP status for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WithParam attaches the offending parameter name.
func (e *APIError) WithParam(param string) *APIError {
	e.Param = param
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Message: message}
}

// ErrNotFound creates a not found error.
func ErrNotFound(message string) *APIError {
	return &APIError{Type: ErrorTypeNotFound, Message: message}
}

// ErrUpstream creates an upstream provider error.
func ErrUpstream(message string) *APIError {
	return &APIError{Type: ErrorTypeUpstream, Message: message}
}

// ErrServer creates an internal server error.
func ErrServer(message string) *APIError {
	return &APIError{Type: ErrorTypeServer, Message: message}
}
