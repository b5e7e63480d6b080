// Package params models model invocation parameters: the server-declared
// definitions a provider/model accepts, and the values a user has configured.
//
// Definitions form a tagged union over value kinds. Each definition carries
// exactly one kind-specific payload with its own typed bounds and default.
package params

import "encoding/json"

// Kind discriminates the definition variants.
type Kind string

const (
	KindInt          Kind = "int"
	KindFloat        Kind = "float"
	KindBoundedFloat Kind = "bounded_float"
	KindString       Kind = "string"
	KindStringList   Kind = "string_list"
	KindBool         Kind = "bool"
	KindJSON         Kind = "json"
)

// CanonicalName is a provider-independent identifier for a parameter.
// Two parameters with the same canonical name denote the same knob even when
// their wire names differ across providers (e.g. "stop" vs "stop_sequences").
type CanonicalName string

const (
	Temperature         CanonicalName = "TEMPERATURE"
	TopP                CanonicalName = "TOP_P"
	MaxCompletionTokens CanonicalName = "MAX_COMPLETION_TOKENS"
	StopSequences       CanonicalName = "STOP_SEQUENCES"
	RandomSeed          CanonicalName = "RANDOM_SEED"
	ToolChoice          CanonicalName = "TOOL_CHOICE"
	ResponseFormat      CanonicalName = "RESPONSE_FORMAT"
	ReasoningEffort     CanonicalName = "REASONING_EFFORT"
	ExtendedThinking    CanonicalName = "ANTHROPIC_EXTENDED_THINKING"
)

// Definition describes one invocation parameter a provider/model accepts.
// Exactly one of the kind payloads is non-nil, matching Kind.
type Definition struct {
	Kind           Kind          `json:"kind"`
	InvocationName string        `json:"invocation_name"`
	CanonicalName  CanonicalName `json:"canonical_name,omitempty"`
	Label          string        `json:"label,omitempty"`
	Required       bool          `json:"required"`

	Int          *IntDefinition          `json:"int,omitempty"`
	Float        *FloatDefinition        `json:"float,omitempty"`
	BoundedFloat *BoundedFloatDefinition `json:"bounded_float,omitempty"`
	String       *StringDefinition       `json:"string,omitempty"`
	StringList   *StringListDefinition   `json:"string_list,omitempty"`
	Bool         *BoolDefinition         `json:"bool,omitempty"`
	JSON         *JSONDefinition         `json:"json,omitempty"`
}

// IntDefinition holds bounds and default for integer parameters.
type IntDefinition struct {
	Default *int `json:"default,omitempty"`
	Min     *int `json:"min,omitempty"`
	Max     *int `json:"max,omitempty"`
}

// FloatDefinition holds the default for unbounded float parameters.
type FloatDefinition struct {
	Default *float64 `json:"default,omitempty"`
}

// BoundedFloatDefinition holds the default and inclusive bounds for
// range-limited float parameters such as temperature.
type BoundedFloatDefinition struct {
	Default *float64 `json:"default,omitempty"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
}

// StringDefinition holds the default for string parameters.
type StringDefinition struct {
	Default *string `json:"default,omitempty"`
}

// StringListDefinition holds the default for string-list parameters.
type StringListDefinition struct {
	Default []string `json:"default,omitempty"`
}

// BoolDefinition holds the default for boolean parameters.
type BoolDefinition struct {
	Default *bool `json:"default,omitempty"`
}

// JSONDefinition holds the default for free-form JSON parameters.
type JSONDefinition struct {
	Default json.RawMessage `json:"default,omitempty"`
}

// Value is a user-configured parameter value. At most one value field is
// populated, matching the kind of the definition it was configured against.
type Value struct {
	InvocationName string        `json:"invocation_name"`
	CanonicalName  CanonicalName `json:"canonical_name,omitempty"`

	Int        *int            `json:"value_int,omitempty"`
	Float      *float64        `json:"value_float,omitempty"`
	String     *string         `json:"value_string,omitempty"`
	StringList []string        `json:"value_string_list,omitempty"`
	Bool       *bool           `json:"value_bool,omitempty"`
	JSON       json.RawMessage `json:"value_json,omitempty"`
}

/// Ref is the identity of a parameter: its provider wire name plus the
// optional provider-independent canonical name.
type Ref struct {
	InvocationName string
	CanonicalName  CanonicalName
}

// Ref returns the identity of the value.
func (v Value) Ref() Ref {
	return Ref{InvocationName: v.InvocationName, CanonicalName: v.CanonicalName}
}

// Ref returns the identity of the definition.
func (d Definition) Ref() Ref {
	return Ref{InvocationName: d.InvocationName, CanonicalName: d.CanonicalName}
}

// HasDefault reports whether the definition declares a default value.
func (d Definition) HasDefault() bool {
	_, ok := d.DefaultValue()
	return ok
}

// DefaultValue builds a Value from the definition's declared default.
// The second return is false when no default is declared.
func (d Definition) DefaultValue() (Value, bool) {
	v := Value{InvocationName: d.InvocationName, CanonicalName: d.CanonicalName}
	switch d.Kind {
	case KindInt:
		if d.Int != nil && d.Int.Default != nil {
			n := *d.Int.Default
			v.Int = &n
			return v, true
		}
	case KindFloat:
		if d.Float != nil && d.Float.Default != nil {
			f := *d.Float.Default
			v.Float = &f
			return v, true
		}
	case KindBoundedFloat:
		if d.BoundedFloat != nil && d.BoundedFloat.Default != nil {
			f := *d.BoundedFloat.Default
			v.Float = &f
			return v, true
		}
	case KindString:
		if d.String != nil && d.String.Default != nil {
			s := *d.String.Default
			v.String = &s
			return v, true
		}
	case KindStringList:
		if d.StringList != nil && d.StringList.Default != nil {
			v.StringList = append([]string(nil), d.StringList.Default...)
			return v, true
		}
	case KindBool:
		if d.Bool != nil && d.Bool.Default != nil {
			b := *d.Bool.Default
			v.Bool = &b
			return v, true
		}
	case KindJSON:
		if d.JSON != nil && len(d.JSON.Default) > 0 {
			v.JSON = append(json.RawMessage(nil), d.JSON.Default...)
			return v, true
		}
	}
	return Value{}, false
}
