package params

import (
	"encoding/json"
	"fmt"
	"math"
)

// AreEqual reports whether two parameter references denote the same logical
// parameter. When both carry a canonical name, only the canonical names are
// compared; otherwise the invocation names decide.
func AreEqual(a, b Ref) bool {
	if a.CanonicalName != "" && b.CanonicalName != "" {
		return a.CanonicalName == b.CanonicalName
	}
	return a.InvocationName == b.InvocationName
}

// MergeWithDefaults appends a default-derived value for every supported
// definition that declares a default and has no matching entry in configured.
// Configured values are never overwritten and keep their original order;
// appended defaults follow in definition order.
func MergeWithDefaults(configured []Value, supported []Definition) []Value {
	merged := append([]Value(nil), configured...)
	for _, def := range supported {
		dv, ok := def.DefaultValue()
		if !ok {
			continue
		}
		present := false
		for _, v := range configured {
			if AreEqual(v.Ref(), def.Ref()) {
				present = true
				break
			}
		}
		if !present {
			merged = append(merged, dv)
		}
	}
	return merged
}

// AllRequiredConfigured reports whether every required supported definition
// has a matching configured value.
func AllRequiredConfigured(configured []Value, supported []Definition) bool {
	for _, def := range supported {
		if !def.Required {
			continue
		}
		found := false
		for _, v := range configured {
			if AreEqual(v.Ref(), def.Ref()) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Coerce converts a decoded JSON value into a typed Value matching the
// definition's kind. Returns an error when the value cannot represent the
// declared kind.
func Coerce(def Definition, raw any) (Value, error) {
	v := Value{InvocationName: def.InvocationName, CanonicalName: def.CanonicalName}
	switch def.Kind {
	case KindInt:
		f, ok := raw.(float64)
		if !ok || f != math.Trunc(f) {
			return Value{}, fmt.Errorf("parameter %s: expected integer, got %T", def.InvocationName, raw)
		}
		n := int(f)
		v.Int = &n
	case KindFloat, KindBoundedFloat:
		f, ok := raw.(float64)
		if !ok {
			return Value{}, fmt.Errorf("parameter %s: expected number, got %T", def.InvocationName, raw)
		}
		v.Float = &f
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("parameter %s: expected string, got %T", def.InvocationName, raw)
		}
		v.String = &s
	case KindStringList:
		items, ok := raw.([]any)
		if !ok {
			return Value{}, fmt.Errorf("parameter %s: expected list, got %T", def.InvocationName, raw)
		}
		list := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return Value{}, fmt.Errorf("parameter %s: expected list of strings, got element %T", def.InvocationName, item)
			}
			list = append(list, s)
		}
		v.StringList = list
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return Value{}, fmt.Errorf("parameter %s: expected boolean, got %T", def.InvocationName, raw)
		}
		v.Bool = &b
	case KindJSON:
		b, err := json.Marshal(raw)
		if err != nil {
			return Value{}, fmt.Errorf("parameter %s: %w", def.InvocationName, err)
		}
		v.JSON = b
	default:
		return Value{}, fmt.Errorf("parameter %s: unknown kind %q", def.InvocationName, def.Kind)
	}
	return v, nil
}

// ToWire flattens values into the snake_case JSON map a provider request
// body expects. Values with no populated field are skipped.
func ToWire(values []Value) map[string]any {
	wire := make(map[string]any, len(values))
	for _, v := range values {
		key := CamelToSnake(v.InvocationName)
		switch {
		case v.Int != nil:
			wire[key] = *v.Int
		case v.Float != nil:
			wire[key] = *v.Float
		case v.String != nil:
			wire[key] = *v.String
		case v.StringList != nil:
			wire[key] = v.StringList
		case v.Bool != nil:
			wire[key] = *v.Bool
		case len(v.JSON) > 0:
			var decoded any
			if err := json.Unmarshal(v.JSON, &decoded); err == nil {
				wire[key] = decoded
			}
		}
	}
	return wire
}
