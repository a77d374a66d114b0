package core

import (
	"fmt"
	"strconv"
)

// ValidateArgs reports whether args satisfies the tool's schema: every
// required key is present and non-nil, and every provided key type-checks
// against the schema's declared type.
func (t *Tool) ValidateArgs(args map[string]interface{}) error {
	for _, req := range t.Schema.Required {
		v, ok := args[req]
		if !ok || v == nil {
			return fmt.Errorf("%w: missing required argument %q", ErrValidation, req)
		}
	}
	for name, v := range args {
		param, ok := t.Schema.Properties[name]
		if !ok {
			continue
		}
		if !validateParameterType(v, param.Type) {
			return fmt.Errorf("%w: argument %q does not match declared type %q", ErrValidation, name, param.Type)
		}
	}
	return nil
}

// MissingRequired returns the required keys absent or nil in args, in
// schema declaration order. Used to build the "missing required arguments:
// [a b]" error message the supervisor's execution path returns (spec §4.1
// step 1).
func (t *Tool) MissingRequired(args map[string]interface{}) []string {
	var missing []string
	for _, req := range t.Schema.Required {
		v, ok := args[req]
		if !ok || v == nil {
			missing = append(missing, req)
		}
	}
	return missing
}

// NormalizeArgs applies schema defaults for missing optional parameters and
// coerces scalar types when trivially convertible (string<->number,
// string<->bool), per spec §4.1 step 2. NormalizeArgs is idempotent:
// normalizing an already-normalized map returns an equal map.
func (t *Tool) NormalizeArgs(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}
	for name, param := range t.Schema.Properties {
		v, present := out[name]
		if !present {
			if param.Default != nil {
				out[name] = param.Default
			}
			continue
		}
		out[name] = coerceScalar(v, param.Type)
	}
	return out
}

func validateParameterType(v interface{}, declared string) bool {
	switch declared {
	case "string":
		_, ok := v.(string)
		return ok
	case "integer":
		switch v.(type) {
		case int, int32, int64:
			return true
		case float64:
			f := v.(float64)
			return f == float64(int64(f))
		}
		return false
	case "number":
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]interface{})
		return ok
	case "object":
		_, ok := v.(map[string]interface{})
		return ok
	default:
		// Unknown declared type: accept anything rather than reject a tool
		// whose server advertises a schema this runtime doesn't recognize.
		return true
	}
}

// coerceScalar converts v to the declared scalar type when the conversion
// is trivial and lossless-in-intent (string<->number, string<->bool).
// Non-trivial or already-matching values pass through unchanged.
func coerceScalar(v interface{}, declared string) interface{} {
	switch declared {
	case "string":
		switch t := v.(type) {
		case string:
			return t
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(t)
		}
	case "integer", "number":
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		}
	case "boolean":
		if s, ok := v.(string); ok {
			if b, err := strconv.ParseBool(s); err == nil {
				return b
			}
		}
	}
	return v
}
