package translate

import (
	"encoding/json"
	"strconv"
	"strings"

	"toolgate/internal/domain"
)

// CoerceArguments returns a copy of args with string inputs coerced toward
// each field's declared type. Coercion never fails: a value that cannot be
// converted passes through unchanged so the upstream performs final
// validation. Nulls pass through for any target type.
func CoerceArguments(desc *domain.ObjectDescriptor, args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(args))
	for name, value := range args {
		field := desc.Field(name)
		if field == nil {
			out[name] = value
			continue
		}
		out[name] = coerceValue(field, value)
	}
	return out
}

func coerceValue(field *domain.FieldDescriptor, value any) any {
	if value == nil {
		return nil
	}

	switch field.Kind {
	case domain.KindInteger:
		if s, ok := value.(string); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return n
			}
		}
		return value
	case domain.KindNumber:
		if s, ok := value.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
		return value
	case domain.KindBoolean:
		// Case-sensitive literals only; anything else passes through.
		switch value {
		case "true":
			return true
		case "false":
			return false
		}
		return value
	case domain.KindArray:
		return coerceArray(field, value)
	case domain.KindObject:
		return coerceObject(field, value)
	default:
		return value
	}
}

func coerceArray(field *domain.FieldDescriptor, value any) any {
	switch v := value.(type) {
	case []any:
		if field.Items == nil {
			return v
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = coerceValue(field.Items, item)
		}
		return out
	case string:
		var parsed []any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			if field.Items == nil {
				return parsed
			}
			out := make([]any, len(parsed))
			for i, item := range parsed {
				out[i] = coerceValue(field.Items, item)
			}
			return out
		}
		// Fall back to comma splitting; empty segments are dropped.
		parts := strings.Split(v, ",")
		out := make([]any, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			var item any = trimmed
			if field.Items != nil {
				item = coerceValue(field.Items, trimmed)
			}
			out = append(out, item)
		}
		return out
	default:
		return value
	}
}

func coerceObject(field *domain.FieldDescriptor, value any) any {
	switch v := value.(type) {
	case map[string]any:
		if len(field.Fields) == 0 {
			return v
		}
		out := make(map[string]any, len(v))
		for name, item := range v {
			if nested, ok := field.Fields[name]; ok {
				out[name] = coerceValue(nested, item)
			} else {
				out[name] = item
			}
		}
		return out
	case string:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			return parsed
		}
		// Unparseable object input substitutes an empty object.
		return map[string]any{}
	default:
		return value
	}
}
