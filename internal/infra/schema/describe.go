package schema

import "toolgate/internal/domain"

// Describe renders a compiled descriptor back into a plain JSON-schema-shaped
// map for the schema introspection endpoint and the spec synthesizer.
func Describe(desc *domain.ObjectDescriptor) map[string]any {
	out := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	if desc == nil {
		return out
	}
	props := out["properties"].(map[string]any)
	for name, field := range desc.Fields {
		props[name] = describeField(field)
	}
	if len(desc.Required) > 0 {
		out["required"] = desc.Required
	}
	return out
}

func describeField(field *domain.FieldDescriptor) map[string]any {
	if field == nil {
		return map[string]any{"type": "string"}
	}
	out := map[string]any{"type": string(field.Kind)}
	if field.Description != "" {
		out["description"] = field.Description
	}

	c := field.Constraints
	if c.MinLength != nil {
		out["minLength"] = *c.MinLength
	}
	if c.MaxLength != nil {
		out["maxLength"] = *c.MaxLength
	}
	if c.Pattern != "" {
		out["pattern"] = c.Pattern
	}
	if c.Minimum != nil {
		out["minimum"] = *c.Minimum
	}
	if c.Maximum != nil {
		out["maximum"] = *c.Maximum
	}
	if c.ExclusiveMinimum != nil {
		out["exclusiveMinimum"] = *c.ExclusiveMinimum
	}
	if c.ExclusiveMaximum != nil {
		out["exclusiveMaximum"] = *c.ExclusiveMaximum
	}
	if len(c.Enum) > 0 {
		out["enum"] = c.Enum
	}

	switch field.Kind {
	case domain.KindArray:
		if field.Items != nil {
			out["items"] = describeField(field.Items)
		}
	case domain.KindObject:
		props := map[string]any{}
		required := []string{}
		for name, nested := range field.Fields {
			props[name] = describeField(nested)
			if nested.Required {
				required = append(required, name)
			}
		}
		out["properties"] = props
		if len(required) > 0 {
			out["required"] = required
		}
	}
	return out
}
