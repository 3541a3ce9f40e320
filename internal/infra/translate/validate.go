package translate

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"

	"toolgate/internal/domain"
)

// ValidateArguments checks coerced arguments against the compiled descriptor
// and returns the list of constraint violations. Validation itself never
// errors; how violations are handled (advisory log vs strict reject) is the
// translator's policy decision.
func ValidateArguments(desc *domain.ObjectDescriptor, args map[string]any) []string {
	if desc == nil {
		return nil
	}

	var violations []string
	for _, name := range desc.Required {
		if _, ok := args[name]; !ok {
			violations = append(violations, fmt.Sprintf("%s: required field missing", name))
		}
	}
	for name, value := range args {
		field := desc.Field(name)
		if field == nil || value == nil {
			continue
		}
		violations = append(violations, validateField(name, field, value)...)
	}
	return violations
}

func validateField(name string, field *domain.FieldDescriptor, value any) []string {
	var violations []string
	c := field.Constraints

	if len(c.Enum) > 0 && !enumContains(c.Enum, value) {
		violations = append(violations, fmt.Sprintf("%s: value not in enum", name))
	}

	switch field.Kind {
	case domain.KindString:
		s, ok := value.(string)
		if !ok {
			return violations
		}
		if c.MinLength != nil && len(s) < *c.MinLength {
			violations = append(violations, fmt.Sprintf("%s: shorter than minLength %d", name, *c.MinLength))
		}
		if c.MaxLength != nil && len(s) > *c.MaxLength {
			violations = append(violations, fmt.Sprintf("%s: longer than maxLength %d", name, *c.MaxLength))
		}
		if c.Pattern != "" {
			re, err := regexp.Compile(c.Pattern)
			if err == nil && !re.MatchString(s) {
				violations = append(violations, fmt.Sprintf("%s: does not match pattern", name))
			}
		}
	case domain.KindInteger, domain.KindNumber:
		f, ok := asFloat(value)
		if !ok {
			return violations
		}
		if c.Minimum != nil && f < *c.Minimum {
			violations = append(violations, fmt.Sprintf("%s: below minimum %v", name, *c.Minimum))
		}
		if c.Maximum != nil && f > *c.Maximum {
			violations = append(violations, fmt.Sprintf("%s: above maximum %v", name, *c.Maximum))
		}
		if c.ExclusiveMinimum != nil && f <= *c.ExclusiveMinimum {
			violations = append(violations, fmt.Sprintf("%s: not above exclusiveMinimum %v", name, *c.ExclusiveMinimum))
		}
		if c.ExclusiveMaximum != nil && f >= *c.ExclusiveMaximum {
			violations = append(violations, fmt.Sprintf("%s: not below exclusiveMaximum %v", name, *c.ExclusiveMaximum))
		}
	case domain.KindArray:
		items, ok := value.([]any)
		if !ok || field.Items == nil {
			return violations
		}
		for i, item := range items {
			if item == nil {
				continue
			}
			violations = append(violations, validateField(fmt.Sprintf("%s[%d]", name, i), field.Items, item)...)
		}
	case domain.KindObject:
		nested, ok := value.(map[string]any)
		if !ok {
			return violations
		}
		for childName, child := range nested {
			childField := field.Fields[childName]
			if childField == nil || child == nil {
				continue
			}
			violations = append(violations, validateField(fmt.Sprintf("%s.%s", name, childName), childField, child)...)
		}
	}
	return violations
}

func enumContains(enum []any, value any) bool {
	for _, candidate := range enum {
		if reflect.DeepEqual(candidate, value) {
			return true
		}
		// JSON decoding yields float64 for numbers; compare numerically too.
		cf, cok := asFloat(candidate)
		vf, vok := asFloat(value)
		if cok && vok && cf == vf {
			return true
		}
	}
	return false
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
