// Package schema compiles declared tool parameter schemas into the typed
// field descriptors consumed by validation and coercion.
//
// Compilation is total: malformed or unrecognized input degrades to a
// permissive model instead of failing, so one bad tool definition cannot
// block discovery of the rest.
package schema

import (
	"encoding/json"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"toolgate/internal/domain"
)

// Compile converts a raw JSON-Schema-like document into an ObjectDescriptor.
// A nil, empty or unparseable schema compiles to an empty-but-valid object
// shape flagged Permissive.
func Compile(raw json.RawMessage) *domain.ObjectDescriptor {
	if len(raw) == 0 {
		return &domain.ObjectDescriptor{Fields: map[string]*domain.FieldDescriptor{}}
	}

	var parsed jsonschema.Schema
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &domain.ObjectDescriptor{
			Fields:     map[string]*domain.FieldDescriptor{},
			Permissive: true,
		}
	}
	return compileObject(&parsed)
}

func compileObject(s *jsonschema.Schema) *domain.ObjectDescriptor {
	desc := &domain.ObjectDescriptor{
		Fields: map[string]*domain.FieldDescriptor{},
	}
	if s == nil {
		return desc
	}

	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}
	desc.Required = append(desc.Required, s.Required...)

	for name, prop := range s.Properties {
		field := compileField(prop)
		field.Required = required[name]
		desc.Fields[name] = field
	}
	return desc
}

func compileField(s *jsonschema.Schema) *domain.FieldDescriptor {
	if s == nil {
		return &domain.FieldDescriptor{Kind: domain.KindString, Permissive: true}
	}

	kind, known := kindOf(s)
	field := &domain.FieldDescriptor{
		Kind:        kind,
		Description: s.Description,
		Permissive:  !known,
	}

	switch kind {
	case domain.KindString:
		field.Constraints.MinLength = s.MinLength
		field.Constraints.MaxLength = s.MaxLength
		field.Constraints.Pattern = s.Pattern
	case domain.KindInteger, domain.KindNumber:
		field.Constraints.Minimum = s.Minimum
		field.Constraints.Maximum = s.Maximum
		field.Constraints.ExclusiveMinimum = s.ExclusiveMinimum
		field.Constraints.ExclusiveMaximum = s.ExclusiveMaximum
	case domain.KindArray:
		field.Items = compileField(s.Items)
	case domain.KindObject:
		nested := compileObject(s)
		field.Fields = nested.Fields
	}

	if len(s.Enum) > 0 {
		field.Constraints.Enum = append(field.Constraints.Enum, s.Enum...)
	}
	return field
}

// kindOf maps the declared type to a field kind. Unknown or absent types
// default to string so the tool stays callable; the caller logs the downgrade
// via the Permissive flag.
func kindOf(s *jsonschema.Schema) (domain.FieldKind, bool) {
	declared := s.Type
	if declared == "" && len(s.Types) > 0 {
		declared = s.Types[0]
	}
	if declared == "" && len(s.Properties) > 0 {
		declared = "object"
	}

	switch strings.ToLower(declared) {
	case "string":
		return domain.KindString, true
	case "integer":
		return domain.KindInteger, true
	case "number":
		return domain.KindNumber, true
	case "boolean":
		return domain.KindBoolean, true
	case "array":
		return domain.KindArray, true
	case "object":
		return domain.KindObject, true
	default:
		return domain.KindString, false
	}
}
