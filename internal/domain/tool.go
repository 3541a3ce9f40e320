package domain

import "encoding/json"

// ToolDefinition is a discovered upstream tool. Definitions are immutable once
// discovered and replaced wholesale on refresh.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// FieldKind is the declared type of a schema field.
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindInteger FieldKind = "integer"
	KindNumber  FieldKind = "number"
	KindBoolean FieldKind = "boolean"
	KindArray   FieldKind = "array"
	KindObject  FieldKind = "object"
)

// Constraints holds the validation bounds extracted from a field schema.
// Pointer fields distinguish "absent" from zero.
type Constraints struct {
	MinLength        *int     `json:"minLength,omitempty"`
	MaxLength        *int     `json:"maxLength,omitempty"`
	Pattern          string   `json:"pattern,omitempty"`
	Minimum          *float64 `json:"minimum,omitempty"`
	Maximum          *float64 `json:"maximum,omitempty"`
	ExclusiveMinimum *float64 `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum *float64 `json:"exclusiveMaximum,omitempty"`
	Enum             []any    `json:"enum,omitempty"`
}

// FieldDescriptor is one compiled schema field. Descriptors are owned by the
// compiled schema of a single tool and never mutated after creation.
type FieldDescriptor struct {
	Kind        FieldKind                   `json:"kind"`
	Required    bool                        `json:"required"`
	Description string                      `json:"description,omitempty"`
	Constraints Constraints                 `json:"constraints"`
	Items       *FieldDescriptor            `json:"items,omitempty"`
	Fields      map[string]*FieldDescriptor `json:"fields,omitempty"`
	// Permissive marks a field whose declared type was missing or unrecognized
	// and was defaulted to string so the tool stays callable.
	Permissive bool `json:"permissive,omitempty"`
}

// ObjectDescriptor is the compiled top-level parameter shape of one tool.
type ObjectDescriptor struct {
	Fields   map[string]*FieldDescriptor `json:"fields"`
	Required []string                    `json:"required,omitempty"`
	// Permissive marks a schema that failed to parse; the empty field map
	// accepts any arguments.
	Permissive bool `json:"permissive,omitempty"`
}

// Field returns the descriptor for a named field, or nil.
func (d *ObjectDescriptor) Field(name string) *FieldDescriptor {
	if d == nil {
		return nil
	}
	return d.Fields[name]
}
