package translate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"toolgate/internal/domain"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestValidateRequiredFieldMissing(t *testing.T) {
	desc := &domain.ObjectDescriptor{
		Fields: map[string]*domain.FieldDescriptor{
			"title": {Kind: domain.KindString, Required: true},
		},
		Required: []string{"title"},
	}

	violations := ValidateArguments(desc, map[string]any{})
	require.Len(t, violations, 1)
	require.Contains(t, violations[0], "title")
	require.Contains(t, violations[0], "required")

	require.Empty(t, ValidateArguments(desc, map[string]any{"title": "x"}))
}

func TestValidateStringConstraints(t *testing.T) {
	desc := descriptorFor(map[string]*domain.FieldDescriptor{
		"name": {
			Kind: domain.KindString,
			Constraints: domain.Constraints{
				MinLength: intPtr(2),
				MaxLength: intPtr(4),
				Pattern:   "^[a-z]+$",
			},
		},
	})

	require.Empty(t, ValidateArguments(desc, map[string]any{"name": "abc"}))
	require.NotEmpty(t, ValidateArguments(desc, map[string]any{"name": "a"}))
	require.NotEmpty(t, ValidateArguments(desc, map[string]any{"name": "abcde"}))
	require.NotEmpty(t, ValidateArguments(desc, map[string]any{"name": "ABC"}))
}

func TestValidateNumericBounds(t *testing.T) {
	desc := descriptorFor(map[string]*domain.FieldDescriptor{
		"priority": {
			Kind: domain.KindInteger,
			Constraints: domain.Constraints{
				Minimum: floatPtr(1),
				Maximum: floatPtr(5),
			},
		},
		"score": {
			Kind: domain.KindNumber,
			Constraints: domain.Constraints{
				ExclusiveMinimum: floatPtr(0),
				ExclusiveMaximum: floatPtr(1),
			},
		},
	})

	require.Empty(t, ValidateArguments(desc, map[string]any{"priority": int64(3), "score": 0.5}))
	require.NotEmpty(t, ValidateArguments(desc, map[string]any{"priority": int64(0)}))
	require.NotEmpty(t, ValidateArguments(desc, map[string]any{"priority": float64(6)}))
	require.NotEmpty(t, ValidateArguments(desc, map[string]any{"score": 0.0}))
	require.NotEmpty(t, ValidateArguments(desc, map[string]any{"score": 1.0}))
}

func TestValidateEnum(t *testing.T) {
	desc := descriptorFor(map[string]*domain.FieldDescriptor{
		"mode": {
			Kind:        domain.KindString,
			Constraints: domain.Constraints{Enum: []any{"fast", "slow"}},
		},
		"level": {
			Kind:        domain.KindInteger,
			Constraints: domain.Constraints{Enum: []any{float64(1), float64(2)}},
		},
	})

	require.Empty(t, ValidateArguments(desc, map[string]any{"mode": "fast"}))
	require.NotEmpty(t, ValidateArguments(desc, map[string]any{"mode": "medium"}))
	// Coercion yields int64 while decoded enums carry float64; numeric
	// comparison bridges the two.
	require.Empty(t, ValidateArguments(desc, map[string]any{"level": int64(2)}))
	require.NotEmpty(t, ValidateArguments(desc, map[string]any{"level": int64(3)}))
}

func TestValidateArrayItems(t *testing.T) {
	desc := descriptorFor(map[string]*domain.FieldDescriptor{
		"tags": {
			Kind: domain.KindArray,
			Items: &domain.FieldDescriptor{
				Kind:        domain.KindString,
				Constraints: domain.Constraints{MaxLength: intPtr(3)},
			},
		},
	})

	require.Empty(t, ValidateArguments(desc, map[string]any{"tags": []any{"a", "bb"}}))

	violations := ValidateArguments(desc, map[string]any{"tags": []any{"ok", "too-long"}})
	require.Len(t, violations, 1)
	require.Contains(t, violations[0], "tags[1]")
}

func TestValidateNestedObject(t *testing.T) {
	desc := descriptorFor(map[string]*domain.FieldDescriptor{
		"owner": {
			Kind: domain.KindObject,
			Fields: map[string]*domain.FieldDescriptor{
				"id": {
					Kind:        domain.KindInteger,
					Constraints: domain.Constraints{Minimum: floatPtr(1)},
				},
			},
		},
	})

	violations := ValidateArguments(desc, map[string]any{
		"owner": map[string]any{"id": int64(0)},
	})
	require.Len(t, violations, 1)
	require.Contains(t, violations[0], "owner.id")
}

func TestValidateNilDescriptorAndNullValues(t *testing.T) {
	require.Nil(t, ValidateArguments(nil, map[string]any{"x": 1}))

	desc := descriptorFor(map[string]*domain.FieldDescriptor{
		"name": {
			Kind:        domain.KindString,
			Constraints: domain.Constraints{MinLength: intPtr(2)},
		},
	})
	// Nulls are not validated against constraints.
	require.Empty(t, ValidateArguments(desc, map[string]any{"name": nil}))
}
