package translate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"toolgate/internal/domain"
)

func descriptorFor(fields map[string]*domain.FieldDescriptor) *domain.ObjectDescriptor {
	return &domain.ObjectDescriptor{Fields: fields}
}

func TestCoerceNumericStrings(t *testing.T) {
	desc := descriptorFor(map[string]*domain.FieldDescriptor{
		"priority": {Kind: domain.KindInteger},
		"ratio":    {Kind: domain.KindNumber},
	})

	out := CoerceArguments(desc, map[string]any{
		"priority": "3",
		"ratio":    "0.5",
	})
	require.Equal(t, int64(3), out["priority"])
	require.Equal(t, 0.5, out["ratio"])
}

func TestCoerceNumericStringFailurePassesThrough(t *testing.T) {
	desc := descriptorFor(map[string]*domain.FieldDescriptor{
		"priority": {Kind: domain.KindInteger},
	})

	out := CoerceArguments(desc, map[string]any{"priority": "high"})
	require.Equal(t, "high", out["priority"])
}

func TestCoerceBooleanLiteralsCaseSensitive(t *testing.T) {
	desc := descriptorFor(map[string]*domain.FieldDescriptor{
		"enabled": {Kind: domain.KindBoolean},
	})

	tests := []struct {
		in   any
		want any
	}{
		{"true", true},
		{"false", false},
		{"True", "True"},
		{"FALSE", "FALSE"},
		{"yes", "yes"},
		{true, true},
	}
	for _, tc := range tests {
		out := CoerceArguments(desc, map[string]any{"enabled": tc.in})
		require.Equal(t, tc.want, out["enabled"], "input %v", tc.in)
	}
}

func TestCoerceArrayFromJSONString(t *testing.T) {
	desc := descriptorFor(map[string]*domain.FieldDescriptor{
		"tags": {Kind: domain.KindArray, Items: &domain.FieldDescriptor{Kind: domain.KindString}},
	})

	out := CoerceArguments(desc, map[string]any{"tags": `["a","b"]`})
	require.Equal(t, []any{"a", "b"}, out["tags"])
}

func TestCoerceArrayFromCommaSplit(t *testing.T) {
	desc := descriptorFor(map[string]*domain.FieldDescriptor{
		"tags": {Kind: domain.KindArray, Items: &domain.FieldDescriptor{Kind: domain.KindString}},
	})

	out := CoerceArguments(desc, map[string]any{"tags": "a, b,,c"})
	require.Equal(t, []any{"a", "b", "c"}, out["tags"])
}

func TestCoerceArrayElementCoercion(t *testing.T) {
	desc := descriptorFor(map[string]*domain.FieldDescriptor{
		"ids": {Kind: domain.KindArray, Items: &domain.FieldDescriptor{Kind: domain.KindInteger}},
	})

	out := CoerceArguments(desc, map[string]any{"ids": "1,2,3"})
	require.Equal(t, []any{int64(1), int64(2), int64(3)}, out["ids"])
}

func TestCoerceObjectFromString(t *testing.T) {
	desc := descriptorFor(map[string]*domain.FieldDescriptor{
		"filter": {Kind: domain.KindObject},
	})

	out := CoerceArguments(desc, map[string]any{"filter": `{"status":"open"}`})
	require.Equal(t, map[string]any{"status": "open"}, out["filter"])

	// Unparseable object input substitutes an empty object.
	out = CoerceArguments(desc, map[string]any{"filter": "not-an-object"})
	require.Equal(t, map[string]any{}, out["filter"])
}

func TestCoerceNestedObjectFields(t *testing.T) {
	desc := descriptorFor(map[string]*domain.FieldDescriptor{
		"owner": {
			Kind: domain.KindObject,
			Fields: map[string]*domain.FieldDescriptor{
				"id": {Kind: domain.KindInteger},
			},
		},
	})

	out := CoerceArguments(desc, map[string]any{
		"owner": map[string]any{"id": "7", "extra": "kept"},
	})
	want := map[string]any{"owner": map[string]any{"id": int64(7), "extra": "kept"}}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("coerced arguments mismatch (-want +got):\n%s", diff)
	}
}

func TestCoerceNullAndUnknownFieldsPassThrough(t *testing.T) {
	desc := descriptorFor(map[string]*domain.FieldDescriptor{
		"priority": {Kind: domain.KindInteger},
	})

	out := CoerceArguments(desc, map[string]any{
		"priority": nil,
		"unknown":  "left alone",
	})
	require.Nil(t, out["priority"])
	require.Equal(t, "left alone", out["unknown"])
}

func TestCoerceNilArguments(t *testing.T) {
	desc := descriptorFor(nil)
	out := CoerceArguments(desc, nil)
	require.NotNil(t, out)
	require.Empty(t, out)
}
