package tracking

import (
	"encoding/json"
	"testing"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/stretchr/testify/assert"
)

func TestNormalizerValue(t *testing.T) {
	n := NewNormalizer(models.DefaultSchema())

	tests := []struct {
		name string
		kind models.FieldKind
		in   any
		want any
	}{
		{"blank string", models.KindString, "   ", nil},
		{"string kept verbatim", models.KindString, " Oak ", " Oak "},
		{"empty number", models.KindNumber, "", nil},
		{"numeric string", models.KindNumber, "12.50", 12.5},
		{"int", models.KindNumber, 3, 3.0},
		{"json number", models.KindNumber, json.Number("7"), 7.0},
		{"bool string", models.KindBool, "true", true},
		{"empty paragraph", models.KindHTML, "<p><br></p>", nil},
		{"nbsp paragraph", models.KindHTML, "<p>&nbsp;</p>", nil},
		{"image only", models.KindHTML, `<p><img src="a.png"></p>`, `<p><img src="a.png"></p>`},
		{"text", models.KindHTML, "<p>Hi</p>", "<p>Hi</p>"},
		{"empty list", models.KindList, []any{}, nil},
		{"string slice", models.KindList, []string{"a", "b"}, []any{"a", "b"}},
		{"empty map", models.KindMap, map[string]any{}, nil},
		{"map drops nil entries", models.KindMap, map[string]any{"a": nil, "b": 1}, map[string]any{"b": 1.0}},
		{"map of nils", models.KindMap, map[string]any{"a": nil}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Value(models.FieldSpec{Name: "f", Kind: tt.kind}, tt.in)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizerKeyedListItems(t *testing.T) {
	n := NewNormalizer(models.DefaultSchema())
	spec, _ := models.DefaultSchema().Field("variants", "items")

	got := n.Value(spec, []any{
		map[string]any{"id": "v1", "price": "10", "active": "false", "sku": " "},
	})

	assert.Equal(t, []any{map[string]any{"id": "v1", "price": 10.0, "active": false}}, got)
}

func TestNormalizerFieldsDropsUnknownAndEmpty(t *testing.T) {
	n := NewNormalizer(models.DefaultSchema())

	got := n.Fields("pricing", models.Fields{"price": "5", "cost": "", "secret": 1})

	assert.Equal(t, models.Fields{"price": 5.0}, got)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.True(t, Equal(map[string]any{"a": 1.0}, map[string]any{"a": 1.0, "b": nil}))
	assert.False(t, Equal(map[string]any{"a": 1.0}, map[string]any{"a": 2.0}))
	assert.False(t, Equal([]any{"a", "b"}, []any{"b", "a"}))
	assert.False(t, Equal("1", 1.0))
	assert.False(t, Equal(nil, ""))
}
