package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSchemaSectionsInTabOrder(t *testing.T) {
	schema := DefaultSchema()

	assert.Equal(t, []Section{"basic", "pricing", "media", "variants", "inventory", "details"}, schema.Names())
	assert.Equal(t, Section("basic"), schema.First())

	field, ok := schema.Field("variants", "items")
	require.True(t, ok)
	assert.Equal(t, KindKeyedList, field.Kind)
	assert.Equal(t, "id", field.ItemKey())

	images, ok := field.ItemField("images")
	require.True(t, ok)
	assert.Equal(t, KindMediaList, images.Kind)

	_, ok = schema.Field("basic", "unknown")
	assert.False(t, ok)
}

func TestLoadSchemaRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "sections: []"},
		{"unknown kind", "sections:\n  - name: a\n    fields:\n      - {name: x, kind: blob}"},
		{"duplicate section", "sections:\n  - name: a\n  - name: a"},
		{"missing name", "sections:\n  - title: A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSchema([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestRecordCloneIsDeep(t *testing.T) {
	record := &Record{
		ID: "p1",
		Sections: map[Section]Fields{
			"media": {"images": []any{map[string]any{"id": "i1"}}},
		},
	}

	clone := record.Clone()
	clone.Sections["media"]["images"].([]any)[0].(map[string]any)["id"] = "changed"

	assert.Equal(t, "i1", record.Sections["media"]["images"].([]any)[0].(map[string]any)["id"])
}

func TestErrorsFormatting(t *testing.T) {
	err := &ValidationError{Message: "invalid", FieldErrors: map[string]string{"price": "must be positive", "cost": "required"}}
	assert.Equal(t, "invalid (cost: required; price: must be positive)", err.Error())

	assert.True(t, IsFatal(&NotFoundError{RecordID: "p1"}))
	assert.False(t, IsFatal(&ConflictError{RecordID: "p1"}))
}
