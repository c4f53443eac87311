package models

import "time"

// Section имя секции формы редактора товара
type Section string

// Fields значения полей одной секции.
// Значения имеют JSON-форму: nil, string, float64, bool, []any, map[string]any.
type Fields map[string]any

// Record представление товара, которое отдает каталог
type Record struct {
	ID        string             `json:"id"`
	Version   string             `json:"version,omitempty"`
	Sections  map[Section]Fields `json:"sections"`
	UpdatedAt time.Time          `json:"updated_at,omitempty"`
}

// RecordRef ссылка на запись с версией для условного обновления
type RecordRef struct {
	ID      string
	Version string
}

// Ref возвращает ссылку на запись
func (r *Record) Ref() RecordRef {
	return RecordRef{ID: r.ID, Version: r.Version}
}

// Section возвращает поля секции, создавая пустую карту при необходимости
func (r *Record) Section(name Section) Fields {
	if r.Sections == nil {
		r.Sections = make(map[Section]Fields)
	}
	fields, ok := r.Sections[name]
	if !ok || fields == nil {
		fields = make(Fields)
		r.Sections[name] = fields
	}
	return fields
}

// Clone возвращает глубокую копию записи
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := &Record{
		ID:        r.ID,
		Version:   r.Version,
		UpdatedAt: r.UpdatedAt,
		Sections:  make(map[Section]Fields, len(r.Sections)),
	}
	for name, fields := range r.Sections {
		clone.Sections[name] = fields.Clone()
	}
	return clone
}

// Clone возвращает глубокую копию полей
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	clone := make(Fields, len(f))
	for k, v := range f {
		clone[k] = CloneValue(v)
	}
	return clone
}

// CloneValue глубоко копирует значение JSON-формы
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		clone := make(map[string]any, len(val))
		for k, item := range val {
			clone[k] = CloneValue(item)
		}
		return clone
	case Fields:
		return map[string]any(val.Clone())
	case []any:
		clone := make([]any, len(val))
		for i, item := range val {
			clone[i] = CloneValue(item)
		}
		return clone
	case []string:
		clone := make([]any, len(val))
		for i, item := range val {
			clone[i] = item
		}
		return clone
	case []map[string]any:
		clone := make([]any, len(val))
		for i, item := range val {
			clone[i] = CloneValue(item)
		}
		return clone
	default:
		return val
	}
}
