package tracking

import (
	"fmt"
	"time"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
)

// Engine вычисляет признак несохраненных изменений как структурное
// отличие рабочей копии от снимка
type Engine struct {
	schema *models.Schema
	norm   *Normalizer
	now    func() time.Time
}

// NewEngine создает движок отслеживания изменений для схемы
func NewEngine(schema *models.Schema) *Engine {
	return &Engine{
		schema: schema,
		norm:   NewNormalizer(schema),
		now:    time.Now,
	}
}

// Schema схема формы
func (e *Engine) Schema() *models.Schema {
	return e.schema
}

// Normalize возвращает нормализованную копию записи
func (e *Engine) Normalize(record *models.Record) *models.Record {
	return e.norm.Record(record)
}

// NormalizeFields нормализует поля секции, отбрасывая поля вне схемы
func (e *Engine) NormalizeFields(section models.Section, fields models.Fields) models.Fields {
	return e.norm.Fields(section, fields)
}

// NormalizeValue нормализует значение поля; false, если поле не описано в схеме
func (e *Engine) NormalizeValue(section models.Section, field string, v any) (any, bool) {
	spec, ok := e.schema.Field(section, field)
	if !ok {
		return nil, false
	}
	return e.norm.Value(spec, v), true
}

// CaptureBaseline делает глубокую копию всех секций рабочей копии
func (e *Engine) CaptureBaseline(working *models.Record) *Snapshot {
	normalized := e.norm.Record(working)
	return &Snapshot{
		recordID:   working.ID,
		version:    working.Version,
		sections:   normalized.Sections,
		capturedAt: e.now(),
	}
}

// Rebaseline возвращает новый снимок, в котором поля секции заменены
// серверным представлением
func (e *Engine) Rebaseline(base *Snapshot, section models.Section, fields models.Fields, version string) *Snapshot {
	normalized := make(models.Fields, len(fields))
	for name, value := range fields {
		nv, ok := e.NormalizeValue(section, name, value)
		if !ok {
			continue
		}
		normalized[name] = nv
	}
	return base.with(section, normalized, version, e.now())
}

// IsDirty сообщает, отличается ли рабочая копия от снимка
func (e *Engine) IsDirty(working *models.Record, base *Snapshot) bool {
	for _, section := range e.schema.Sections {
		if len(e.SectionDiff(section.Name, working, base)) > 0 {
			return true
		}
	}
	return false
}

// DirtySections возвращает секции с несохраненными изменениями в порядке вкладок
func (e *Engine) DirtySections(working *models.Record, base *Snapshot) []models.Section {
	var dirty []models.Section
	for _, section := range e.schema.Sections {
		if len(e.SectionDiff(section.Name, working, base)) > 0 {
			dirty = append(dirty, section.Name)
		}
	}
	return dirty
}

// SectionDiff возвращает поля секции, значение которых отличается от снимка.
// Очищенное поле присутствует в результате со значением nil.
func (e *Engine) SectionDiff(section models.Section, working *models.Record, base *Snapshot) models.Fields {
	spec, ok := e.schema.Section(section)
	if !ok {
		return models.Fields{}
	}
	current := e.norm.Fields(section, working.Sections[section])
	saved := base.sections[section]

	diff := models.Fields{}
	for _, f := range spec.Fields {
		if !Equal(current[f.Name], saved[f.Name]) {
			diff[f.Name] = models.CloneValue(current[f.Name])
		}
	}
	return diff
}

// ItemDiff возвращает элемент keyed_list рабочей копии и признак его изменения
func (e *Engine) ItemDiff(section models.Section, field, itemID string, working *models.Record, base *Snapshot) (map[string]any, bool, error) {
	spec, ok := e.schema.Field(section, field)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s.%s", models.ErrUnknownField, section, field)
	}
	if spec.Kind != models.KindKeyedList {
		return nil, false, fmt.Errorf("%w: %s.%s is not a keyed list", models.ErrUnknownField, section, field)
	}

	current := e.norm.Value(spec, working.Sections[section][field])
	item, _ := FindItem(current, spec.ItemKey(), itemID)
	if item == nil {
		return nil, false, fmt.Errorf("%w: %s", models.ErrItemNotFound, itemID)
	}
	saved, _ := FindItem(base.sections[section][field], spec.ItemKey(), itemID)

	return models.CloneValue(item).(map[string]any), !Equal(item, saved), nil
}

// FindItem ищет элемент списка по значению ключевого поля
func FindItem(list any, key, id string) (map[string]any, int) {
	items, ok := list.([]any)
	if !ok {
		return nil, -1
	}
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if fmt.Sprint(item[key]) == id {
			return item, i
		}
	}
	return nil, -1
}
