package tracking

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/athebyme/gomarket-admin/internal/domain/models"
)

// Normalizer приводит значения полей к канонической форме согласно схеме,
// чтобы эквивалентные с точки зрения пользователя значения сравнивались как равные.
type Normalizer struct {
	schema *models.Schema
}

// NewNormalizer создает нормализатор для схемы
func NewNormalizer(schema *models.Schema) *Normalizer {
	return &Normalizer{schema: schema}
}

// Fields нормализует поля секции. Поля вне схемы отбрасываются,
// поля с пустым значением отсутствуют в результате.
func (n *Normalizer) Fields(section models.Section, fields models.Fields) models.Fields {
	spec, ok := n.schema.Section(section)
	if !ok {
		return models.Fields{}
	}
	out := make(models.Fields, len(spec.Fields))
	for _, f := range spec.Fields {
		raw, present := fields[f.Name]
		if !present {
			continue
		}
		if v := n.Value(f, raw); v != nil {
			out[f.Name] = v
		}
	}
	return out
}

// Record возвращает нормализованную копию записи со всеми секциями схемы
func (n *Normalizer) Record(record *models.Record) *models.Record {
	out := &models.Record{
		ID:        record.ID,
		Version:   record.Version,
		UpdatedAt: record.UpdatedAt,
		Sections:  make(map[models.Section]models.Fields, len(n.schema.Sections)),
	}
	for _, section := range n.schema.Sections {
		out.Sections[section.Name] = n.Fields(section.Name, record.Sections[section.Name])
	}
	return out
}

// Value нормализует одно значение по описанию поля
func (n *Normalizer) Value(spec models.FieldSpec, v any) any {
	switch spec.Kind {
	case models.KindString:
		return normalizeString(v)
	case models.KindNumber:
		return normalizeNumber(v)
	case models.KindBool:
		return normalizeBool(v)
	case models.KindHTML:
		return normalizeHTML(v)
	case models.KindKeyedList:
		return n.keyedList(spec, v)
	case models.KindList, models.KindMediaList, models.KindMap:
		return normalizeAny(v)
	default:
		return normalizeAny(v)
	}
}

func (n *Normalizer) keyedList(spec models.FieldSpec, v any) any {
	list, ok := normalizeAny(v).([]any)
	if !ok || len(spec.Items) == 0 {
		return normalizeAny(v)
	}
	for i, raw := range list {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		for key, value := range item {
			itemSpec, known := spec.ItemField(key)
			if !known {
				continue
			}
			if nv := n.Value(itemSpec, value); nv != nil {
				item[key] = nv
			} else {
				delete(item, key)
			}
		}
		list[i] = item
	}
	return list
}

func normalizeString(v any) any {
	s, ok := v.(string)
	if !ok {
		return normalizeAny(v)
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func normalizeNumber(v any) any {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	}
	return normalizeAny(v)
}

func normalizeBool(v any) any {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
		return s
	}
	return normalizeAny(v)
}

// normalizeHTML сводит разметку без текста и медиа (например, "<p><br></p>"
// от rich-text редактора) к отсутствию значения
func normalizeHTML(v any) any {
	s, ok := v.(string)
	if !ok {
		return normalizeAny(v)
	}
	if strings.TrimSpace(s) == "" || htmlIsEmpty(s) {
		return nil
	}
	return s
}

func htmlIsEmpty(markup string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return false
	}
	if doc.Find("img, video, iframe, audio, embed, object, picture, svg").Length() > 0 {
		return false
	}
	return strings.TrimSpace(doc.Text()) == ""
}

// normalizeAny нормализует значение без учета схемы: числа приводятся к float64,
// пустые строки, списки и карты становятся nil, nil-значения удаляются из карт
func normalizeAny(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		return val
	case bool:
		return val
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case models.Fields:
		return normalizeMap(val)
	case map[string]any:
		return normalizeMap(val)
	case []any:
		return normalizeList(val)
	case []string:
		list := make([]any, len(val))
		for i, s := range val {
			list[i] = s
		}
		return normalizeList(list)
	case []map[string]any:
		list := make([]any, len(val))
		for i, m := range val {
			list[i] = m
		}
		return normalizeList(list)
	default:
		return val
	}
}

func normalizeMap(m map[string]any) any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nv := normalizeAny(v); nv != nil {
			out[k] = nv
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeList сохраняет позиции элементов: пустой элемент остается nil
func normalizeList(list []any) any {
	if len(list) == 0 {
		return nil
	}
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = normalizeAny(v)
	}
	return out
}
