package models

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FieldKind определяет правила нормализации значения поля
type FieldKind string

const (
	KindString    FieldKind = "string"
	KindNumber    FieldKind = "number"
	KindBool      FieldKind = "bool"
	KindHTML      FieldKind = "html"
	KindList      FieldKind = "list"
	KindMediaList FieldKind = "media_list"
	KindKeyedList FieldKind = "keyed_list"
	KindMap       FieldKind = "map"
)

// DefaultItemKey поле-идентификатор элемента keyed_list по умолчанию
const DefaultItemKey = "id"

//go:embed schema/product.yaml
var productSchemaYAML []byte

// FieldSpec описание поля секции
type FieldSpec struct {
	Name  string      `yaml:"name" json:"name"`
	Kind  FieldKind   `yaml:"kind" json:"kind"`
	Key   string      `yaml:"key,omitempty" json:"key,omitempty"`
	Items []FieldSpec `yaml:"items,omitempty" json:"items,omitempty"`
}

// ItemKey имя поля-идентификатора элементов keyed_list
func (f FieldSpec) ItemKey() string {
	if f.Key == "" {
		return DefaultItemKey
	}
	return f.Key
}

// ItemField описание поля внутри элемента keyed_list
func (f FieldSpec) ItemField(name string) (FieldSpec, bool) {
	for _, item := range f.Items {
		if item.Name == name {
			return item, true
		}
	}
	return FieldSpec{}, false
}

// SectionSpec описание секции формы
type SectionSpec struct {
	Name   Section     `yaml:"name" json:"name"`
	Title  string      `yaml:"title" json:"title"`
	Fields []FieldSpec `yaml:"fields" json:"fields"`
}

// Field возвращает описание поля секции
func (s *SectionSpec) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Schema упорядоченный набор секций формы
type Schema struct {
	Sections []SectionSpec `yaml:"sections" json:"sections"`
	index    map[Section]int
}

var validKinds = map[FieldKind]bool{
	KindString: true, KindNumber: true, KindBool: true, KindHTML: true,
	KindList: true, KindMediaList: true, KindKeyedList: true, KindMap: true,
}

// LoadSchema разбирает YAML-описание схемы
func LoadSchema(data []byte) (*Schema, error) {
	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if err := schema.build(); err != nil {
		return nil, err
	}
	return &schema, nil
}

// DefaultSchema схема формы товара, встроенная в бинарник
func DefaultSchema() *Schema {
	schema, err := LoadSchema(productSchemaYAML)
	if err != nil {
		panic(err)
	}
	return schema
}

func (s *Schema) build() error {
	if len(s.Sections) == 0 {
		return errors.New("schema has no sections")
	}
	s.index = make(map[Section]int, len(s.Sections))
	for i, section := range s.Sections {
		if section.Name == "" {
			return fmt.Errorf("section #%d has no name", i)
		}
		if _, dup := s.index[section.Name]; dup {
			return fmt.Errorf("duplicate section %q", section.Name)
		}
		for _, f := range section.Fields {
			if !validKinds[f.Kind] {
				return fmt.Errorf("field %s.%s has unknown kind %q", section.Name, f.Name, f.Kind)
			}
		}
		s.index[section.Name] = i
	}
	return nil
}

// Section возвращает описание секции по имени
func (s *Schema) Section(name Section) (*SectionSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return &s.Sections[i], true
}

// Field возвращает описание поля секции
func (s *Schema) Field(section Section, field string) (FieldSpec, bool) {
	spec, ok := s.Section(section)
	if !ok {
		return FieldSpec{}, false
	}
	return spec.Field(field)
}

// Names возвращает имена секций в порядке вкладок
func (s *Schema) Names() []Section {
	names := make([]Section, len(s.Sections))
	for i, section := range s.Sections {
		names[i] = section.Name
	}
	return names
}

// First первая вкладка формы
func (s *Schema) First() Section {
	return s.Sections[0].Name
}
