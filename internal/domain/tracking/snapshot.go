package tracking

import (
	"time"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
)

// Snapshot неизменяемый снимок последнего сохраненного состояния записи.
// Снимок никогда не изменяется на месте, только заменяется целиком.
type Snapshot struct {
	recordID   string
	version    string
	sections   map[models.Section]models.Fields
	capturedAt time.Time
}

// RecordID идентификатор записи снимка
func (s *Snapshot) RecordID() string { return s.recordID }

// Version версия записи на сервере на момент снимка
func (s *Snapshot) Version() string { return s.version }

// CapturedAt время создания снимка
func (s *Snapshot) CapturedAt() time.Time { return s.capturedAt }

// Fields возвращает копию полей секции
func (s *Snapshot) Fields(section models.Section) models.Fields {
	fields := s.sections[section].Clone()
	if fields == nil {
		fields = models.Fields{}
	}
	return fields
}

// Value возвращает копию значения поля
func (s *Snapshot) Value(section models.Section, field string) any {
	return models.CloneValue(s.sections[section][field])
}

// Record восстанавливает запись из снимка
func (s *Snapshot) Record() *models.Record {
	record := &models.Record{
		ID:       s.recordID,
		Version:  s.version,
		Sections: make(map[models.Section]models.Fields, len(s.sections)),
	}
	for name := range s.sections {
		record.Sections[name] = s.Fields(name)
	}
	return record
}

// with возвращает новый снимок, в котором поля секции заменены на fields.
// Остальные секции разделяются со старым снимком, поскольку оба неизменяемы.
func (s *Snapshot) with(section models.Section, fields models.Fields, version string, at time.Time) *Snapshot {
	next := &Snapshot{
		recordID:   s.recordID,
		version:    version,
		sections:   make(map[models.Section]models.Fields, len(s.sections)),
		capturedAt: at,
	}
	for name, f := range s.sections {
		next.sections[name] = f
	}
	merged := s.sections[section].Clone()
	if merged == nil {
		merged = models.Fields{}
	}
	for name, value := range fields {
		if value == nil {
			delete(merged, name)
			continue
		}
		merged[name] = models.CloneValue(value)
	}
	next.sections[section] = merged
	return next
}
