package models

import "time"

// EventType тип события редактора
type EventType string

const (
	EventSectionSaved     EventType = "section_saved"
	EventChangesDiscarded EventType = "changes_discarded"
	EventRecordReloaded   EventType = "record_reloaded"
)

// EditorEvent событие, публикуемое в брокер сообщений
type EditorEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	SessionID  string    `json:"session_id"`
	ShopID     string    `json:"shop_id"`
	RecordID   string    `json:"record_id"`
	Section    Section   `json:"section,omitempty"`
	ItemID     string    `json:"item_id,omitempty"`
	Fields     Fields    `json:"fields,omitempty"`
	Version    string    `json:"version,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AuditEntry запись журнала изменений товара
type AuditEntry struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	ShopID     string    `json:"shop_id"`
	RecordID   string    `json:"record_id"`
	SessionID  string    `json:"session_id"`
	Section    Section   `json:"section,omitempty"`
	ItemID     string    `json:"item_id,omitempty"`
	Fields     Fields    `json:"fields,omitempty"`
	Version    string    `json:"version,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewAuditEntry создает запись журнала из события
func NewAuditEntry(id string, event *EditorEvent, recordedAt time.Time) *AuditEntry {
	return &AuditEntry{
		ID:         id,
		EventID:    event.ID,
		Type:       event.Type,
		ShopID:     event.ShopID,
		RecordID:   event.RecordID,
		SessionID:  event.SessionID,
		Section:    event.Section,
		ItemID:     event.ItemID,
		Fields:     event.Fields,
		Version:    event.Version,
		OccurredAt: event.OccurredAt,
		RecordedAt: recordedAt,
	}
}
