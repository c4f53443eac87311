package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
)

// DefaultEditorEventsTopic тема событий редактора по умолчанию
const DefaultEditorEventsTopic = "editor.events"

// Заголовки сообщений с событиями редактора
const (
	HeaderEventType = "event_type"
	HeaderShopID    = "shop_id"
	HeaderMessageID = "message_id"
	HeaderTimestamp = "timestamp"
)

// EncodeEditorEvent упаковывает событие в сообщение; ключом служит ID записи,
// чтобы события одного товара попадали в одну партицию
func EncodeEditorEvent(topic string, event *models.EditorEvent) (*interfaces.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode editor event: %w", err)
	}
	return &interfaces.Message{
		ID:    event.ID,
		Topic: topic,
		Key:   event.RecordID,
		Value: payload,
		Headers: map[string]string{
			HeaderEventType: string(event.Type),
			HeaderShopID:    event.ShopID,
		},
		ShopID:      event.ShopID,
		PublishedAt: event.OccurredAt,
	}, nil
}

// DecodeEditorEvent извлекает событие из сообщения
func DecodeEditorEvent(msg *interfaces.Message) (*models.EditorEvent, error) {
	var event models.EditorEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to decode editor event: %w", err)
	}
	if event.ID == "" {
		event.ID = msg.ID
	}
	if event.ID == "" || event.RecordID == "" {
		return nil, fmt.Errorf("editor event is missing id or record id")
	}
	return &event, nil
}
