// Package worker обрабатывает события редактора из брокера сообщений.
package worker

import (
	"context"
	"time"

	"github.com/athebyme/gomarket-admin/internal/adapters/messaging"
	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/internal/metrics"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/google/uuid"
)

// AuditWriter запись в журнал изменений
type AuditWriter interface {
	SaveEntry(ctx context.Context, entry *models.AuditEntry) error
}

// AuditRecorder переносит события редактора в журнал изменений
type AuditRecorder struct {
	store  AuditWriter
	logger interfaces.LoggerPort
	now    func() time.Time
}

// NewAuditRecorder создает обработчик событий журнала
func NewAuditRecorder(store AuditWriter, logger interfaces.LoggerPort) *AuditRecorder {
	return &AuditRecorder{store: store, logger: logger, now: time.Now}
}

// Handle обрабатывает одно сообщение. Нераспознанные сообщения пропускаются,
// ошибка хранилища возвращается, чтобы смещение не фиксировалось.
func (a *AuditRecorder) Handle(ctx context.Context, msg *interfaces.Message) error {
	start := a.now()

	event, err := messaging.DecodeEditorEvent(msg)
	if err != nil {
		a.logger.WarnWithContext(ctx, "Некорректное событие редактора пропущено",
			interfaces.LogField{Key: "message_id", Value: msg.ID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		metrics.ProcessedMessages.WithLabelValues(msg.Topic, "invalid").Inc()
		return nil
	}

	switch event.Type {
	case models.EventSectionSaved, models.EventChangesDiscarded, models.EventRecordReloaded:
	default:
		a.logger.WarnWithContext(ctx, "Неизвестный тип события",
			interfaces.LogField{Key: "event_type", Value: string(event.Type)},
		)
		metrics.ProcessedMessages.WithLabelValues(msg.Topic, "unknown").Inc()
		return nil
	}

	ctx = context.WithValue(ctx, interfaces.ShopIDKey, event.ShopID)
	entry := models.NewAuditEntry(uuid.New().String(), event, a.now())
	if err := a.store.SaveEntry(ctx, entry); err != nil {
		a.logger.ErrorWithContext(ctx, "Ошибка записи в журнал",
			interfaces.LogField{Key: "event_id", Value: event.ID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		metrics.ProcessedMessages.WithLabelValues(msg.Topic, "error").Inc()
		return err
	}

	duration := a.now().Sub(start).Seconds()
	metrics.ProcessingDuration.WithLabelValues(msg.Topic).Observe(duration)
	metrics.ProcessedMessages.WithLabelValues(msg.Topic, "success").Inc()

	a.logger.DebugWithContext(ctx, "Событие записано в журнал",
		interfaces.LogField{Key: "event_id", Value: event.ID},
		interfaces.LogField{Key: "event_type", Value: string(event.Type)},
		interfaces.LogField{Key: "record_id", Value: event.RecordID},
	)
	return nil
}
