package notify

import (
	"context"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
)

// Notifier доставляет уведомления пользователю сессии редактора.
// Доставка не гарантируется и не блокирует вызывающего.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, n models.Notification)
}

// LogNotifier пишет уведомления в лог
type LogNotifier struct {
	logger interfaces.LoggerPort
}

// NewLogNotifier создает LogNotifier
func NewLogNotifier(logger interfaces.LoggerPort) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, sessionID string, n models.Notification) {
	fields := []interface{}{
		interfaces.LogField{Key: "session_id", Value: sessionID},
		interfaces.LogField{Key: "title", Value: n.Title},
		interfaces.LogField{Key: "variant", Value: string(n.Variant)},
	}
	if n.Section != "" {
		fields = append(fields, interfaces.LogField{Key: "section", Value: string(n.Section)})
	}
	if n.Variant == models.VariantDestructive {
		l.logger.WarnWithContext(ctx, "Уведомление об ошибке", fields...)
		return
	}
	l.logger.InfoWithContext(ctx, "Уведомление", fields...)
}

// Multi рассылает уведомление всем получателям
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, sessionID string, n models.Notification) {
	for _, notifier := range m {
		notifier.Notify(ctx, sessionID, n)
	}
}

// CloseSession передает закрытие сессии получателям, которые держат подписки
func (m Multi) CloseSession(sessionID string) {
	for _, notifier := range m {
		if closer, ok := notifier.(interface{ CloseSession(string) }); ok {
			closer.CloseSession(sessionID)
		}
	}
}
