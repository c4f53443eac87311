package messaging

import (
	"context"

	"github.com/athebyme/gomarket-admin/pkg/interfaces"
)

// LogMessaging заменяет брокер, когда Kafka отключена: сообщения только логируются
type LogMessaging struct {
	logger interfaces.LoggerPort
}

// NewLogMessaging создает заглушку брокера сообщений
func NewLogMessaging(logger interfaces.LoggerPort) *LogMessaging {
	return &LogMessaging{logger: logger}
}

func (l *LogMessaging) Publish(ctx context.Context, topic string, message []byte) error {
	return l.PublishMessage(ctx, &interfaces.Message{Topic: topic, Value: message})
}

func (l *LogMessaging) PublishMessage(ctx context.Context, msg *interfaces.Message) error {
	l.logger.DebugWithContext(ctx, "Kafka отключена, событие не опубликовано",
		interfaces.LogField{Key: "topic", Value: msg.Topic},
		interfaces.LogField{Key: "key", Value: msg.Key},
	)
	return nil
}

func (l *LogMessaging) Subscribe(context.Context, string, interfaces.MessageHandler) (func() error, error) {
	return func() error { return nil }, nil
}

func (l *LogMessaging) Close() error { return nil }
