package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
)

// KafkaConfig параметры подключения к Kafka
type KafkaConfig struct {
	Brokers     []string
	GroupID     string
	ClientID    string
	PollTimeout time.Duration
}

// KafkaMessaging реализация MessagingPort с использованием Kafka
type KafkaMessaging struct {
	producer       *kafka.Producer
	consumers      map[string]*kafka.Consumer
	consumersMutex sync.Mutex
	cfg            KafkaConfig
	logger         interfaces.LoggerPort
	done           chan struct{}
}

// NewKafkaMessaging создает новый экземпляр KafkaMessaging
func NewKafkaMessaging(cfg KafkaConfig, logger interfaces.LoggerPort) (*KafkaMessaging, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 100 * time.Millisecond
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "gomarket-admin"
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":            strings.Join(cfg.Brokers, ","),
		"client.id":                    cfg.ClientID + "-producer",
		"acks":                         "all",
		"retries":                      5,
		"retry.backoff.ms":             500,
		"compression.type":             "snappy",
		"linger.ms":                    10,
		"message.max.bytes":            1000000,
		"queue.buffering.max.messages": 100000,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka producer: %w", err)
	}

	k := &KafkaMessaging{
		producer:  producer,
		consumers: make(map[string]*kafka.Consumer),
		cfg:       cfg,
		logger:    logger,
		done:      make(chan struct{}),
	}
	go k.watchDeliveries()
	return k, nil
}

// watchDeliveries логирует сообщения, которые не удалось доставить
func (k *KafkaMessaging) watchDeliveries() {
	for {
		select {
		case <-k.done:
			return
		case ev, ok := <-k.producer.Events():
			if !ok {
				return
			}
			if m, isMsg := ev.(*kafka.Message); isMsg && m.TopicPartition.Error != nil {
				k.logger.Error("Сообщение не доставлено в Kafka",
					interfaces.LogField{Key: "topic", Value: *m.TopicPartition.Topic},
					interfaces.LogField{Key: "error", Value: m.TopicPartition.Error.Error()},
				)
			}
		}
	}
}

// messageToKafkaMessage преобразует Message в kafka.Message
func messageToKafkaMessage(msg *interfaces.Message) *kafka.Message {
	topic := msg.Topic
	kafkaHeaders := make([]kafka.Header, 0, len(msg.Headers)+2)
	for k, v := range msg.Headers {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: k, Value: []byte(v)})
	}

	id := msg.ID
	if id == "" {
		id = uuid.New().String()
	}
	publishedAt := msg.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = time.Now()
	}
	kafkaHeaders = append(kafkaHeaders,
		kafka.Header{Key: HeaderMessageID, Value: []byte(id)},
		kafka.Header{Key: HeaderTimestamp, Value: []byte(strconv.FormatInt(publishedAt.UnixNano(), 10))},
	)

	var keyBytes []byte
	if msg.Key != "" {
		keyBytes = []byte(msg.Key)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          msg.Value,
		Key:            keyBytes,
		Headers:        kafkaHeaders,
	}
}

// kafkaMessageToMessage преобразует kafka.Message в Message
func kafkaMessageToMessage(msg *kafka.Message) *interfaces.Message {
	headers := make(map[string]string, len(msg.Headers))
	for _, header := range msg.Headers {
		headers[header.Key] = string(header.Value)
	}

	publishedAt := msg.Timestamp
	if ts, err := strconv.ParseInt(headers[HeaderTimestamp], 10, 64); err == nil {
		publishedAt = time.Unix(0, ts)
	}

	var topic string
	if msg.TopicPartition.Topic != nil {
		topic = *msg.TopicPartition.Topic
	}

	return &interfaces.Message{
		ID:          headers[HeaderMessageID],
		Topic:       topic,
		Key:         string(msg.Key),
		Value:       msg.Value,
		Headers:     headers,
		ShopID:      headers[HeaderShopID],
		PublishedAt: publishedAt,
	}
}

// Publish публикует сообщение в указанную тему
func (k *KafkaMessaging) Publish(ctx context.Context, topic string, message []byte) error {
	return k.PublishMessage(ctx, &interfaces.Message{Topic: topic, Value: message})
}

// PublishMessage публикует сообщение с ключом и заголовками
func (k *KafkaMessaging) PublishMessage(ctx context.Context, msg *interfaces.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := k.producer.Produce(messageToKafkaMessage(msg), nil); err != nil {
		return fmt.Errorf("ошибка публикации в топик %s: %w", msg.Topic, err)
	}
	return nil
}

// Subscribe подписывается на тему. Смещение фиксируется только после
// успешной обработки сообщения.
func (k *KafkaMessaging) Subscribe(ctx context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	handlerID := uuid.New().String()

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":     strings.Join(k.cfg.Brokers, ","),
		"group.id":              k.cfg.GroupID,
		"client.id":             k.cfg.ClientID + "-consumer",
		"auto.offset.reset":     "earliest",
		"enable.auto.commit":    false,
		"session.timeout.ms":    30000,
		"max.poll.interval.ms":  300000,
		"heartbeat.interval.ms": 3000,
		"fetch.wait.max.ms":     500,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka consumer: %w", err)
	}

	if err := consumer.Subscribe(topic, nil); err != nil {
		_ = consumer.Close()
		return nil, fmt.Errorf("ошибка подписки на топик %s: %w", topic, err)
	}

	k.consumersMutex.Lock()
	k.consumers[handlerID] = consumer
	k.consumersMutex.Unlock()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		k.consumeMessages(ctx, consumer, handler)
	}()

	unsubscribe := func() error {
		k.consumersMutex.Lock()
		c, ok := k.consumers[handlerID]
		delete(k.consumers, handlerID)
		k.consumersMutex.Unlock()
		if !ok {
			return nil
		}
		<-stopped
		return c.Close()
	}

	return unsubscribe, nil
}

// consumeMessages читает сообщения, пока не отменен контекст или не закрыта подписка
func (k *KafkaMessaging) consumeMessages(ctx context.Context, consumer *kafka.Consumer, handler interfaces.MessageHandler) {
	pollMs := int(k.cfg.PollTimeout.Milliseconds())
	for {
		select {
		case <-ctx.Done():
			return
		case <-k.done:
			return
		default:
		}

		ev := consumer.Poll(pollMs)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			msg := kafkaMessageToMessage(e)
			if err := handler(ctx, msg); err != nil {
				k.logger.ErrorWithContext(ctx, "Ошибка обработки сообщения",
					interfaces.LogField{Key: "topic", Value: msg.Topic},
					interfaces.LogField{Key: "message_id", Value: msg.ID},
					interfaces.LogField{Key: "error", Value: err.Error()},
				)
				continue
			}
			if _, err := consumer.CommitMessage(e); err != nil {
				k.logger.WarnWithContext(ctx, "Не удалось зафиксировать смещение",
					interfaces.LogField{Key: "topic", Value: msg.Topic},
					interfaces.LogField{Key: "error", Value: err.Error()},
				)
			}

		case kafka.Error:
			k.logger.ErrorWithContext(ctx, "Ошибка Kafka consumer",
				interfaces.LogField{Key: "code", Value: e.Code().String()},
				interfaces.LogField{Key: "error", Value: e.Error()},
			)
			if e.Code() == kafka.ErrAllBrokersDown {
				return
			}
		}
	}
}

// EnsureTopic создает тему, если ее еще нет
func (k *KafkaMessaging) EnsureTopic(ctx context.Context, topic string, partitions, replicationFactor int) error {
	adminClient, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("ошибка создания Kafka admin client: %w", err)
	}
	defer adminClient.Close()

	result, err := adminClient.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replicationFactor,
	}}, kafka.SetAdminOperationTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("ошибка создания топика %s: %w", topic, err)
	}

	for _, r := range result {
		code := r.Error.Code()
		if code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("ошибка создания топика %s: %s", r.Topic, r.Error.String())
		}
	}
	return nil
}

// Close закрывает соединение с системой обмена сообщениями
func (k *KafkaMessaging) Close() error {
	close(k.done)

	k.consumersMutex.Lock()
	for id, consumer := range k.consumers {
		_ = consumer.Close()
		delete(k.consumers, id)
	}
	k.consumersMutex.Unlock()

	k.producer.Flush(15 * 1000)
	k.producer.Close()
	return nil
}
