package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/ignatzorin/campus-trade/internal/models"
)

// NotificationStore сохраняет уведомления для ленты пользователя.
type NotificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// StoreSink пишет событие в таблицу уведомлений.
type StoreSink struct {
	store NotificationStore
}

func NewStoreSink(store NotificationStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Deliver(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Params)
	if err != nil {
		return fmt.Errorf("outbox: marshal params %w", err)
	}

	return s.store.Create(ctx, &models.Notification{
		ID:              event.ID,
		UserID:          event.UserID,
		TemplateID:      event.Template,
		Payload:         payload,
		RelatedEntityID: event.RelatedEntityID,
	})
}

// Broadcaster отправляет сообщение в открытые WebSocket подключения пользователя.
type Broadcaster interface {
	BroadcastToUser(ctx context.Context, userID int64, event string, data any) error
}

// HubSink доставляет событие в реальном времени.
type HubSink struct {
	hub Broadcaster
}

func NewHubSink(hub Broadcaster) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string { return "websocket" }

func (s *HubSink) Deliver(ctx context.Context, event Event) error {
	return s.hub.BroadcastToUser(ctx, event.UserID, "notification", event)
}

// MessageWriter часть *kafka.Writer, нужная приёмнику.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink публикует событие в топик для внешних служб доставки (почта, push).
type KafkaSink struct {
	writer MessageWriter
	topic  string
}

// NewKafkaWriter создаёт writer для списка брокеров.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

func NewKafkaSink(writer MessageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: writer, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

// Deliver использует id пользователя как ключ, чтобы события одного получателя шли по порядку.
func (s *KafkaSink) Deliver(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("outbox: marshal event %w", err)
	}

	return s.writer.WriteMessages(ctx, kafka.Message{
		Topic: s.topic,
		Key:   []byte(strconv.FormatInt(event.UserID, 10)),
		Value: value,
		Time:  event.OccurredAt,
	})
}
