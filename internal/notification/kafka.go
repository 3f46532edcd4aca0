package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/metrics"
)

// Message is the JSON document published for every notification
type Message struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Channels  []string    `json:"channels"`
	Booking   BookingData `json:"booking"`
	CreatedAt time.Time   `json:"created_at"`
	Version   int         `json:"version"`
}

// KafkaNotifier publishes notifications to a Kafka topic consumed by the
// delivery service. Messages are keyed by booking ID so that all
// notifications of a booking stay ordered.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	channels []string
	logger   *zap.Logger
}

// NewKafkaProducer creates a synchronous producer that waits for all in-sync replicas
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "hotelservice"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return producer, nil
}

// NewKafkaNotifier creates a notifier on top of producer
func NewKafkaNotifier(producer sarama.SyncProducer, topic string, channels []string, logger *zap.Logger) *KafkaNotifier {
	if len(channels) == 0 {
		channels = []string{"email"}
	}
	return &KafkaNotifier{
		producer: producer,
		topic:    topic,
		channels: channels,
		logger:   logger,
	}
}

func (k *KafkaNotifier) SendBookingConfirmation(ctx context.Context, data BookingData) (*Result, error) {
	return k.publish(ctx, TypeConfirmation, data)
}

func (k *KafkaNotifier) SendBookingUpdate(ctx context.Context, data BookingData) (*Result, error) {
	return k.publish(ctx, TypeUpdate, data)
}

func (k *KafkaNotifier) SendBookingReminder(ctx context.Context, data BookingData) (*Result, error) {
	return k.publish(ctx, TypeReminder, data)
}

func (k *KafkaNotifier) publish(ctx context.Context, t Type, data BookingData) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg := Message{
		ID:        uuid.NewString(),
		Type:      t,
		Channels:  k.channels,
		Booking:   data,
		CreatedAt: time.Now().UTC(),
		Version:   1,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}

	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(data.BookingID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(t)},
			{Key: []byte("message_id"), Value: []byte(msg.ID)},
		},
	})
	if err != nil {
		metrics.RecordNotification(string(t), "error")
		return nil, fmt.Errorf("failed to publish %s notification: %w", t, err)
	}
	metrics.RecordNotification(string(t), "queued")

	k.logger.Info("Notification published",
		zap.String("type", string(t)),
		zap.String("booking_id", data.BookingID),
		zap.String("message_id", msg.ID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))

	return &Result{
		ID:       msg.ID,
		Status:   StatusQueued,
		Channels: append([]string(nil), k.channels...),
	}, nil
}

// Close closes the underlying producer
func (k *KafkaNotifier) Close() error {
	return k.producer.Close()
}
