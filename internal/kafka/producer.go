package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"ticketing/internal/models"
)

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

// PublishNotification streams the notification to Kafka keyed by user so
// per-user ordering is preserved.
func (p *Producer) PublishNotification(notification models.Notification) error {
	msgBytes, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(notification.UserID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
