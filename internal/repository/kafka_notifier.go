package repository

import (
	"context"
	"fmt"

	"OrdreBook/internal/domain/models"
	domrepo "OrdreBook/internal/domain/repository"
	pkgkafka "OrdreBook/pkg/kafka"
	"OrdreBook/pkg/logger"
)

// KafkaNotifier publishes notifications keyed by symbol. It also ships the
// logger's aggregated error batches.
type KafkaNotifier struct {
	producer *pkgkafka.Producer
	topic    string
}

var (
	_ domrepo.Notifier = (*KafkaNotifier)(nil)
	_ logger.Publisher = (*KafkaNotifier)(nil)
)

func NewKafkaNotifier(producer *pkgkafka.Producer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, note models.Notification) error {
	if err := n.producer.Publish(ctx, n.topic, []byte(note.Symbol), note); err != nil {
		return fmt.Errorf("publish %s notification: %w", note.Kind, err)
	}
	return nil
}

func (n *KafkaNotifier) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return n.producer.Publish(ctx, topic, nil, payload)
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}

// LogNotifier writes notifications to the log. Used when Kafka is disabled.
type LogNotifier struct {
	l *logger.Logger
}

func NewLogNotifier(l *logger.Logger) *LogNotifier {
	return &LogNotifier{l: l.With(logger.String("component", "notifier"))}
}

func (n *LogNotifier) Notify(_ context.Context, note models.Notification) error {
	n.l.Info(note.Text,
		logger.String("kind", note.Kind),
		logger.String("symbol", note.Symbol),
	)
	return nil
}
