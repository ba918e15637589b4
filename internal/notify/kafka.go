package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// KafkaSender publishes alerts to a topic, keyed by routing tag, for
// downstream fan-out.
type KafkaSender struct {
	writer *kafkago.Writer
	clock  clockwork.Clock
}

type alertMessage struct {
	Tag    string    `json:"tag"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

func NewKafkaSender(brokers []string, topic string, clock clockwork.Clock) *KafkaSender {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &KafkaSender{writer: w, clock: clock}
}

func (k *KafkaSender) Send(ctx context.Context, text, tag string) error {
	msg, err := newAlertMessage(text, tag, k.clock.Now())
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

func (k *KafkaSender) Close() error {
	return k.writer.Close()
}

func newAlertMessage(text, tag string, now time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(alertMessage{Tag: tag, Text: text, SentAt: now.UTC()})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(tag),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "sent_at", Value: []byte(now.UTC().Format(time.RFC3339))},
		},
	}, nil
}
