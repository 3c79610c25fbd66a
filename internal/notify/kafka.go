package notify

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes notification messages to a Kafka topic consumed by the
// email worker. Each Enqueue call produces exactly one record; the client is
// configured without application-level retries beyond what a single produce
// performs internally, preserving the at-most-one-enqueue contract.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

var _ Sink = (*KafkaSink)(nil)

// NewKafkaSink connects a producer to the given brokers.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka client")
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

// Enqueue publishes the email as a single JSON record, keyed by the first
// recipient so messages for one address land on one partition.
func (s *KafkaSink) Enqueue(ctx context.Context, email Email) error {
	value, err := json.Marshal(email)
	if err != nil {
		return errors.Wrap(err, "marshal email")
	}

	var key []byte
	if len(email.To) > 0 {
		key = []byte(email.To[0])
	}

	record := &kgo.Record{Topic: s.topic, Key: key, Value: value}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return errors.Wrap(err, "produce notification")
	}
	return nil
}

// Close flushes and shuts down the underlying producer.
func (s *KafkaSink) Close() {
	s.client.Close()
}
