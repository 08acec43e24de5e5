package infra

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is one relayed event as handed to a Publisher.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// KafkaProducer publishes outbox events. When Kafka is disabled it accepts
// and discards every message so the relay still drains the outbox.
type KafkaProducer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafkaProducer builds a producer for a comma-separated broker list.
func NewKafkaProducer(brokers string, enabled bool, logger *slog.Logger) *KafkaProducer {
	addrs := splitBrokers(brokers)
	if !enabled || len(addrs) == 0 {
		logger.Info("kafka disabled, outbox events will be discarded")
		return &KafkaProducer{logger: logger}
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}

	logger.Info("kafka producer ready", "brokers", addrs)
	return &KafkaProducer{writer: w, logger: logger}
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Enabled reports whether messages reach a broker.
func (p *KafkaProducer) Enabled() bool { return p.writer != nil }

// Publish writes msg synchronously. Equal keys hash to the same partition,
// which keeps a result's events in order.
func (p *KafkaProducer) Publish(ctx context.Context, msg Message) error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, toKafka(msg)); err != nil {
		return fmt.Errorf("write to %s: %w", msg.Topic, err)
	}
	return nil
}

func toKafka(msg Message) kafka.Message {
	km := kafka.Message{Topic: msg.Topic, Key: []byte(msg.Key), Value: msg.Value}
	for k, v := range msg.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return km
}

// Close flushes pending writes.
func (p *KafkaProducer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
