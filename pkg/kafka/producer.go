package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bloom-search/pkg/config"
	"github.com/segmentio/kafka-go"
)

// Event is one JSON message. Events sharing a Key land on the same
// partition and keep their order.
type Event struct {
	Key     string
	Value   any
	Headers map[string]string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewProducer writes synchronously with full acknowledgement. Batches are
// LZ4 compressed since document text compresses well.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchBytes:   16 << 20,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Lz4,
	}
	return newProducer(w, topic)
}

func newProducer(w messageWriter, topic string) *Producer {
	return &Producer{
		writer: w,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish encodes events and writes them in one call. Nothing is written
// if any event fails to encode.
func (p *Producer) Publish(ctx context.Context, events ...Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	size := 0
	for _, ev := range events {
		msg, err := encode(ev)
		if err != nil {
			return err
		}
		size += len(msg.Value)
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("writing %d messages: %w", len(msgs), err)
	}
	p.logger.Debug("published", "messages", len(msgs), "bytes", size)
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func encode(ev Event) (kafka.Message, error) {
	value, err := json.Marshal(ev.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding event %q: %w", ev.Key, err)
	}
	msg := kafka.Message{Key: []byte(ev.Key), Value: value}
	msg.Headers = append(msg.Headers, kafka.Header{Key: "content-type", Value: []byte("application/json")})
	for k, v := range ev.Headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return msg, nil
}
