package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"

	"hama-scanner/internal/model"
)

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the signal topic producer.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// KafkaSink publishes each signal as JSON keyed by symbol, so one symbol's
// signals stay ordered within a partition.
type KafkaSink struct {
	w     messageWriter
	topic string
}

// NewKafkaSink creates a synchronous producer for cfg.Topic.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaSink{w: w, topic: cfg.Topic}, nil
}

func (k *KafkaSink) Name() string { return "kafka" }

func (k *KafkaSink) Notify(ctx context.Context, sig model.Signal) error {
	value, err := sonic.Marshal(sig)
	if err != nil {
		return fmt.Errorf("kafka: marshal: %w", err)
	}
	msg := kafka.Message{
		Topic: k.topic,
		Key:   []byte(sig.Symbol),
		Value: value,
		Time:  sig.Timestamp,
		Headers: []kafka.Header{
			{Key: "signal_id", Value: []byte(sig.ID)},
			{Key: "direction", Value: []byte(sig.Direction)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", sig.Symbol, err)
	}
	return nil
}

// Close flushes and closes the producer.
func (k *KafkaSink) Close() error {
	return k.w.Close()
}
