package audit

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"

	"github.com/openwaitlist/waitlist/pkg/config"
)

// KafkaSink publishes audit events to a Kafka topic, keyed by event type so
// that consumers see per-type ordering.
type KafkaSink struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaSink builds a sink from the audit configuration.
func NewKafkaSink(cfg config.KafkaAudit) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka audit sink requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka audit sink requires a topic")
	}

	transport := &kafka.Transport{}
	if cfg.TLS {
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.SASLUser != "" {
		transport.SASL = plain.Mechanism{Username: cfg.SASLUser, Password: cfg.SASLPassword}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        cfg.Async,
		BatchTimeout: time.Second,
		Transport:    transport,
	}

	return &KafkaSink{writer: writer, topic: cfg.Topic}, nil
}

func (s *KafkaSink) Write(ctx context.Context, event *Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Type),
		Value: value,
		Time:  event.Timestamp,
	})
}

func (s *KafkaSink) Close() error { return s.writer.Close() }

func (s *KafkaSink) Name() string { return "kafka:" + s.topic }
