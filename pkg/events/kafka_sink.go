/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sipwatch/sipwatch/pkg/metrics"
)

// ErrSinkClosed is returned by Write after Close.
var ErrSinkClosed = errors.New("sink is closed")

// KafkaSinkConfig configures the Kafka event sink.
type KafkaSinkConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string

	// Topic receives one message per event.
	Topic string

	// WriteTimeout bounds a single write. Defaults to 10s.
	WriteTimeout time.Duration
}

// messageWriter is the subset of *kafka.Writer used by the sink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes events to a Kafka topic, keyed by account so that every
// account's events stay ordered within one partition.
type KafkaSink struct {
	writer messageWriter
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

// NewKafkaSink creates a new KafkaSink.
func NewKafkaSink(cfg KafkaSinkConfig, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: false,
	}

	logger.Info("Kafka event sink created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))

	return newKafkaSink(writer, logger), nil
}

func newKafkaSink(w messageWriter, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{writer: w, logger: logger.Named("kafka-events")}
}

// Write publishes the event synchronously.
func (s *KafkaSink) Write(ctx context.Context, event *Event) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSinkClosed
	}

	value, err := json.Marshal(event)
	if err != nil {
		metrics.EventSinkErrors.WithLabelValues(s.Name()).Inc()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Account),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "run-id", Value: []byte(event.RunID)},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		metrics.EventSinkErrors.WithLabelValues(s.Name()).Inc()
		s.logger.Warn("failed to write event to Kafka",
			zap.String("event_id", event.ID),
			zap.String("account", event.Account),
			zap.Error(err))
		return fmt.Errorf("failed to write event to Kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the writer. Calling Close twice is safe.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}

// Name returns "kafka".
func (s *KafkaSink) Name() string {
	return "kafka"
}
