// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package kafkasink delivers slogkafka messages to a Kafka topic through one
// long-lived asynchronous kafka-go writer.
package kafkasink

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/pjscruggs/slogkafka"
	"github.com/pjscruggs/slogkafka/internal/diag"
)

// MetricsSinkName labels this sink's messages in slogkafka.Metrics.
const MetricsSinkName = "kafka"

// messageWriter is the subset of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Option customizes a Sink.
type Option func(*sinkOptions)

type sinkOptions struct {
	writer         messageWriter
	internalLogger *slog.Logger
	metrics        *slogkafka.Metrics
	balancer       kafka.Balancer
	clientID       string
}

// WithInternalLogger receives delivery diagnostics.
func WithInternalLogger(logger *slog.Logger) Option {
	return func(o *sinkOptions) {
		o.internalLogger = logger
	}
}

// WithMetrics counts sent, failed and dropped messages.
func WithMetrics(m *slogkafka.Metrics) Option {
	return func(o *sinkOptions) {
		o.metrics = m
	}
}

// WithBalancer replaces the default hash balancer.
func WithBalancer(b kafka.Balancer) Option {
	return func(o *sinkOptions) {
		o.balancer = b
	}
}

// WithClientID replaces the generated "slogkafka-<uuid>" client id.
func WithClientID(id string) Option {
	return func(o *sinkOptions) {
		o.clientID = id
	}
}

// withWriter replaces the kafka writer, for tests.
func withWriter(w messageWriter) Option {
	return func(o *sinkOptions) {
		o.writer = w
	}
}

// Sink publishes to a single topic. Send never waits for the broker: the
// writer batches messages in the background and reports delivery results to
// its completion callback.
type Sink struct {
	writer   messageWriter
	topic    string
	clientID string
	keySer   slogkafka.Serializer
	valueSer slogkafka.Serializer
	metrics  *slogkafka.Metrics
	diag     *diag.Reporter

	closeOnce sync.Once
	closeErr  error
}

// New validates cfg and creates the writer. The broker is not contacted
// until the first batch is flushed.
func New(cfg slogkafka.Config, opts ...Option) (*Sink, error) {
	o := &sinkOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return nil, &slogkafka.ConfigurationError{Field: "BrokerURL", Reason: "at least one broker address is required"}
	}
	topic := strings.TrimSpace(cfg.TopicName)
	if topic == "" {
		return nil, &slogkafka.ConfigurationError{Field: "TopicName", Reason: "topic name is required"}
	}
	keySer, err := slogkafka.LookupSerializer(cfg.KeySerializer)
	if err != nil {
		return nil, err
	}
	valueSer, err := slogkafka.LookupSerializer(cfg.ValueSerializer)
	if err != nil {
		return nil, err
	}
	acks, err := ParseAcks(cfg.Acks)
	if err != nil {
		return nil, err
	}
	compression, err := ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	s := &Sink{
		topic:    topic,
		clientID: o.clientID,
		keySer:   keySer,
		valueSer: valueSer,
		metrics:  o.metrics,
		diag:     diag.New(o.internalLogger, diag.DefaultInterval, diag.DefaultBurst),
	}
	if s.clientID == "" {
		s.clientID = slogkafka.ClientIDPrefix + "-" + uuid.NewString()
	}

	if o.writer != nil {
		s.writer = o.writer
		return s, nil
	}

	balancer := o.balancer
	if balancer == nil {
		balancer = &kafka.Hash{}
	}
	s.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     balancer,
		MaxAttempts:  cfg.MaxAttempts,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: acks,
		Compression:  compression,
		Async:        true,
		Completion:   s.completion,
		ErrorLogger:  kafka.LoggerFunc(s.logWriterError),
		Transport:    &kafka.Transport{ClientID: s.clientID},
	}
	return s, nil
}

// NewHandler builds a slogkafka.Handler publishing to the Kafka topic named
// in cfg. It returns slogkafka.ErrDisabled when cfg.Enabled is false.
// Handler options are applied after those derived from cfg. Use New and
// slogkafka.NewHandler directly to customize the sink.
func NewHandler(cfg slogkafka.Config, opts ...slogkafka.Option) (*slogkafka.Handler, error) {
	if !cfg.Enabled {
		return nil, slogkafka.ErrDisabled
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sink, err := New(cfg)
	if err != nil {
		return nil, err
	}
	handlerOpts := append([]slogkafka.Option{slogkafka.WithConfig(cfg)}, opts...)
	h, err := slogkafka.NewHandler(sink, handlerOpts...)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	return h, nil
}

// ClientID returns the id announced to brokers.
func (s *Sink) ClientID() string {
	return s.clientID
}

// Send serializes msg and hands it to the writer. Serialization failures
// drop the message.
func (s *Sink) Send(ctx context.Context, msg slogkafka.Message) {
	km, err := s.toKafka(msg)
	if err != nil {
		s.metrics.SinkResult(MetricsSinkName, slogkafka.ResultDropped, 1)
		s.diag.Report(slog.LevelWarn, "kafkasink: dropped message after serialization error",
			slog.String("topic", s.topic), slog.Any("error", err))
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.writer.WriteMessages(context.WithoutCancel(ctx), km); err != nil {
		s.metrics.SinkResult(MetricsSinkName, slogkafka.ResultFailed, 1)
		s.diag.Report(slog.LevelWarn, "kafkasink: write rejected",
			slog.String("topic", s.topic), slog.Any("error", err))
	}
}

// Close flushes pending batches and closes the writer.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.writer.Close()
	})
	return s.closeErr
}

// toKafka converts msg using the configured serializers. Headers are written
// in name order.
func (s *Sink) toKafka(msg slogkafka.Message) (kafka.Message, error) {
	var (
		key []byte
		err error
	)
	if msg.Key != nil {
		if key, err = s.keySer.Serialize(msg.Key); err != nil {
			return kafka.Message{}, err
		}
	}
	value, err := s.valueSer.Serialize(msg.Value)
	if err != nil {
		return kafka.Message{}, err
	}

	headers := make([]kafka.Header, 0, len(msg.Headers))
	for _, name := range slices.Sorted(maps.Keys(msg.Headers)) {
		headers = append(headers, kafka.Header{Key: name, Value: []byte(msg.Headers[name])})
	}

	ts := msg.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return kafka.Message{Key: key, Value: value, Headers: headers, Time: ts}, nil
}

// completion receives asynchronous delivery results from the writer.
func (s *Sink) completion(messages []kafka.Message, err error) {
	if err != nil {
		s.metrics.SinkResult(MetricsSinkName, slogkafka.ResultFailed, len(messages))
		s.diag.Report(slog.LevelWarn, "kafkasink: delivery failed",
			slog.String("topic", s.topic),
			slog.Int("messages", len(messages)),
			slog.Any("error", err))
		return
	}
	s.metrics.SinkResult(MetricsSinkName, slogkafka.ResultSent, len(messages))
}

// logWriterError forwards kafka-go's own error log lines.
func (s *Sink) logWriterError(msg string, args ...any) {
	s.diag.Report(slog.LevelWarn, "kafkasink: writer error",
		slog.String("topic", s.topic),
		slog.String("detail", formatLog(msg, args...)))
}
