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

// Package redissink delivers slogkafka messages to a Redis stream. XADD
// waits for the server, so every sink sends from a slogkafkaasync queue and
// Send itself never blocks on the network.
package redissink

import (
	"context"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pjscruggs/slogkafka"
	"github.com/pjscruggs/slogkafka/internal/diag"
	"github.com/pjscruggs/slogkafka/slogkafkaasync"
)

const (
	// MetricsSinkName labels this sink's messages in slogkafka.Metrics.
	MetricsSinkName = "redis"

	// Stream entry fields.
	FieldKey      = "key"
	FieldValue    = "value"
	FieldProducer = "producer"
	HeaderPrefix  = "h."

	defaultSendTimeout = 5 * time.Second
)

// StreamAdder is the subset of redis.Cmdable the sink uses. *redis.Client,
// *redis.ClusterClient and *redis.Ring satisfy it.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// isNilClient also catches a nil pointer stored in the interface, such as a
// (*redis.Client)(nil) that was never initialized.
func isNilClient(client StreamAdder) bool {
	if client == nil {
		return true
	}
	v := reflect.ValueOf(client)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Func, reflect.Slice, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

// Option customizes a Sink.
type Option func(*sinkOptions)

type sinkOptions struct {
	maxLen         int64
	sendTimeout    time.Duration
	valueSer       string
	keySer         string
	internalLogger *slog.Logger
	metrics        *slogkafka.Metrics
	asyncOpts      []slogkafkaasync.Option
}

// WithMaxLen trims the stream to roughly n entries on every add.
func WithMaxLen(n int64) Option {
	return func(o *sinkOptions) {
		o.maxLen = n
	}
}

// WithSendTimeout bounds each XADD. Defaults to five seconds.
func WithSendTimeout(d time.Duration) Option {
	return func(o *sinkOptions) {
		o.sendTimeout = d
	}
}

// WithSerializers selects key and value serializers by identifier.
func WithSerializers(key, value string) Option {
	return func(o *sinkOptions) {
		o.keySer = key
		o.valueSer = value
	}
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

// WithAsyncOptions tunes the queue in front of the stream writer.
func WithAsyncOptions(opts ...slogkafkaasync.Option) Option {
	return func(o *sinkOptions) {
		o.asyncOpts = append(o.asyncOpts, opts...)
	}
}

// Sink appends messages to a Redis stream from a background queue. The
// Redis client stays owned by the caller; Close does not close it.
type Sink struct {
	queue  slogkafka.Sink
	writer *streamWriter
}

// New returns a Sink writing to stream through client.
func New(client StreamAdder, stream string, opts ...Option) (*Sink, error) {
	if isNilClient(client) {
		return nil, &slogkafka.ConfigurationError{Field: "Client", Reason: "a redis client is required"}
	}
	stream = strings.TrimSpace(stream)
	if stream == "" {
		return nil, &slogkafka.ConfigurationError{Field: "Stream", Reason: "stream name is required"}
	}

	o := &sinkOptions{sendTimeout: defaultSendTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	keySer, err := slogkafka.LookupSerializer(o.keySer)
	if err != nil {
		return nil, err
	}
	valueSer, err := slogkafka.LookupSerializer(o.valueSer)
	if err != nil {
		return nil, err
	}

	w := &streamWriter{
		client:      client,
		stream:      stream,
		maxLen:      o.maxLen,
		sendTimeout: o.sendTimeout,
		producer:    slogkafka.ClientIDPrefix + "-" + uuid.NewString(),
		keySer:      keySer,
		valueSer:    valueSer,
		metrics:     o.metrics,
		diag:        diag.New(o.internalLogger, diag.DefaultInterval, diag.DefaultBurst),
	}

	asyncOpts := append([]slogkafkaasync.Option{
		slogkafkaasync.WithMetrics(o.metrics),
	}, o.asyncOpts...)
	asyncOpts = append(asyncOpts, slogkafkaasync.WithEnabled(true))

	return &Sink{
		queue:  slogkafkaasync.Wrap(w, asyncOpts...),
		writer: w,
	}, nil
}

// Send queues msg for the stream.
func (s *Sink) Send(ctx context.Context, msg slogkafka.Message) {
	s.queue.Send(ctx, msg)
}

// Close drains the queue.
func (s *Sink) Close() error {
	return s.queue.Close()
}

// Producer returns the id written to the producer field of every entry.
func (s *Sink) Producer() string {
	return s.writer.producer
}

// streamWriter performs the blocking XADD calls.
type streamWriter struct {
	client      StreamAdder
	stream      string
	maxLen      int64
	sendTimeout time.Duration
	producer    string
	keySer      slogkafka.Serializer
	valueSer    slogkafka.Serializer
	metrics     *slogkafka.Metrics
	diag        *diag.Reporter
}

// Send implements slogkafka.Sink.
func (w *streamWriter) Send(ctx context.Context, msg slogkafka.Message) {
	values, err := w.entry(msg)
	if err != nil {
		w.metrics.SinkResult(MetricsSinkName, slogkafka.ResultDropped, 1)
		w.diag.Report(slog.LevelWarn, "redissink: dropped message after serialization error",
			slog.String("stream", w.stream), slog.Any("error", err))
		return
	}

	if w.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.sendTimeout)
		defer cancel()
	}

	args := &redis.XAddArgs{Stream: w.stream, Values: values}
	if w.maxLen > 0 {
		args.MaxLen = w.maxLen
		args.Approx = true
	}
	if err := w.client.XAdd(ctx, args).Err(); err != nil {
		w.metrics.SinkResult(MetricsSinkName, slogkafka.ResultFailed, 1)
		w.diag.Report(slog.LevelWarn, "redissink: XADD failed",
			slog.String("stream", w.stream), slog.Any("error", err))
		return
	}
	w.metrics.SinkResult(MetricsSinkName, slogkafka.ResultSent, 1)
}

// Close implements slogkafka.Sink. The client is not closed.
func (w *streamWriter) Close() error { return nil }

// entry builds the ordered field list for one stream entry.
func (w *streamWriter) entry(msg slogkafka.Message) ([]any, error) {
	value, err := w.valueSer.Serialize(msg.Value)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, 6+2*len(msg.Headers))
	if msg.Key != nil {
		key, err := w.keySer.Serialize(msg.Key)
		if err != nil {
			return nil, err
		}
		values = append(values, FieldKey, string(key))
	}
	values = append(values, FieldValue, string(value), FieldProducer, w.producer)
	for _, name := range slices.Sorted(maps.Keys(msg.Headers)) {
		values = append(values, HeaderPrefix+name, msg.Headers[name])
	}
	return values, nil
}
