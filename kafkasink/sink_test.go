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

package kafkasink

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"github.com/pjscruggs/slogkafka"
)

// fakeWriter records messages instead of contacting a broker.
type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	ctxs     []context.Context
	err      error
	closed   int
}

// WriteMessages records msgs and returns the configured error.
func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	w.ctxs = append(w.ctxs, ctx)
	return w.err
}

// Close counts calls.
func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
	return nil
}

func testConfig() slogkafka.Config {
	cfg := slogkafka.DefaultConfig()
	cfg.Enabled = true
	cfg.BrokerURL = "localhost:9092"
	cfg.TopicName = "app-logs"
	return cfg
}

func newTestSink(t *testing.T, cfg slogkafka.Config, opts ...Option) (*Sink, *fakeWriter) {
	t.Helper()

	w := &fakeWriter{}
	s, err := New(cfg, append([]Option{withWriter(w)}, opts...)...)
	if err != nil {
		t.Fatalf("New() returned %v, want nil", err)
	}
	return s, w
}

// counterValue reads a counter sample from reg.
func counterValue(t *testing.T, reg *prometheus.Registry, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() returned %v, want nil", err)
	}
	for _, family := range families {
		if family.GetName() != "slogkafka_sink_messages_total" {
			continue
		}
	metrics:
		for _, m := range family.GetMetric() {
			for _, pair := range m.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

// TestSinkSendConvertsMessage checks keys, values, sorted headers and time.
func TestSinkSendConvertsMessage(t *testing.T) {
	t.Parallel()

	s, w := newTestSink(t, testConfig())
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Send(ctx, slogkafka.Message{
		Key:     []byte("trace-1"),
		Value:   []byte("msg=[hello]"),
		Headers: map[string]string{"traceparent": "00-x", "content-type": "text/plain; charset=utf-8"},
		Time:    ts,
	})

	if len(w.messages) != 1 {
		t.Fatalf("writer received %d messages, want 1", len(w.messages))
	}
	got := w.messages[0]
	if string(got.Key) != "trace-1" || string(got.Value) != "msg=[hello]" {
		t.Fatalf("message = %q/%q", got.Key, got.Value)
	}
	want := []kafka.Header{
		{Key: "content-type", Value: []byte("text/plain; charset=utf-8")},
		{Key: "traceparent", Value: []byte("00-x")},
	}
	if diff := cmp.Diff(want, got.Headers); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
	if !got.Time.Equal(ts) {
		t.Fatalf("Time = %v, want %v", got.Time, ts)
	}
	if err := w.ctxs[0].Err(); err != nil {
		t.Fatalf("write context error = %v, want detached context", err)
	}
}

// TestSinkSendNilKeyAndZeroTime leaves the key unset and stamps the time.
func TestSinkSendNilKeyAndZeroTime(t *testing.T) {
	t.Parallel()

	s, w := newTestSink(t, testConfig())
	before := time.Now()
	s.Send(context.Background(), slogkafka.Message{Value: []byte("v")})

	got := w.messages[0]
	if got.Key != nil {
		t.Fatalf("Key = %q, want nil", got.Key)
	}
	if got.Time.Before(before) {
		t.Fatalf("Time = %v, want >= %v", got.Time, before)
	}
}

// TestSinkValueSerializer applies the configured serializer.
func TestSinkValueSerializer(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.ValueSerializer = slogkafka.SerializerJSON
	s, w := newTestSink(t, cfg)
	s.Send(context.Background(), slogkafka.Message{Value: []byte("msg=[x]")})

	if got := string(w.messages[0].Value); got != `"msg=[x]"` {
		t.Fatalf("Value = %q, want JSON string", got)
	}
}

// TestSinkWriteErrorCountsFailure reports synchronous writer rejections.
func TestSinkWriteErrorCountsFailure(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s, w := newTestSink(t, testConfig(), WithMetrics(slogkafka.NewMetrics(reg)))
	w.err = errors.New("writer closed")

	s.Send(context.Background(), slogkafka.Message{Value: []byte("v")})

	if got := counterValue(t, reg, map[string]string{"sink": MetricsSinkName, "result": slogkafka.ResultFailed}); got != 1 {
		t.Fatalf("failed counter = %v, want 1", got)
	}
}

// TestSinkCompletionCountsResults records asynchronous delivery outcomes.
func TestSinkCompletionCountsResults(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s, _ := newTestSink(t, testConfig(), WithMetrics(slogkafka.NewMetrics(reg)))

	s.completion(make([]kafka.Message, 3), nil)
	s.completion(make([]kafka.Message, 2), errors.New("leader not available"))

	if got := counterValue(t, reg, map[string]string{"sink": MetricsSinkName, "result": slogkafka.ResultSent}); got != 3 {
		t.Fatalf("sent counter = %v, want 3", got)
	}
	if got := counterValue(t, reg, map[string]string{"sink": MetricsSinkName, "result": slogkafka.ResultFailed}); got != 2 {
		t.Fatalf("failed counter = %v, want 2", got)
	}
}

// TestSinkCloseOnce closes the writer a single time.
func TestSinkCloseOnce(t *testing.T) {
	t.Parallel()

	s, w := newTestSink(t, testConfig())
	_ = s.Close()
	_ = s.Close()
	if w.closed != 1 {
		t.Fatalf("writer closed %d times, want 1", w.closed)
	}
}

// TestSinkClientID uses the generated prefix unless overridden.
func TestSinkClientID(t *testing.T) {
	t.Parallel()

	s, _ := newTestSink(t, testConfig())
	if !strings.HasPrefix(s.ClientID(), slogkafka.ClientIDPrefix+"-") {
		t.Fatalf("ClientID() = %q, want %s- prefix", s.ClientID(), slogkafka.ClientIDPrefix)
	}
	s, _ = newTestSink(t, testConfig(), WithClientID("billing"))
	if s.ClientID() != "billing" {
		t.Fatalf("ClientID() = %q, want billing", s.ClientID())
	}
}

// TestNewRejectsInvalidConfig fails fast on unusable settings.
func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(*slogkafka.Config)
	}{
		{"no brokers", func(c *slogkafka.Config) { c.BrokerURL = "" }},
		{"no topic", func(c *slogkafka.Config) { c.TopicName = "" }},
		{"bad serializer", func(c *slogkafka.Config) { c.ValueSerializer = "protobuf" }},
		{"bad acks", func(c *slogkafka.Config) { c.Acks = "some" }},
		{"bad compression", func(c *slogkafka.Config) { c.Compression = "brotli" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := New(cfg, withWriter(&fakeWriter{})); !errors.Is(err, slogkafka.ErrConfiguration) {
				t.Fatalf("New() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

// TestParseAcks covers names and numbers.
func TestParseAcks(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]kafka.RequiredAcks{
		"none": kafka.RequireNone,
		"0":    kafka.RequireNone,
		"":     kafka.RequireOne,
		"One":  kafka.RequireOne,
		"all":  kafka.RequireAll,
		"-1":   kafka.RequireAll,
	} {
		got, err := ParseAcks(raw)
		if err != nil || got != want {
			t.Errorf("ParseAcks(%q) = %v, %v, want %v", raw, got, err, want)
		}
	}
}

// TestParseCompression covers the supported codecs.
func TestParseCompression(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]kafka.Compression{
		"":       0,
		"none":   0,
		"gzip":   kafka.Gzip,
		"SNAPPY": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
	} {
		got, err := ParseCompression(raw)
		if err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %v, %v, want %v", raw, got, err, want)
		}
	}
}

// TestNewHandlerDisabled returns ErrDisabled without building a writer.
func TestNewHandlerDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Enabled = false
	if _, err := NewHandler(cfg); !errors.Is(err, slogkafka.ErrDisabled) {
		t.Fatalf("NewHandler(disabled) error = %v, want ErrDisabled", err)
	}

	cfg = testConfig()
	cfg.TopicName = ""
	if _, err := NewHandler(cfg); !errors.Is(err, slogkafka.ErrConfiguration) {
		t.Fatalf("NewHandler(no topic) error = %v, want ErrConfiguration", err)
	}
}

// TestNewHandlerBuildsWriter wires a real writer without contacting brokers.
func TestNewHandlerBuildsWriter(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Level = slogkafka.LevelInfo
	h, err := NewHandler(cfg, slogkafka.WithAppLabel("orders"))
	if err != nil {
		t.Fatalf("NewHandler() returned %v, want nil", err)
	}
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("Enabled(INFO) = false, want level from config")
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close() returned %v, want nil", err)
	}
}

// TestSinkWithHandler publishes through the handler into the writer.
func TestSinkWithHandler(t *testing.T) {
	t.Parallel()

	s, w := newTestSink(t, testConfig())
	h, err := slogkafka.NewHandler(s, slogkafka.WithHostname("web-1"))
	if err != nil {
		t.Fatalf("NewHandler() returned %v, want nil", err)
	}

	ctx := slogkafka.WithContextValues(context.Background(), "traceId", "abc")
	slog.New(h).ErrorContext(ctx, "checkout failed")

	if len(w.messages) != 1 {
		t.Fatalf("writer received %d messages, want 1", len(w.messages))
	}
	got := w.messages[0]
	if string(got.Key) != "abc" {
		t.Fatalf("Key = %q, want abc", got.Key)
	}
	if want := "msg=[checkout failed], tags=[host=web-1, level=ERROR, traceId=abc]"; string(got.Value) != want {
		t.Fatalf("Value = %q, want %q", got.Value, want)
	}
}
