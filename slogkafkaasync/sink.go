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

package slogkafkaasync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pjscruggs/slogkafka"
)

const (
	defaultQueueSize    = 1024
	defaultFlushTimeout = 5 * time.Second

	// MetricsSinkName labels messages dropped by the queue.
	MetricsSinkName = "async"

	envAsyncEnabled      = "SLOGKAFKA_ASYNC_ENABLED"
	envAsyncQueueSize    = "SLOGKAFKA_ASYNC_QUEUE_SIZE"
	envAsyncDropMode     = "SLOGKAFKA_ASYNC_DROP_MODE"
	envAsyncWorkers      = "SLOGKAFKA_ASYNC_WORKERS"
	envAsyncFlushTimeout = "SLOGKAFKA_ASYNC_FLUSH_TIMEOUT"
)

// DropMode controls how Send behaves when the queue is full.
type DropMode int

const (
	// DropModeDropNewest drops the incoming message when the queue is full.
	DropModeDropNewest DropMode = iota
	// DropModeDropOldest drops the oldest queued message when the queue is full.
	DropModeDropOldest
	// DropModeBlock blocks the caller until the queue has room.
	DropModeBlock
)

// String returns the environment spelling of the mode.
func (m DropMode) String() string {
	switch m {
	case DropModeDropNewest:
		return "drop_newest"
	case DropModeDropOldest:
		return "drop_oldest"
	case DropModeBlock:
		return "block"
	default:
		return fmt.Sprintf("DropMode(%d)", int(m))
	}
}

// ErrFlushTimeout indicates Close returned before the queue was fully drained.
var ErrFlushTimeout = errors.New("slogkafkaasync: flush timeout")

// DropHandler observes dropped messages.
type DropHandler func(ctx context.Context, msg slogkafka.Message)

// Config controls async sink behaviour.
type Config struct {
	Enabled      bool
	QueueSize    int
	WorkerCount  int
	BatchSize    int
	DropMode     DropMode
	OnDrop       DropHandler
	Metrics      *slogkafka.Metrics
	ErrorWriter  io.Writer
	FlushTimeout time.Duration

	workerStarter func(func())
}

// Option customizes async sink configuration.
type Option func(*Config)

// WithEnabled toggles the async wrapper on or off.
func WithEnabled(enabled bool) Option {
	return func(cfg *Config) {
		cfg.Enabled = enabled
	}
}

// WithQueueSize adjusts the queue capacity. Zero yields an unbuffered queue.
func WithQueueSize(size int) Option {
	return func(cfg *Config) {
		cfg.QueueSize = size
	}
}

// WithWorkerCount configures the number of worker goroutines. One worker
// delivers messages in the order they were queued.
func WithWorkerCount(count int) Option {
	return func(cfg *Config) {
		cfg.WorkerCount = count
	}
}

// WithBatchSize sets how many queued messages a worker drains per wake-up.
// Values less than 1 default to 1.
func WithBatchSize(size int) Option {
	return func(cfg *Config) {
		cfg.BatchSize = size
	}
}

// WithDropMode sets the queue overflow strategy.
func WithDropMode(mode DropMode) Option {
	return func(cfg *Config) {
		cfg.DropMode = mode
	}
}

// WithOnDrop registers a callback invoked when a message is dropped.
func WithOnDrop(fn DropHandler) Option {
	return func(cfg *Config) {
		cfg.OnDrop = fn
	}
}

// WithMetrics counts dropped messages under the "async" sink label.
func WithMetrics(m *slogkafka.Metrics) Option {
	return func(cfg *Config) {
		cfg.Metrics = m
	}
}

// WithErrorWriter directs worker panic reports to w. Use nil to silence them.
func WithErrorWriter(w io.Writer) Option {
	return func(cfg *Config) {
		cfg.ErrorWriter = w
	}
}

// WithFlushTimeout limits how long Close waits for workers to finish.
// Zero waits indefinitely.
func WithFlushTimeout(timeout time.Duration) Option {
	return func(cfg *Config) {
		cfg.FlushTimeout = timeout
	}
}

// WithEnv overlays configuration from environment variables.
func WithEnv() Option {
	return func(cfg *Config) {
		applyEnv(cfg)
	}
}

// Middleware returns a slogkafka.SinkMiddleware applying Wrap.
func Middleware(opts ...Option) slogkafka.SinkMiddleware {
	return func(inner slogkafka.Sink) slogkafka.Sink {
		return Wrap(inner, opts...)
	}
}

// Sink queues messages for an inner sink.
type Sink struct {
	inner    slogkafka.Sink
	dropMode DropMode
	onDrop   DropHandler

	queue        chan queuedMessage
	wg           sync.WaitGroup
	closed       atomic.Bool
	flushTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
	errWriter    io.Writer
}

type queuedMessage struct {
	ctx context.Context
	msg slogkafka.Message
}

// Wrap returns an async sink around inner unless disabled, in which case
// inner is returned as-is.
func Wrap(inner slogkafka.Sink, opts ...Option) slogkafka.Sink {
	cfg := buildConfig(opts)
	if !cfg.Enabled || inner == nil {
		return inner
	}
	return New(inner, cfg)
}

// New constructs a Sink from an explicit configuration and starts its workers.
func New(inner slogkafka.Sink, cfg Config) *Sink {
	cfg = normalize(cfg)
	s := &Sink{
		inner:        inner,
		dropMode:     cfg.DropMode,
		onDrop:       dropHandler(cfg),
		queue:        make(chan queuedMessage, cfg.QueueSize),
		flushTimeout: cfg.FlushTimeout,
		errWriter:    cfg.ErrorWriter,
	}

	start := func() {
		s.wg.Add(cfg.WorkerCount)
		for range cfg.WorkerCount {
			go s.work(cfg.BatchSize)
		}
	}
	if cfg.workerStarter != nil {
		cfg.workerStarter(start)
	} else {
		start()
	}
	return s
}

// work drains the queue until it is closed.
func (s *Sink) work(batchSize int) {
	defer s.wg.Done()
	for item := range s.queue {
		s.deliver(item)
		for n := 1; n < batchSize; n++ {
			select {
			case next, ok := <-s.queue:
				if !ok {
					return
				}
				s.deliver(next)
			default:
				n = batchSize
			}
		}
	}
}

// deliver hands one message to the inner sink, recovering from panics.
func (s *Sink) deliver(item queuedMessage) {
	defer func() {
		if r := recover(); r != nil && s.errWriter != nil {
			_, _ = fmt.Fprintf(s.errWriter, "slogkafkaasync: recovered panic from sink: %v\n", r)
		}
	}()
	s.inner.Send(item.ctx, item.msg)
}

// Send enqueues msg. The context is detached from cancellation because
// delivery happens after the caller has moved on.
func (s *Sink) Send(ctx context.Context, msg slogkafka.Message) {
	if ctx == nil {
		ctx = context.Background()
	}
	item := queuedMessage{ctx: context.WithoutCancel(ctx), msg: msg}
	if s.closed.Load() {
		s.drop(item)
		return
	}
	s.enqueue(item)
}

// enqueue routes a message into the queue respecting the drop mode and
// recovers from sends on a closed queue.
func (s *Sink) enqueue(item queuedMessage) {
	defer func() {
		if recover() != nil {
			s.drop(item)
		}
	}()

	switch s.dropMode {
	case DropModeDropNewest:
		select {
		case s.queue <- item:
		default:
			s.drop(item)
		}
	case DropModeDropOldest:
		select {
		case s.queue <- item:
		default:
			select {
			case dropped := <-s.queue:
				s.drop(dropped)
			default:
			}
			select {
			case s.queue <- item:
			default:
				s.drop(item)
			}
		}
	default:
		s.queue <- item
	}
}

// drop reports item to the drop handler.
func (s *Sink) drop(item queuedMessage) {
	if s.onDrop != nil {
		s.onDrop(item.ctx, item.msg)
	}
}

// Len returns the number of queued messages.
func (s *Sink) Len() int {
	return len(s.queue)
}

// Close stops accepting messages, waits for the queue to drain within the
// flush timeout and closes the inner sink.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		if s.closed.CompareAndSwap(false, true) {
			close(s.queue)
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		if s.flushTimeout > 0 {
			select {
			case <-done:
			case <-time.After(s.flushTimeout):
				s.closeErr = ErrFlushTimeout
			}
		} else {
			<-done
		}

		if err := s.inner.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// dropHandler combines the user callback with metrics.
func dropHandler(cfg Config) DropHandler {
	if cfg.Metrics == nil {
		return cfg.OnDrop
	}
	return func(ctx context.Context, msg slogkafka.Message) {
		cfg.Metrics.SinkResult(MetricsSinkName, slogkafka.ResultDropped, 1)
		if cfg.OnDrop != nil {
			cfg.OnDrop(ctx, msg)
		}
	}
}

// buildConfig applies options with defaults and clamps invalid values.
func buildConfig(opts []Option) Config {
	cfg := Config{
		Enabled:      true,
		QueueSize:    defaultQueueSize,
		WorkerCount:  1,
		BatchSize:    1,
		DropMode:     DropModeDropNewest,
		ErrorWriter:  os.Stderr,
		FlushTimeout: defaultFlushTimeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return normalize(cfg)
}

// normalize clamps invalid values.
func normalize(cfg Config) Config {
	if cfg.QueueSize < 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return cfg
}

// applyEnv overlays configuration from environment variables.
func applyEnv(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv(envAsyncEnabled)); raw != "" {
		if enabled, ok := parseAsyncBool(raw); ok {
			cfg.Enabled = enabled
		}
	}

	if raw := strings.TrimSpace(os.Getenv(envAsyncQueueSize)); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil {
			cfg.QueueSize = size
		}
	}

	if raw := strings.TrimSpace(os.Getenv(envAsyncWorkers)); raw != "" {
		if workers, err := strconv.Atoi(raw); err == nil {
			cfg.WorkerCount = workers
		}
	}

	if raw := strings.TrimSpace(os.Getenv(envAsyncDropMode)); raw != "" {
		if mode, ok := ParseDropMode(raw); ok {
			cfg.DropMode = mode
		}
	}

	if raw := strings.TrimSpace(os.Getenv(envAsyncFlushTimeout)); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.FlushTimeout = d
		}
	}
}

// ParseDropMode accepts block, drop_newest and drop_oldest (dashes allowed).
func ParseDropMode(raw string) (DropMode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "block":
		return DropModeBlock, true
	case "drop_newest", "drop-newest":
		return DropModeDropNewest, true
	case "drop_oldest", "drop-oldest":
		return DropModeDropOldest, true
	default:
		return 0, false
	}
}

// parseAsyncBool accepts yes/on/1/true and no/off/0/false tokens.
func parseAsyncBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "on":
		return true, true
	case "0", "f", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}
