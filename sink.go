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

package slogkafka

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Header names set by the Handler on every message.
const (
	HeaderContentType = "content-type"

	contentTypeText = "text/plain; charset=utf-8"
	contentTypeJSON = "application/json"
)

// Message is an assembled payload ready for delivery.
type Message struct {
	// Key is the partitioning key; nil lets the sink choose.
	Key     []byte
	Value   []byte
	Headers map[string]string
	Time    time.Time
}

// Sink delivers messages to a broker. Send must return without waiting for
// broker acknowledgment and must tolerate concurrent calls. Delivery failures
// are the sink's to log or drop; they are never reported to the caller.
type Sink interface {
	Send(ctx context.Context, msg Message)
	Close() error
}

// SinkMiddleware decorates a Sink, e.g. with an async queue.
type SinkMiddleware func(Sink) Sink

// DiscardSink drops every message.
type DiscardSink struct{}

// Send implements Sink.
func (DiscardSink) Send(context.Context, Message) {}

// Close implements Sink.
func (DiscardSink) Close() error { return nil }

// MemorySink records messages in memory. It is meant for tests.
type MemorySink struct {
	mu       sync.Mutex
	messages []Message
	closed   bool
}

// Send implements Sink. Messages sent after Close are ignored.
func (s *MemorySink) Send(_ context.Context, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.messages = append(s.messages, msg)
}

// Close implements Sink.
func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Messages returns a copy of the recorded messages.
func (s *MemorySink) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Closed reports whether Close was called.
func (s *MemorySink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
