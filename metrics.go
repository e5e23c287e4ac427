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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels used by Metrics.
const (
	ResultPublished = "published"
	ResultDropped   = "dropped"
	ResultSent      = "sent"
	ResultFailed    = "failed"
)

// Metrics counts pipeline outcomes. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	events          *prometheus.CounterVec
	renderFallbacks prometheus.Counter
	formatFallbacks prometheus.Counter
	sinkMessages    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slogkafka",
			Subsystem: "handler",
			Name:      "events_total",
			Help:      "Events that passed the level filter, by outcome.",
		}, []string{"result"}),
		renderFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "slogkafka",
			Subsystem: "handler",
			Name:      "render_fallbacks_total",
			Help:      "Events published with their raw template after a render error.",
		}),
		formatFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "slogkafka",
			Subsystem: "handler",
			Name:      "format_fallbacks_total",
			Help:      "Structured payloads replaced by the tagged form after a serialization error.",
		}),
		sinkMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slogkafka",
			Subsystem: "sink",
			Name:      "messages_total",
			Help:      "Messages handled by delivery sinks, by sink and outcome.",
		}, []string{"sink", "result"}),
	}
}

// EventPublished counts an event handed to the sink.
func (m *Metrics) EventPublished() {
	if m == nil {
		return
	}
	m.events.WithLabelValues(ResultPublished).Inc()
}

// EventDropped counts an event abandoned inside the handler.
func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.events.WithLabelValues(ResultDropped).Inc()
}

// RenderFallback counts a render error.
func (m *Metrics) RenderFallback() {
	if m == nil {
		return
	}
	m.renderFallbacks.Inc()
}

// FormatFallback counts a structured serialization failure.
func (m *Metrics) FormatFallback() {
	if m == nil {
		return
	}
	m.formatFallbacks.Inc()
}

// SinkResult counts n messages with the given sink name and result.
func (m *Metrics) SinkResult(sink, result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sinkMessages.WithLabelValues(sink, result).Add(float64(n))
}
