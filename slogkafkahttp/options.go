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

package slogkafkahttp

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// DefaultRequestIDHeader carries request ids in and out of the middleware.
const DefaultRequestIDHeader = "X-Request-Id"

// Option configures the HTTP middleware.
type Option func(*config)

type config struct {
	logger          *slog.Logger
	accessLog       bool
	accessLevel     slog.Level
	enableOTel      bool
	tracerProvider  trace.TracerProvider
	propagators     propagation.TextMapPropagator
	filters         []otelhttp.Filter
	requestIDHeader string
}

// defaultConfig returns the middleware defaults.
func defaultConfig() *config {
	return &config{
		accessLevel:     slog.LevelInfo,
		enableOTel:      true,
		requestIDHeader: DefaultRequestIDHeader,
	}
}

// applyOptions builds a config from opts.
func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithLogger stores logger in each request context (see slogkafka.Logger)
// and uses it for access records.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithAccessLog writes one record per request under slogkafka.AccessLogLogger
// through the configured logger.
func WithAccessLog(enabled bool) Option {
	return func(cfg *config) {
		cfg.accessLog = enabled
	}
}

// WithAccessLogLevel sets the level of access records. Defaults to INFO.
func WithAccessLogLevel(level slog.Level) Option {
	return func(cfg *config) {
		cfg.accessLevel = level
	}
}

// WithOTel toggles the otelhttp server span around each request.
func WithOTel(enabled bool) Option {
	return func(cfg *config) {
		cfg.enableOTel = enabled
	}
}

// WithTracerProvider overrides the tracer provider used by otelhttp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.tracerProvider = tp
	}
}

// WithPropagators overrides the propagators used to extract inbound traces.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *config) {
		cfg.propagators = p
	}
}

// WithFilter skips tracing for requests the filter rejects.
func WithFilter(filter otelhttp.Filter) Option {
	return func(cfg *config) {
		if filter != nil {
			cfg.filters = append(cfg.filters, filter)
		}
	}
}

// WithRequestIDHeader changes the request id header name.
func WithRequestIDHeader(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.requestIDHeader = http.CanonicalHeaderKey(name)
		}
	}
}
