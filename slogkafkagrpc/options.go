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

package slogkafkagrpc

import (
	"log/slog"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// DefaultRequestIDMetadataKey carries request ids in incoming metadata.
const DefaultRequestIDMetadataKey = "x-request-id"

// Option configures the interceptors.
type Option func(*config)

type config struct {
	logger         *slog.Logger
	accessLog      bool
	accessLevel    slog.Level
	enableOTel     bool
	tracerProvider trace.TracerProvider
	propagators    propagation.TextMapPropagator
	requestIDKey   string
}

// defaultConfig returns the interceptor defaults.
func defaultConfig() *config {
	return &config{
		accessLevel:  slog.LevelInfo,
		enableOTel:   true,
		requestIDKey: DefaultRequestIDMetadataKey,
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

// WithLogger stores logger in each RPC context and uses it for access records.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithAccessLog writes one record per RPC under slogkafka.AccessLogLogger.
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

// WithOTel toggles the otelgrpc stats handler in ServerOptions.
func WithOTel(enabled bool) Option {
	return func(cfg *config) {
		cfg.enableOTel = enabled
	}
}

// WithTracerProvider overrides the tracer provider used by otelgrpc.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.tracerProvider = tp
	}
}

// WithPropagators overrides the propagators used by otelgrpc.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *config) {
		cfg.propagators = p
	}
}

// WithRequestIDMetadataKey changes the metadata key read for request ids.
func WithRequestIDMetadataKey(key string) Option {
	return func(cfg *config) {
		if key != "" {
			cfg.requestIDKey = key
		}
	}
}
