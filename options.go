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
	"log/slog"
	"maps"
)

// Option mutates Handler construction behaviour when supplied to [NewHandler].
//
// Options follow the functional options pattern and are applied in the order
// they are provided by the caller.
type Option func(*options)

type options struct {
	level             *slog.Level
	appLabel          *string
	serviceName       *string
	environment       *string
	hostname          *string
	loggerName        *string
	includeOrigin     *bool
	stackTraceAsArray *bool
	format            *PayloadFormat
	additionalFields  map[string]string
	internalLogger    *slog.Logger
	metrics           *Metrics
	middlewares       []SinkMiddleware
}

// WithConfig applies every handler-related field of cfg. Options given after
// it override individual fields.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		level := cfg.Level.Level()
		o.level = &level
		o.appLabel = &cfg.AppLabel
		o.serviceName = &cfg.ServiceName
		o.environment = &cfg.Environment
		o.includeOrigin = &cfg.IncludeOrigin
		o.stackTraceAsArray = &cfg.StackTraceAsArray
		o.format = &cfg.Format
		o.additionalFields = maps.Clone(cfg.AdditionalFields)
	}
}

// WithLevel sets the minimum level; events below it are ignored.
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = &level
	}
}

// WithAppLabel sets the value of the app tag.
func WithAppLabel(label string) Option {
	return func(o *options) {
		o.appLabel = &label
	}
}

// WithServiceName sets service.name in structured payloads. DefaultServiceName
// and the empty string leave it out.
func WithServiceName(name string) Option {
	return func(o *options) {
		o.serviceName = &name
	}
}

// WithEnvironment sets service.environment in structured payloads.
func WithEnvironment(env string) Option {
	return func(o *options) {
		o.environment = &env
	}
}

// WithHostname overrides the detected host name.
func WithHostname(host string) Option {
	return func(o *options) {
		o.hostname = &host
	}
}

// WithLoggerName sets the logger name used when a record does not carry one.
func WithLoggerName(name string) Option {
	return func(o *options) {
		o.loggerName = &name
	}
}

// WithIncludeOrigin adds log.origin to structured payloads.
func WithIncludeOrigin(enabled bool) Option {
	return func(o *options) {
		o.includeOrigin = &enabled
	}
}

// WithStackTraceAsArray renders error.stack_trace as a JSON array of lines.
func WithStackTraceAsArray(enabled bool) Option {
	return func(o *options) {
		o.stackTraceAsArray = &enabled
	}
}

// WithFormat selects the payload shape.
func WithFormat(format PayloadFormat) Option {
	return func(o *options) {
		o.format = &format
	}
}

// WithAdditionalFields adds static fields to every structured payload.
// Repeated calls merge, later values winning.
func WithAdditionalFields(fields map[string]string) Option {
	return func(o *options) {
		if o.additionalFields == nil {
			o.additionalFields = make(map[string]string, len(fields))
		}
		maps.Copy(o.additionalFields, fields)
	}
}

// WithInternalLogger directs the handler's own diagnostics to logger. The
// logger must not write through a slogkafka handler.
func WithInternalLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.internalLogger = logger
	}
}

// WithMetrics records pipeline outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithSinkMiddleware wraps the sink given to NewHandler. Middleware runs in
// the order supplied, wrapping the sink from last to first.
func WithSinkMiddleware(mw SinkMiddleware) Option {
	return func(o *options) {
		if mw != nil {
			o.middlewares = append(o.middlewares, mw)
		}
	}
}
