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

// Package slogkafkahttp attaches request ids and trace ids to request
// contexts so that slogkafka events carry them, and optionally writes one
// access record per request.
package slogkafkahttp

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pjscruggs/slogkafka"
)

const instrumentationName = "github.com/pjscruggs/slogkafka/slogkafkahttp"

// Context keys set for every request.
const (
	RequestIDKey = "requestId"
	MethodKey    = "http.method"
	PathKey      = "http.path"
)

// Middleware returns an http.Handler middleware. Inside the wrapped handler
// the request context carries requestId, http.method, http.path and, when a
// span is active, traceId and spanId.
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	cfg := applyOptions(opts)

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return wrapWithOTel(cfg, contextHandler(cfg, next))
	}
}

// contextHandler enriches the request context and writes access records.
func contextHandler(cfg *config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(cfg.requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(cfg.requestIDHeader, requestID)

		ctx := r.Context()
		kv := []string{
			RequestIDKey, requestID,
			MethodKey, r.Method,
			PathKey, r.URL.Path,
		}
		if traceID, spanID, ok := slogkafka.ExtractTraceSpan(ctx); ok {
			kv = append(kv, slogkafka.ContextTraceIDKey, traceID, slogkafka.ContextSpanIDKey, spanID)
		}
		ctx = slogkafka.WithContextValues(ctx, kv...)
		if cfg.logger != nil {
			ctx = slogkafka.ContextWithLogger(ctx, cfg.logger)
		}
		r = r.WithContext(ctx)

		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if cfg.accessLog && cfg.logger != nil {
			status := rec.Status()
			cfg.logger.LogAttrs(ctx, cfg.accessLevel,
				fmt.Sprintf("%s %s %d", r.Method, r.URL.RequestURI(), status),
				slogkafka.LoggerName(slogkafka.AccessLogLogger),
				slog.Int("http.status", status),
				slog.Int64("http.response_bytes", rec.BytesWritten()),
				slog.Duration("http.latency", time.Since(start)),
				slog.String("http.user_agent", r.UserAgent()),
			)
		}
	})
}

// wrapWithOTel adds the otelhttp server span when enabled.
func wrapWithOTel(cfg *config, handler http.Handler) http.Handler {
	if !cfg.enableOTel {
		return handler
	}

	var otelOpts []otelhttp.Option
	if cfg.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(cfg.tracerProvider))
	}
	if cfg.propagators != nil {
		otelOpts = append(otelOpts, otelhttp.WithPropagators(cfg.propagators))
	}
	for _, filter := range cfg.filters {
		otelOpts = append(otelOpts, otelhttp.WithFilter(filter))
	}
	return otelhttp.NewHandler(handler, instrumentationName, otelOpts...)
}

type responseRecorder struct {
	http.ResponseWriter
	status       int
	wroteHeader  bool
	bytesWritten int64
}

// WriteHeader records the status code before delegating to the wrapped writer.
func (rr *responseRecorder) WriteHeader(status int) {
	if !rr.wroteHeader {
		rr.status = status
		rr.wroteHeader = true
	}
	rr.ResponseWriter.WriteHeader(status)
}

// Write records bytes written and forwards the call to the underlying writer.
func (rr *responseRecorder) Write(p []byte) (int, error) {
	if !rr.wroteHeader {
		rr.WriteHeader(http.StatusOK)
	}
	n, err := rr.ResponseWriter.Write(p)
	rr.bytesWritten += int64(n)
	return n, err
}

// Status returns the HTTP status code that was written to the client.
func (rr *responseRecorder) Status() int {
	if rr.status == 0 {
		return http.StatusOK
	}
	return rr.status
}

// BytesWritten reports the cumulative number of bytes sent to the client.
func (rr *responseRecorder) BytesWritten() int64 {
	return rr.bytesWritten
}

// Unwrap exposes the underlying ResponseWriter for http.ResponseController.
func (rr *responseRecorder) Unwrap() http.ResponseWriter {
	return rr.ResponseWriter
}

// Flush forwards to the underlying writer when it supports flushing.
func (rr *responseRecorder) Flush() {
	if f, ok := rr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
