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

	"go.opentelemetry.io/otel/trace"
)

// Context keys filled from the active OpenTelemetry span.
const (
	ContextTraceIDKey = TagTraceID
	ContextSpanIDKey  = "spanId"
)

// ExtractTraceSpan returns the hex trace and span IDs of the span in ctx.
// ok is false when ctx carries no valid span context.
func ExtractTraceSpan(ctx context.Context) (traceID, spanID string, ok bool) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}

// addTraceContext copies trace identifiers from ctx into values unless a
// traceId is already present.
func addTraceContext(ctx context.Context, values map[string]string) {
	if values[ContextTraceIDKey] != "" {
		return
	}
	traceID, spanID, ok := ExtractTraceSpan(ctx)
	if !ok {
		return
	}
	values[ContextTraceIDKey] = traceID
	if values[ContextSpanIDKey] == "" {
		values[ContextSpanIDKey] = spanID
	}
}
