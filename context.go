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
	"log/slog"
	"maps"
)

type contextKey int

const (
	loggerContextKey contextKey = iota
	valuesContextKey
)

// ContextWithLogger returns a child context that stores logger so handlers can
// retrieve a request-scoped logger later in the call chain.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// Logger retrieves a logger stored in ctx via ContextWithLogger, falling back
// to slog.Default().
func Logger(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithContextValues returns a child context carrying the given key/value
// pairs in addition to any stored by parents. Values set here end up in the
// event context map, so "traceId" becomes the traceId tag and message key.
// A trailing key without a value is ignored.
func WithContextValues(ctx context.Context, kv ...string) context.Context {
	if ctx == nil || len(kv) < 2 {
		return ctx
	}
	parent := contextValues(ctx)
	merged := make(map[string]string, len(parent)+len(kv)/2)
	maps.Copy(merged, parent)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i] == "" {
			continue
		}
		merged[kv[i]] = kv[i+1]
	}
	return context.WithValue(ctx, valuesContextKey, merged)
}

// ContextValues returns a copy of the values stored with WithContextValues.
func ContextValues(ctx context.Context) map[string]string {
	return maps.Clone(contextValues(ctx))
}

// contextValues returns the stored map without copying. Callers must not
// modify it.
func contextValues(ctx context.Context) map[string]string {
	if ctx == nil {
		return nil
	}
	values, _ := ctx.Value(valuesContextKey).(map[string]string)
	return values
}
