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
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"
)

// AccessLogLogger is the logger name reserved for per-request access records.
// Events emitted under it are tagged type=access.
const AccessLogLogger = "__AccessLog"

// maxCauseDepth bounds how many wrapped causes are walked for a single error.
const maxCauseDepth = 64

// FormatStyle names the placeholder convention of an event's message template.
type FormatStyle int

const (
	// FormatNone publishes the template as-is.
	FormatNone FormatStyle = iota
	// FormatPrintf substitutes fmt verbs such as %s and %d.
	FormatPrintf
	// FormatMessageFormat substitutes indexed placeholders such as {0} and {1}.
	FormatMessageFormat
)

// String returns the convention name.
func (s FormatStyle) String() string {
	switch s {
	case FormatNone:
		return "NONE"
	case FormatPrintf:
		return "PRINTF"
	case FormatMessageFormat:
		return "MESSAGE_FORMAT"
	default:
		return fmt.Sprintf("FormatStyle(%d)", int(s))
	}
}

// Event is one log record as seen by the pipeline. It is owned by the caller;
// the Handler reads it and never mutates it.
type Event struct {
	Time       time.Time
	Level      slog.Level
	LoggerName string
	Message    string
	Args       []any
	Style      FormatStyle
	ThreadName string
	HostName   string
	// Context holds request-scoped key/value pairs, including traceId when
	// the emitting code runs inside a trace.
	Context map[string]string
	Err     *ErrorInfo
	Origin  *Origin
}

// TraceID returns the traceId context value, if any.
func (e *Event) TraceID() string {
	if e == nil {
		return ""
	}
	return e.Context[TagTraceID]
}

// Origin locates the code that emitted an event.
type Origin struct {
	File     string
	Function string
	Line     int
}

// ErrorInfo is the exception attached to an event: a type name, a message,
// stack frames rendered as "function(file:line)" and an optional cause.
type ErrorInfo struct {
	Type    string
	Message string
	Frames  []string
	Cause   *ErrorInfo
}

// NewErrorInfo converts err and its wrapped causes into an ErrorInfo chain.
// Frames come from errors exposing StackTrace() []uintptr; when no error in
// the chain carries frames the caller's stack is captured for the outermost
// entry. The chain is cut after maxCauseDepth entries and on cycles.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}

	var (
		root      *ErrorInfo
		tail      *ErrorInfo
		hasFrames bool
		seen      = make(map[error]struct{})
	)
	for depth := 0; err != nil && depth < maxCauseDepth; depth++ {
		if isComparable(err) {
			if _, dup := seen[err]; dup {
				break
			}
			seen[err] = struct{}{}
		}

		info := &ErrorInfo{
			Type:    errorTypeName(err),
			Message: err.Error(),
		}
		if st, ok := err.(stackTracer); ok {
			info.Frames = formatFrames(st.StackTrace())
			hasFrames = hasFrames || len(info.Frames) > 0
		}

		if root == nil {
			root = info
		} else {
			tail.Cause = info
		}
		tail = info
		err = nextCause(err)
	}

	if !hasFrames {
		root.Frames = CaptureFrames(nil)
	}
	return root
}

// nextCause returns the error wrapped by err. For joined errors only the
// first branch is followed.
func nextCause(err error) error {
	if next := errors.Unwrap(err); next != nil {
		return next
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		for _, candidate := range multi.Unwrap() {
			if candidate != nil {
				return candidate
			}
		}
	}
	return nil
}

// errorTypeName reports the dynamic type of err, e.g. "*fs.PathError".
func errorTypeName(err error) string {
	return fmt.Sprintf("%T", err)
}

// isComparable reports whether err may be used as a map key without panicking.
func isComparable(err error) bool {
	return reflect.TypeOf(err).Comparable()
}
