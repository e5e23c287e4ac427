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
	"runtime"
	"strconv"
	"strings"
	"sync"
)

const maxStackFrames = 64

var stackPCPool = sync.Pool{
	New: func() any {
		buf := make([]uintptr, maxStackFrames)
		return &buf
	},
}

// stackTracer is implemented by errors that recorded program counters at
// creation time.
type stackTracer interface {
	StackTrace() []uintptr
}

// formatFrames renders pcs as "function(file:line)" entries, skipping
// runtime exit frames and stopping after maxStackFrames entries.
func formatFrames(pcs []uintptr) []string {
	if len(pcs) == 0 {
		return nil
	}

	out := make([]string, 0, min(len(pcs), maxStackFrames))
	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		if frame.PC == 0 {
			break
		}
		if frame.Function != "" && frame.Function != "runtime.goexit" {
			out = append(out, formatFrame(frame))
			if len(out) >= maxStackFrames {
				break
			}
		}
		if !more {
			break
		}
	}
	return out
}

// formatFrame renders a single frame.
func formatFrame(frame runtime.Frame) string {
	var sb strings.Builder
	sb.Grow(len(frame.Function) + len(frame.File) + 8)
	sb.WriteString(frame.Function)
	sb.WriteByte('(')
	sb.WriteString(frame.File)
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(frame.Line))
	sb.WriteByte(')')
	return sb.String()
}

// trimStackPCs removes leading frames that match skipFn while preserving the remainder.
func trimStackPCs(pcs []uintptr, skipFn func(string) bool) []uintptr {
	if len(pcs) == 0 {
		return pcs
	}

	frames := runtime.CallersFrames(pcs)
	skip := 0
	for {
		frame, more := frames.Next()
		if skipFn == nil || !skipFn(frame.Function) {
			break
		}
		skip++
		if !more {
			return nil
		}
	}
	if skip == 0 {
		return pcs
	}
	return pcs[skip:]
}

// SkipInternalStackFrame reports whether a frame belongs to slogkafka, slog
// or the runtime and should be hidden from captured stacks.
func SkipInternalStackFrame(funcName string) bool {
	if funcName == "" {
		return false
	}
	return strings.HasPrefix(funcName, "runtime.") ||
		strings.HasPrefix(funcName, "log/slog.") ||
		strings.HasPrefix(funcName, "github.com/pjscruggs/slogkafka.") ||
		strings.HasPrefix(funcName, "github.com/pjscruggs/slogkafka/")
}

// CaptureFrames captures the current goroutine's stack, trimming leading
// frames matched by skipFn (SkipInternalStackFrame when nil). If every frame
// matches, the untrimmed stack is returned.
func CaptureFrames(skipFn func(string) bool) []string {
	bufPtr := stackPCPool.Get().(*[]uintptr)
	defer stackPCPool.Put(bufPtr)
	pcs := (*bufPtr)[:cap(*bufPtr)]

	n := runtime.Callers(1, pcs)
	if n == 0 {
		return nil
	}
	pcs = pcs[:n]

	if skipFn == nil {
		skipFn = SkipInternalStackFrame
	}
	trimmed := trimStackPCs(pcs, skipFn)
	if len(trimmed) == 0 {
		trimmed = pcs
	}
	return formatFrames(trimmed)
}

// originFromPC resolves the emitting function and file for pc.
func originFromPC(pc uintptr) *Origin {
	if pc == 0 {
		return nil
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" && frame.Function == "" {
		return nil
	}
	return &Origin{File: frame.File, Function: frame.Function, Line: frame.Line}
}

// goroutineName names the calling goroutine the way the runtime's stack
// header does, e.g. "goroutine-17".
func goroutineName() string {
	header := currentGoroutineHeader()
	fields := strings.Fields(header)
	if len(fields) < 2 || fields[0] != "goroutine" {
		return ""
	}
	return "goroutine-" + fields[1]
}

// currentGoroutineHeader returns the goroutine header emitted by runtime.Stack.
func currentGoroutineHeader() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	if n <= 0 {
		return ""
	}

	header := string(buf[:n])
	if idx := strings.IndexByte(header, '\n'); idx >= 0 {
		header = header[:idx]
	}
	return strings.TrimSpace(header)
}
