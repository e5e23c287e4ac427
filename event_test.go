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
	"runtime"
	"strings"
	"testing"
)

type tracedError struct {
	msg string
	pcs []uintptr
}

func newTracedError(msg string) *tracedError {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(1, pcs)
	return &tracedError{msg: msg, pcs: pcs[:n]}
}

func (e *tracedError) Error() string { return e.msg }
func (e *tracedError) StackTrace() []uintptr { return e.pcs }

type loopError struct{}

func (e *loopError) Error() string { return "loop" }
func (e *loopError) Unwrap() error { return e }

// TestNewErrorInfoChain walks wrapped causes outermost first.
func TestNewErrorInfoChain(t *testing.T) {
	t.Parallel()

	root := errors.New("disk full")
	err := fmt.Errorf("save order: %w", root)

	info := NewErrorInfo(err)
	if info == nil {
		t.Fatal("NewErrorInfo() returned nil")
	}
	if info.Type != "*fmt.wrapError" || info.Message != "save order: disk full" {
		t.Fatalf("root entry = %+v", info)
	}
	if info.Cause == nil || info.Cause.Message != "disk full" || info.Cause.Type != "*errors.errorString" {
		t.Fatalf("cause entry = %+v", info.Cause)
	}
	if info.Cause.Cause != nil {
		t.Fatalf("unexpected third entry %+v", info.Cause.Cause)
	}
	if len(info.Frames) == 0 {
		t.Fatal("captured frames missing on root entry")
	}
	if len(info.Cause.Frames) != 0 {
		t.Fatalf("cause frames = %v, want none", info.Cause.Frames)
	}
}

// TestNewErrorInfoStackTracer prefers frames recorded by the error itself.
func TestNewErrorInfoStackTracer(t *testing.T) {
	t.Parallel()

	traced := newTracedError("traced")
	info := NewErrorInfo(fmt.Errorf("wrap: %w", traced))

	if len(info.Frames) != 0 {
		t.Fatalf("wrapper frames = %v, want none", info.Frames)
	}
	if info.Cause == nil || len(info.Cause.Frames) == 0 {
		t.Fatalf("traced cause = %+v, want frames", info.Cause)
	}
	if !strings.Contains(info.Cause.Frames[0], "newTracedError") {
		t.Fatalf("first frame = %q, want newTracedError", info.Cause.Frames[0])
	}
}

// TestNewErrorInfoJoinedAndCycles covers multi-errors and self-wrapping errors.
func TestNewErrorInfoJoinedAndCycles(t *testing.T) {
	t.Parallel()

	joined := errors.Join(errors.New("first"), errors.New("second"))
	info := NewErrorInfo(joined)
	if info.Cause == nil || info.Cause.Message != "first" {
		t.Fatalf("joined cause = %+v, want first branch", info.Cause)
	}

	info = NewErrorInfo(&loopError{})
	if info.Cause != nil {
		t.Fatalf("cyclic cause = %+v, want nil", info.Cause)
	}

	if NewErrorInfo(nil) != nil {
		t.Fatal("NewErrorInfo(nil) returned non-nil")
	}
}

// TestFormatStyleString checks the convention names.
func TestFormatStyleString(t *testing.T) {
	t.Parallel()

	for style, want := range map[FormatStyle]string{
		FormatNone:          "NONE",
		FormatPrintf:        "PRINTF",
		FormatMessageFormat: "MESSAGE_FORMAT",
		FormatStyle(9):      "FormatStyle(9)",
	} {
		if got := style.String(); got != want {
			t.Errorf("FormatStyle(%d).String() = %q, want %q", int(style), got, want)
		}
	}
}

// TestGoroutineName checks the thread name shape.
func TestGoroutineName(t *testing.T) {
	t.Parallel()

	if got := goroutineName(); !strings.HasPrefix(got, "goroutine-") {
		t.Fatalf("goroutineName() = %q, want goroutine-N", got)
	}
}
