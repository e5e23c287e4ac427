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
	"strings"
	"testing"
)

// TestAssembleTagged covers the additive sections of the tagged form.
func TestAssembleTagged(t *testing.T) {
	t.Parallel()

	if got := AssembleTagged("some log output", TagSet{}, nil); got != "msg=[some log output]" {
		t.Fatalf("AssembleTagged(no tags) = %q", got)
	}

	got := AssembleTagged("some log output", TagSet{"level": "SEVERE"}, nil)
	if want := "msg=[some log output], tags=[level=SEVERE]"; got != want {
		t.Fatalf("AssembleTagged(one tag) = %q, want %q", got, want)
	}

	got = AssembleTagged("m", TagSet{"level": "WARN", "app": "a", "host": "h"}, nil)
	if want := "msg=[m], tags=[app=a, host=h, level=WARN]"; got != want {
		t.Fatalf("AssembleTagged(sorted tags) = %q, want %q", got, want)
	}
}

// TestAssembleTaggedWithError checks stack frames and cause markers.
func TestAssembleTaggedWithError(t *testing.T) {
	t.Parallel()

	errInfo := &ErrorInfo{
		Type:    "*errors.errorString",
		Message: "outer",
		Frames:  []string{"main.run(/src/main.go:10)", "main.main(/src/main.go:3)"},
		Cause: &ErrorInfo{
			Type:    "*fs.PathError",
			Message: "inner",
			Frames:  []string{"os.Open(/go/os/file.go:1)"},
		},
	}

	got := AssembleTagged("failed", TagSet{"level": "ERROR"}, errInfo)
	want := "msg=[failed], stacktrace=[" +
		"  main.run(/src/main.go:10)\n" +
		"  main.main(/src/main.go:3)\n" +
		"Caused by:" +
		"  os.Open(/go/os/file.go:1)\n" +
		"], tags=[level=ERROR]"
	if got != want {
		t.Fatalf("AssembleTagged() =\n%q\nwant\n%q", got, want)
	}
}

// TestAssembleTaggedCapturedStack mirrors logging a freshly created error.
func TestAssembleTaggedCapturedStack(t *testing.T) {
	t.Parallel()

	got := AssembleTagged("some log output", TagSet{}, NewErrorInfo(errors.New("boom")))
	if !strings.HasPrefix(got, "msg=[some log output], stacktrace=[  ") {
		t.Fatalf("AssembleTagged() = %q, want stacktrace section", got)
	}
	if strings.Contains(got, "tags=[") {
		t.Fatalf("AssembleTagged() = %q, want no tags section", got)
	}
	if !strings.HasSuffix(got, "\n]") {
		t.Fatalf("AssembleTagged() = %q, want frames terminated by newline", got)
	}
}
