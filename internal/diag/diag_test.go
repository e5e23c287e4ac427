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

package diag

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// TestReporterSuppressesAfterBurst counts messages over the limit and
// reports the count with the next message that gets through.
func TestReporterSuppressesAfterBurst(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := New(slog.New(slog.NewTextHandler(&buf, nil)), time.Hour, 2)

	for range 5 {
		r.Report(slog.LevelWarn, "sink failed")
	}
	if got := strings.Count(buf.String(), "sink failed"); got != 2 {
		t.Fatalf("logged %d messages, want 2", got)
	}
	if got := r.Suppressed(); got != 3 {
		t.Fatalf("Suppressed() = %d, want 3", got)
	}

	r.limiter.SetLimit(rate.Inf)
	r.Report(slog.LevelWarn, "recovered")
	if !strings.Contains(buf.String(), "suppressed=3") {
		t.Fatalf("output %q, want suppressed=3", buf.String())
	}
	if got := r.Suppressed(); got != 0 {
		t.Fatalf("Suppressed() after report = %d, want 0", got)
	}
}

// TestNilReporter discards everything.
func TestNilReporter(t *testing.T) {
	t.Parallel()

	var r *Reporter
	r.Report(slog.LevelError, "ignored")
	if r.Suppressed() != 0 {
		t.Fatal("nil reporter counted suppressed messages")
	}

	New(nil, 0, 0).Report(slog.LevelError, "discarded")
}
