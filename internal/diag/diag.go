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

// Package diag throttles the library's own diagnostic logging.
package diag

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing between diagnostics once the burst
// is spent.
const (
	DefaultInterval = time.Second
	DefaultBurst    = 5
)

// Reporter writes diagnostics to a logger at a bounded rate and counts what
// it suppressed. A nil *Reporter discards everything.
type Reporter struct {
	logger     *slog.Logger
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

// New returns a Reporter allowing burst messages at once and one message per
// interval afterwards. A nil logger discards diagnostics.
func New(logger *slog.Logger, interval time.Duration, burst int) *Reporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if burst < 1 {
		burst = 1
	}
	return &Reporter{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(interval), burst),
	}
}

// Report logs msg unless the rate limit is exhausted. The next message that
// gets through carries the number of suppressed messages.
func (r *Reporter) Report(level slog.Level, msg string, attrs ...slog.Attr) {
	if r == nil {
		return
	}
	if !r.limiter.Allow() {
		r.suppressed.Add(1)
		return
	}
	if n := r.suppressed.Swap(0); n > 0 {
		attrs = append(attrs, slog.Int64("suppressed", n))
	}
	r.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// Suppressed returns how many messages are waiting to be reported as
// suppressed.
func (r *Reporter) Suppressed() int64 {
	if r == nil {
		return 0
	}
	return r.suppressed.Load()
}
