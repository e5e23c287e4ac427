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

// Package slogkafkaasync puts a bounded queue in front of a slogkafka.Sink.
// Messages are drained by worker goroutines so that sinks whose Send blocks
// on the network (such as a Redis stream) never stall the logging call.
//
// Basic usage:
//
//	sink := slogkafkaasync.Wrap(inner,
//		slogkafkaasync.WithQueueSize(4096),
//		slogkafkaasync.WithDropMode(slogkafkaasync.DropModeDropOldest),
//	)
//
// As a handler option:
//
//	h, _ := slogkafka.NewHandler(inner,
//		slogkafka.WithSinkMiddleware(slogkafkaasync.Middleware(
//			slogkafkaasync.WithEnv(), // SLOGKAFKA_ASYNC_* overrides
//		)),
//	)
//
// The following environment variables are recognized when [WithEnv] is
// supplied:
//   - SLOGKAFKA_ASYNC_ENABLED: true/false to toggle the wrapper
//   - SLOGKAFKA_ASYNC_QUEUE_SIZE: channel capacity (0 makes the queue unbuffered)
//   - SLOGKAFKA_ASYNC_DROP_MODE: block | drop_newest | drop_oldest
//   - SLOGKAFKA_ASYNC_WORKERS: number of worker goroutines
//   - SLOGKAFKA_ASYNC_FLUSH_TIMEOUT: duration string used by Close
package slogkafkaasync
