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

// Package slogkafka ships structured log records to a message broker. It
// builds on the standard library's [log/slog] package: a [Handler] filters
// records by level, enriches them with tags and request context, renders
// their message templates, assembles a payload and hands it to a [Sink]
// without waiting for the broker.
//
// # Pipeline
//
// Every event passes through the same steps:
//   - events below the configured level are ignored;
//   - [ExtractTags] derives level, host, type, app and traceId tags;
//   - [RenderMessage] applies printf-style or indexed ({0}) arguments, falling
//     back to the raw template when they do not fit;
//   - the payload is either the tagged form built by [AssembleTagged] or a
//     single-line JSON document built by [ECSFormatter];
//   - the payload is sent through the [Sink], keyed by trace id.
//
// Logging failures never reach the caller. Render and serialization errors
// degrade the payload; delivery errors are handled inside the sink.
//
// # Subpackages
//
//   - [github.com/pjscruggs/slogkafka/kafkasink] delivers to Kafka topics.
//   - [github.com/pjscruggs/slogkafka/redissink] delivers to Redis streams.
//   - [github.com/pjscruggs/slogkafka/slogkafkaasync] puts a bounded queue in
//     front of any sink.
//   - [github.com/pjscruggs/slogkafka/slogkafkahttp] and
//     [github.com/pjscruggs/slogkafka/slogkafkagrpc] attach request ids and
//     trace ids to request contexts and can write access records.
//
// # Quick Start
//
//	cfg, err := slogkafka.ConfigFromEnv()
//	if err != nil {
//		log.Fatal(err)
//	}
//	handler, err := kafkasink.NewHandler(cfg)
//	if errors.Is(err, slogkafka.ErrDisabled) {
//		// keep the default logger
//	} else if err != nil {
//		log.Fatal(err)
//	}
//	defer handler.Close()
//
//	logger := slog.New(handler).With(slogkafka.LoggerName("orders"))
//	slogkafka.Printf(ctx, logger, slog.LevelWarn, "retrying %s after %d attempts", id, n)
//
// # Configuration
//
// [ConfigFromEnv] reads SLOGKAFKA_* variables (optionally seeded from dotenv
// files); functional options such as [WithLevel], [WithFormat] and
// [WithAdditionalFields] adjust handlers programmatically.
package slogkafka
