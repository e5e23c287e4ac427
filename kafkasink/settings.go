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

package kafkasink

import (
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/pjscruggs/slogkafka"
)

// ParseAcks maps none/one/all (or 0/1/-1) onto kafka-go acknowledgment
// levels. An empty value selects one.
func ParseAcks(raw string) (kafka.RequiredAcks, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none", "0":
		return kafka.RequireNone, nil
	case "", "one", "1", "leader":
		return kafka.RequireOne, nil
	case "all", "-1":
		return kafka.RequireAll, nil
	default:
		return 0, &slogkafka.ConfigurationError{Field: "Acks", Reason: fmt.Sprintf("unknown acknowledgment level %q", raw)}
	}
}

// ParseCompression maps codec names onto kafka-go compression codecs. An
// empty value or "none" disables compression.
func ParseCompression(raw string) (kafka.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	default:
		return 0, &slogkafka.ConfigurationError{Field: "Compression", Reason: fmt.Sprintf("unknown codec %q", raw)}
	}
}

// formatLog renders a printf-style log line from kafka-go.
func formatLog(msg string, args ...any) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
