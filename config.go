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
	"fmt"
	"maps"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by ConfigFromEnv.
const EnvPrefix = "SLOGKAFKA_"

// PayloadFormat selects the payload shape produced by the Handler.
type PayloadFormat int

const (
	// FormatTagged produces "msg=[..], stacktrace=[..], tags=[..]" strings.
	FormatTagged PayloadFormat = iota
	// FormatECS produces single-line JSON documents.
	FormatECS
)

// String returns the configuration name of the format.
func (f PayloadFormat) String() string {
	switch f {
	case FormatTagged:
		return "tagged"
	case FormatECS:
		return "ecs"
	default:
		return fmt.Sprintf("PayloadFormat(%d)", int(f))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *PayloadFormat) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "tagged", "text":
		*f = FormatTagged
	case "ecs", "json":
		*f = FormatECS
	default:
		return configErr("Format", "unknown payload format %q", string(text))
	}
	return nil
}

// Config is the full handler and sink configuration. It is read once when a
// handler is built; later changes to a Config value have no effect on
// handlers that were already constructed.
type Config struct {
	// Enabled turns the pipeline on. Factories return ErrDisabled otherwise.
	Enabled bool `env:"ENABLED" envDefault:"false"`
	// BrokerURL is a comma separated list of host:port broker addresses.
	BrokerURL string `env:"BROKER_URL"`
	TopicName string `env:"TOPIC_NAME"`
	// ServiceName is omitted from structured payloads when it equals
	// DefaultServiceName.
	ServiceName string `env:"SERVICE_NAME" envDefault:"default"`
	// Environment falls back to the detected runtime environment when empty.
	Environment       string            `env:"ENVIRONMENT"`
	AppLabel          string            `env:"APP_LABEL"`
	Level             Level             `env:"LEVEL" envDefault:"WARN"`
	IncludeOrigin     bool              `env:"INCLUDE_ORIGIN"`
	StackTraceAsArray bool              `env:"STACK_TRACE_AS_ARRAY"`
	AdditionalFields  map[string]string `env:"ADDITIONAL_FIELDS" envKeyValSeparator:"="`
	KeySerializer     string            `env:"KEY_SERIALIZER" envDefault:"string"`
	ValueSerializer   string            `env:"VALUE_SERIALIZER" envDefault:"string"`
	Format            PayloadFormat     `env:"FORMAT" envDefault:"tagged"`

	// Acks is one of none, one or all.
	Acks         string        `env:"ACKS" envDefault:"one"`
	Compression  string        `env:"COMPRESSION"`
	BatchTimeout time.Duration `env:"BATCH_TIMEOUT" envDefault:"1s"`
	MaxAttempts  int           `env:"MAX_ATTEMPTS" envDefault:"10"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		ServiceName:     DefaultServiceName,
		Level:           LevelWarn,
		KeySerializer:   SerializerString,
		ValueSerializer: SerializerString,
		Format:          FormatTagged,
		Acks:            "one",
		BatchTimeout:    time.Second,
		MaxAttempts:     10,
	}
}

// ConfigFromEnv reads SLOGKAFKA_* variables from the process environment.
// Files, when given, are read as dotenv files first; real environment
// variables take precedence over their entries.
func ConfigFromEnv(files ...string) (Config, error) {
	vars := map[string]string{}
	if len(files) > 0 {
		fileVars, err := godotenv.Read(files...)
		if err != nil {
			return Config{}, fmt.Errorf("slogkafka: read env files: %w", err)
		}
		maps.Copy(vars, fileVars)
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return configFromVars(vars)
}

// configFromVars binds cfg from an explicit variable set.
func configFromVars(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: vars,
	}); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return cfg, nil
}

// Brokers splits BrokerURL into trimmed, non-empty addresses.
func (c Config) Brokers() []string {
	var out []string
	for _, addr := range strings.Split(c.BrokerURL, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// Validate reports the first setting that would prevent an enabled pipeline
// from delivering events. Disabled configurations are always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers()) == 0 {
		return configErr("BrokerURL", "at least one broker address is required")
	}
	if strings.TrimSpace(c.TopicName) == "" {
		return configErr("TopicName", "topic name is required")
	}
	if _, err := LookupSerializer(c.KeySerializer); err != nil {
		return err
	}
	if _, err := LookupSerializer(c.ValueSerializer); err != nil {
		return err
	}
	if c.MaxAttempts < 0 {
		return configErr("MaxAttempts", "must not be negative")
	}
	return nil
}
