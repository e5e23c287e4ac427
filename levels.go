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
	"log/slog"
	"strconv"
	"strings"
)

// Level is the severity of a log event. It shares the integer space of
// slog.Level and adds TRACE below DEBUG and FATAL above ERROR.
type Level slog.Level

const (
	// LevelTrace is the most verbose level.
	LevelTrace Level = -8
	// LevelDebug matches slog.LevelDebug.
	LevelDebug Level = Level(slog.LevelDebug)
	// LevelInfo matches slog.LevelInfo.
	LevelInfo Level = Level(slog.LevelInfo)
	// LevelWarn matches slog.LevelWarn and is the default handler threshold.
	LevelWarn Level = Level(slog.LevelWarn)
	// LevelError matches slog.LevelError.
	LevelError Level = Level(slog.LevelError)
	// LevelFatal marks events logged right before the process gives up.
	LevelFatal Level = 12
)

var levelNames = []struct {
	level Level
	name  string
}{
	{LevelTrace, "TRACE"},
	{LevelDebug, "DEBUG"},
	{LevelInfo, "INFO"},
	{LevelWarn, "WARN"},
	{LevelError, "ERROR"},
	{LevelFatal, "FATAL"},
}

// levelAliases accepts the names java.util.logging style configurations use.
var levelAliases = map[string]Level{
	"ALL":     LevelTrace,
	"FINEST":  LevelTrace,
	"FINER":   LevelTrace,
	"FINE":    LevelDebug,
	"CONFIG":  LevelInfo,
	"WARNING": LevelWarn,
	"SEVERE":  LevelError,
}

// String returns the level name. Values between named levels are rendered as
// the nearest lower name plus an offset, e.g. "INFO+2".
func (l Level) String() string {
	if l < LevelTrace {
		return fmt.Sprintf("TRACE%d", int(l-LevelTrace))
	}
	base := levelNames[0]
	for _, candidate := range levelNames {
		if l < candidate.level {
			break
		}
		base = candidate
	}
	if l == base.level {
		return base.name
	}
	return fmt.Sprintf("%s+%d", base.name, int(l-base.level))
}

// Level implements slog.Leveler.
func (l Level) Level() slog.Level {
	return slog.Level(l)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so levels can be read from
// environment variables and configuration files.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel converts a level name such as "warn", "WARNING" or "INFO+2" into
// a Level. Names are case-insensitive.
func ParseLevel(s string) (Level, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	if raw == "" {
		return 0, fmt.Errorf("slogkafka: empty level name")
	}

	name, offset := raw, 0
	if i := strings.IndexAny(raw, "+-"); i > 0 {
		n, err := strconv.Atoi(raw[i:])
		if err != nil {
			return 0, fmt.Errorf("slogkafka: invalid level %q: %w", s, err)
		}
		name, offset = raw[:i], n
	}

	if alias, ok := levelAliases[name]; ok {
		return alias + Level(offset), nil
	}
	for _, candidate := range levelNames {
		if candidate.name == name {
			return candidate.level + Level(offset), nil
		}
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return Level(n), nil
	}
	return 0, fmt.Errorf("slogkafka: unknown level %q", s)
}
