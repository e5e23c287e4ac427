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
	"slices"
	"strings"
	"time"

	"github.com/valyala/fastjson"
)

// Field names of the structured payload, in emission order.
const (
	ECSTimestampKey   = "@timestamp"
	ECSLevelKey       = "log.level"
	ECSMessageKey     = "message"
	ECSServiceKey     = "service.name"
	ECSEnvironmentKey = "service.environment"
	ECSThreadKey      = "process.thread.name"
	ECSLoggerKey      = "log.logger"
	ECSOriginKey      = "log.origin"
	ECSErrorTypeKey   = "error.type"
	ECSErrorMsgKey    = "error.message"
	ECSErrorStackKey  = "error.stack_trace"

	// DefaultServiceName is the placeholder service name that is never emitted.
	DefaultServiceName = "default"

	ecsTimeLayout = "2006-01-02T15:04:05.000Z"
)

var ecsReservedKeys = map[string]struct{}{
	ECSTimestampKey:   {},
	ECSLevelKey:       {},
	ECSMessageKey:     {},
	ECSServiceKey:     {},
	ECSEnvironmentKey: {},
	ECSThreadKey:      {},
	ECSLoggerKey:      {},
	ECSOriginKey:      {},
	ECSErrorTypeKey:   {},
	ECSErrorMsgKey:    {},
	ECSErrorStackKey:  {},
}

// ECSOptions configures an ECSFormatter.
type ECSOptions struct {
	ServiceName       string
	Environment       string
	IncludeOrigin     bool
	StackTraceAsArray bool
	AdditionalFields  map[string]string
}

type ecsField struct {
	key   string
	value string
}

// ECSFormatter renders events as single-line JSON documents with a fixed
// field order loosely following the Elastic Common Schema. It is immutable
// and safe for concurrent use.
type ECSFormatter struct {
	serviceName       string
	environment       string
	includeOrigin     bool
	stackTraceAsArray bool
	additional        []ecsField
	additionalKeys    map[string]struct{}
	arenas            *fastjson.ArenaPool
}

// NewECSFormatter validates opts and returns a formatter. Additional fields
// may not reuse the names of the fixed fields.
func NewECSFormatter(opts ECSOptions) (*ECSFormatter, error) {
	f := &ECSFormatter{
		environment:       opts.Environment,
		includeOrigin:     opts.IncludeOrigin,
		stackTraceAsArray: opts.StackTraceAsArray,
		additionalKeys:    make(map[string]struct{}, len(opts.AdditionalFields)),
		arenas:            new(fastjson.ArenaPool),
	}
	if opts.ServiceName != DefaultServiceName {
		f.serviceName = opts.ServiceName
	}

	for _, key := range slices.Sorted(maps.Keys(opts.AdditionalFields)) {
		if key == "" {
			return nil, configErr("AdditionalFields", "empty field name")
		}
		if _, reserved := ecsReservedKeys[key]; reserved {
			return nil, configErr("AdditionalFields", "field %q collides with a built-in field", key)
		}
		f.additional = append(f.additional, ecsField{key: key, value: opts.AdditionalFields[key]})
		f.additionalKeys[key] = struct{}{}
	}
	return f, nil
}

// Format renders ev with the already rendered message. Context entries whose
// keys collide with fixed or additional fields are skipped.
func (f *ECSFormatter) Format(ev *Event, message string) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, &SerializationError{Format: FormatECS, Cause: r}
		}
	}()

	a := f.arenas.Get()
	defer f.arenas.Put(a)

	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	o := a.NewObject()
	o.Set(ECSTimestampKey, jsonString(a, ts.UTC().Format(ecsTimeLayout)))
	o.Set(ECSLevelKey, jsonString(a, Level(ev.Level).String()))
	o.Set(ECSMessageKey, jsonString(a, message))
	if f.serviceName != "" {
		o.Set(ECSServiceKey, jsonString(a, f.serviceName))
	}
	o.Set(ECSEnvironmentKey, nullableString(a, f.environment))
	o.Set(ECSThreadKey, nullableString(a, ev.ThreadName))
	o.Set(ECSLoggerKey, nullableString(a, ev.LoggerName))

	for _, key := range slices.Sorted(maps.Keys(ev.Context)) {
		if _, reserved := ecsReservedKeys[key]; reserved {
			continue
		}
		if _, shadowed := f.additionalKeys[key]; shadowed {
			continue
		}
		o.Set(jsonKey(key), jsonString(a, ev.Context[key]))
	}

	if f.includeOrigin && ev.Origin != nil && ev.Origin.File != "" && ev.Origin.Function != "" {
		origin := a.NewObject()
		origin.Set("file.name", jsonString(a, ev.Origin.File))
		origin.Set("function", jsonString(a, ev.Origin.Function))
		origin.Set("file.line", a.NewNumberInt(ev.Origin.Line))
		o.Set(ECSOriginKey, origin)
	}

	for _, field := range f.additional {
		o.Set(jsonKey(field.key), nullableString(a, field.value))
	}

	if ev.Err != nil {
		o.Set(ECSErrorTypeKey, jsonString(a, ev.Err.Type))
		o.Set(ECSErrorMsgKey, jsonString(a, ev.Err.Message))
		lines := stackTraceLines(ev.Err)
		if f.stackTraceAsArray {
			arr := a.NewArray()
			for i, line := range lines {
				arr.SetArrayItem(i, jsonString(a, line))
			}
			o.Set(ECSErrorStackKey, arr)
		} else {
			o.Set(ECSErrorStackKey, jsonString(a, strings.Join(lines, "\n")))
		}
	}

	out = o.MarshalTo(nil)
	if err := fastjson.ValidateBytes(out); err != nil {
		return nil, &SerializationError{Format: FormatECS, Cause: err}
	}
	return out, nil
}

// nullableString maps an empty string to JSON null.
func nullableString(a *fastjson.Arena, s string) *fastjson.Value {
	if s == "" {
		return a.NewNull()
	}
	return jsonString(a, s)
}

// stackTraceLines renders an error chain one line per entry:
//
//	*errors.errorString: boom
//	\tat main.run(/src/main.go:12)
//	Caused by: *fs.PathError: open x: no such file
func stackTraceLines(errInfo *ErrorInfo) []string {
	var lines []string
	for depth := 0; errInfo != nil && depth < maxCauseDepth; depth++ {
		head := fmt.Sprintf("%s: %s", errInfo.Type, errInfo.Message)
		if depth > 0 {
			head = "Caused by: " + head
		}
		lines = append(lines, head)
		for _, frame := range errInfo.Frames {
			lines = append(lines, "\tat "+frame)
		}
		errInfo = errInfo.Cause
	}
	return lines
}
