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
	"context"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/pjscruggs/slogkafka/internal/diag"
)

// Reserved record attribute keys.
const (
	// LoggerKey names the logger that emitted a record. See LoggerName.
	LoggerKey = "logger"
	// FormatArgsKey carries template arguments. See FormatArgs.
	FormatArgsKey = "slogkafka.args"
)

// Handler filters, enriches, renders and assembles log events and hands the
// resulting payloads to a Sink. Its configuration is fixed at construction;
// build a new Handler to change it. Handler implements slog.Handler and is
// safe for concurrent use.
type Handler struct {
	p          *pipeline
	loggerName string
	attrs      []contextAttr
	groups     []string
}

type contextAttr struct {
	key   string
	value string
}

// pipeline is the immutable state shared by a Handler and its derivatives.
type pipeline struct {
	minLevel      slog.Level
	appLabel      string
	hostname      string
	format        PayloadFormat
	includeOrigin bool
	structured    func(*Event, string) ([]byte, error)
	sink          Sink
	metrics       *Metrics
	diag          *diag.Reporter

	closeOnce sync.Once
	closeErr  error
}

// NewHandler builds a Handler delivering to sink. Without options it keeps
// WARN and above, uses the tagged payload format and detects the host name.
//
// Example:
//
//	h, err := slogkafka.NewHandler(sink,
//		slogkafka.WithLevel(slog.LevelInfo),
//		slogkafka.WithAppLabel("orders"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer h.Close()
//	logger := slog.New(h)
func NewHandler(sink Sink, opts ...Option) (*Handler, error) {
	if sink == nil {
		return nil, configErr("Sink", "a sink is required")
	}

	defaults := DefaultConfig()
	builder := &options{}
	WithConfig(defaults)(builder)
	for _, opt := range opts {
		if opt != nil {
			opt(builder)
		}
	}

	internalLogger := builder.internalLogger
	if internalLogger == nil {
		internalLogger = slog.New(slog.DiscardHandler)
	}

	runtimeInfo := DetectRuntimeInfo()
	environment := *builder.environment
	if environment == "" {
		environment = runtimeInfo.Environment
	}
	hostname := runtimeInfo.Hostname
	if builder.hostname != nil {
		hostname = *builder.hostname
	}

	ecs, err := NewECSFormatter(ECSOptions{
		ServiceName:       *builder.serviceName,
		Environment:       environment,
		IncludeOrigin:     *builder.includeOrigin,
		StackTraceAsArray: *builder.stackTraceAsArray,
		AdditionalFields:  builder.additionalFields,
	})
	if err != nil {
		return nil, err
	}

	switch *builder.format {
	case FormatTagged, FormatECS:
	default:
		return nil, configErr("Format", "unknown payload format %d", int(*builder.format))
	}

	for i := len(builder.middlewares) - 1; i >= 0; i-- {
		sink = builder.middlewares[i](sink)
	}

	p := &pipeline{
		minLevel:      *builder.level,
		appLabel:      *builder.appLabel,
		hostname:      hostname,
		format:        *builder.format,
		includeOrigin: *builder.includeOrigin,
		structured:    ecs.Format,
		sink:          sink,
		metrics:       builder.metrics,
		diag:          diag.New(internalLogger, diag.DefaultInterval, diag.DefaultBurst),
	}

	h := &Handler{p: p}
	if builder.loggerName != nil {
		h.loggerName = *builder.loggerName
	}
	return h, nil
}

// Level returns the minimum level the handler publishes.
func (h *Handler) Level() slog.Level {
	return h.p.minLevel
}

// Enabled reports whether level reaches the configured minimum.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.p.minLevel
}

// Handle converts r into an Event and publishes it. It never returns an
// error; failures are counted and reported to the internal logger.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < h.p.minLevel {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer h.p.recoverDrop()

	h.p.publish(ctx, h.eventFromRecord(ctx, r))
	return nil
}

// Publish runs ev through the pipeline. Events below the minimum level are
// ignored without side effects. Publish never panics and never blocks on the
// broker.
func (h *Handler) Publish(ctx context.Context, ev *Event) {
	if ev == nil || ev.Level < h.p.minLevel {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer h.p.recoverDrop()

	h.p.publish(ctx, ev)
}

// WithAttrs returns a handler that adds attrs to the context of every event.
// A LoggerKey attribute outside any group sets the logger name instead.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	child := h.clone()
	prefix := h.groupPrefix()
	for _, attr := range attrs {
		attr.Value = attr.Value.Resolve()
		if prefix == "" && attr.Key == LoggerKey && attr.Value.Kind() == slog.KindString {
			child.loggerName = attr.Value.String()
			continue
		}
		flattenAttr(prefix, attr, func(key, value string) {
			child.attrs = append(child.attrs, contextAttr{key: key, value: value})
		})
	}
	return child
}

// WithGroup returns a handler that prefixes later attribute keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	child := h.clone()
	child.groups = append(child.groups, name)
	return child
}

// Close closes the sink. Later calls return the first result.
func (h *Handler) Close() error {
	h.p.closeOnce.Do(func() {
		h.p.closeErr = h.p.sink.Close()
	})
	return h.p.closeErr
}

// clone copies h with independent attr and group slices.
func (h *Handler) clone() *Handler {
	return &Handler{
		p:          h.p,
		loggerName: h.loggerName,
		attrs:      append([]contextAttr(nil), h.attrs...),
		groups:     append([]string(nil), h.groups...),
	}
}

// groupPrefix joins the open groups as "a.b.".
func (h *Handler) groupPrefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}

// eventFromRecord gathers everything the pipeline needs from r and ctx.
func (h *Handler) eventFromRecord(ctx context.Context, r slog.Record) *Event {
	ev := &Event{
		Time:       r.Time,
		Level:      r.Level,
		LoggerName: h.loggerName,
		Message:    r.Message,
		ThreadName: goroutineName(),
		HostName:   h.p.hostname,
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	values := make(map[string]string, len(h.attrs)+r.NumAttrs()+2)
	maps.Copy(values, contextValues(ctx))
	for _, attr := range h.attrs {
		values[attr.key] = attr.value
	}

	prefix := h.groupPrefix()
	r.Attrs(func(attr slog.Attr) bool {
		attr.Value = attr.Value.Resolve()
		switch {
		case attr.Key == LoggerKey && attr.Value.Kind() == slog.KindString:
			ev.LoggerName = attr.Value.String()
			return true
		case attr.Key == FormatArgsKey:
			if fa, ok := attr.Value.Any().(formatArgs); ok {
				ev.Style = fa.style
				ev.Args = fa.args
				return true
			}
		}
		if err, ok := attrError(attr.Value); ok {
			if ev.Err == nil {
				ev.Err = NewErrorInfo(err)
			}
			return true
		}
		flattenAttr(prefix, attr, func(key, value string) {
			values[key] = value
		})
		return true
	})

	addTraceContext(ctx, values)
	ev.Context = values

	if h.p.includeOrigin {
		ev.Origin = originFromPC(r.PC)
	}
	return ev
}

// publish runs the pipeline steps after level filtering.
func (p *pipeline) publish(ctx context.Context, ev *Event) {
	tags := ExtractTags(ev, p.appLabel)

	message, err := RenderMessage(ev.Message, ev.Args, ev.Style)
	if err != nil {
		p.metrics.RenderFallback()
		p.diag.Report(slog.LevelWarn, "slogkafka: publishing raw template after render error",
			slog.Any("error", err))
		message = ev.Message
	}

	value, contentType := p.assemble(ev, message, tags)

	headers := map[string]string{HeaderContentType: contentType}
	injectTraceHeaders(ctx, headers)

	msgTime := ev.Time
	if msgTime.IsZero() {
		msgTime = time.Now()
	}

	p.sink.Send(ctx, Message{
		Key:     messageKey(ev),
		Value:   value,
		Headers: headers,
		Time:    msgTime,
	})
	p.metrics.EventPublished()
}

// assemble builds the payload in the configured format. Structured failures
// fall back to the tagged form.
func (p *pipeline) assemble(ev *Event, message string, tags TagSet) ([]byte, string) {
	if p.format == FormatECS {
		out, err := p.structured(ev, message)
		if err == nil {
			return out, contentTypeJSON
		}
		p.metrics.FormatFallback()
		p.diag.Report(slog.LevelWarn, "slogkafka: structured payload failed, using tagged form",
			slog.Any("error", err))
	}
	return []byte(AssembleTagged(message, tags, ev.Err)), contentTypeText
}

// recoverDrop turns a panic inside the pipeline into a dropped event.
func (p *pipeline) recoverDrop() {
	if r := recover(); r != nil {
		p.metrics.EventDropped()
		p.diag.Report(slog.LevelError, "slogkafka: dropped event after panic",
			slog.String("panic", fmt.Sprint(r)))
	}
}

// messageKey keys messages by trace so one trace lands on one partition.
func messageKey(ev *Event) []byte {
	if traceID := ev.TraceID(); traceID != "" {
		return []byte(traceID)
	}
	return nil
}

// attrError reports whether v holds an error.
func attrError(v slog.Value) (error, bool) {
	if v.Kind() != slog.KindAny {
		return nil, false
	}
	err, ok := v.Any().(error)
	return err, ok && err != nil
}

// flattenAttr walks attr, calling emit with dotted keys and string values.
// Empty attributes are skipped and groups without a key are inlined.
func flattenAttr(prefix string, attr slog.Attr, emit func(key, value string)) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	if attr.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if attr.Key != "" {
			groupPrefix = prefix + attr.Key + "."
		}
		for _, child := range attr.Value.Group() {
			flattenAttr(groupPrefix, child, emit)
		}
		return
	}
	if attr.Key == "" {
		return
	}
	emit(prefix+attr.Key, valueString(attr.Value))
}

// valueString renders an attribute value for the context map.
func valueString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindAny:
		switch t := v.Any().(type) {
		case error:
			return t.Error()
		case []byte:
			return string(t)
		case fmt.Stringer:
			return t.String()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

type formatArgs struct {
	style FormatStyle
	args  []any
}

// FormatArgs returns an attribute marking the record message as a template
// of the given style with args as its arguments.
func FormatArgs(style FormatStyle, args ...any) slog.Attr {
	return slog.Any(FormatArgsKey, formatArgs{style: style, args: args})
}

// LoggerName returns an attribute naming the emitting logger. Use it with
// slog.Logger.With to give a logger a name, or on single records.
func LoggerName(name string) slog.Attr {
	return slog.String(LoggerKey, name)
}

// Printf logs a printf-style template with args at level. Rendering happens
// in the handler, so suppressed levels cost no formatting.
func Printf(ctx context.Context, logger *slog.Logger, level slog.Level, format string, args ...any) {
	logTemplate(ctx, logger, level, FormatPrintf, format, args)
}

// MessageFormat logs an indexed template such as "user {0} has {1} items".
func MessageFormat(ctx context.Context, logger *slog.Logger, level slog.Level, pattern string, args ...any) {
	logTemplate(ctx, logger, level, FormatMessageFormat, pattern, args)
}

// logTemplate emits a record whose PC points at the caller of Printf or
// MessageFormat.
func logTemplate(ctx context.Context, logger *slog.Logger, level slog.Level, style FormatStyle, template string, args []any) {
	if logger == nil {
		logger = Logger(ctx)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !logger.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, template, pcs[0])
	if len(args) > 0 {
		r.AddAttrs(FormatArgs(style, args...))
	}
	_ = logger.Handler().Handle(ctx, r)
}
