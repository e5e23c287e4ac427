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
	"fmt"
)

var (
	// ErrConfiguration is wrapped by every error reported for invalid handler
	// or sink configuration. It is fatal at construction time.
	ErrConfiguration = errors.New("slogkafka: invalid configuration")

	// ErrDisabled is returned by factories when the configuration turns the
	// pipeline off. Callers typically keep their existing handler.
	ErrDisabled = errors.New("slogkafka: handler disabled")

	// ErrRender is wrapped by RenderError.
	ErrRender = errors.New("slogkafka: message render failed")

	// ErrSerialization is wrapped by SerializationError.
	ErrSerialization = errors.New("slogkafka: payload serialization failed")
)

// ConfigurationError describes a configuration field that cannot be used.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("slogkafka: invalid configuration: %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrConfiguration.
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// RenderError reports a template that could not be combined with its
// arguments. The handler recovers from it by publishing the raw template.
type RenderError struct {
	Style    FormatStyle
	Template string
	Reason   string
}

// Error implements error.
func (e *RenderError) Error() string {
	return fmt.Sprintf("slogkafka: render %s template %q: %s", e.Style, e.Template, e.Reason)
}

// Unwrap lets errors.Is match ErrRender.
func (e *RenderError) Unwrap() error { return ErrRender }

// SerializationError reports a structured payload that could not be built.
// The handler recovers from it by falling back to the tagged form.
type SerializationError struct {
	Format PayloadFormat
	Cause  any
}

// Error implements error.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("slogkafka: serialize %s payload: %v", e.Format, e.Cause)
}

// Unwrap lets errors.Is match ErrSerialization.
func (e *SerializationError) Unwrap() error { return ErrSerialization }

// configErr is shorthand for building a ConfigurationError.
func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
