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
	"maps"
	"slices"
)

// Tag names produced by ExtractTags.
const (
	TagLevel   = "level"
	TagHost    = "host"
	TagType    = "type"
	TagApp     = "app"
	TagTraceID = "traceId"

	tagTypeAccess = "access"
)

// TagSet maps tag names to non-empty values.
type TagSet map[string]string

// Keys returns the tag names in ascending order.
func (t TagSet) Keys() []string {
	return slices.Sorted(maps.Keys(t))
}

// ExtractTags derives the tags describing ev. It is a pure function of ev and
// appLabel:
//   - level is always present;
//   - host is present when the event carries a host name;
//   - type=access marks events logged under AccessLogLogger;
//   - app is present when appLabel is non-empty;
//   - traceId is copied from the event context when set.
func ExtractTags(ev *Event, appLabel string) TagSet {
	tags := make(TagSet, 5)
	tags[TagLevel] = Level(ev.Level).String()
	if ev.HostName != "" {
		tags[TagHost] = ev.HostName
	}
	if ev.LoggerName == AccessLogLogger {
		tags[TagType] = tagTypeAccess
	}
	if appLabel != "" {
		tags[TagApp] = appLabel
	}
	if traceID := ev.Context[TagTraceID]; traceID != "" {
		tags[TagTraceID] = traceID
	}
	return tags
}
