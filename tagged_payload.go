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

import "strings"

// AssembleTagged builds the human-readable payload
//
//	msg=[<message>], stacktrace=[<frames>], tags=[k=v, k=v]
//
// The stacktrace section is present only when errInfo is non-nil and the tags
// section only when tags is non-empty. Tags are written in key order. Values
// are not escaped, so a ']' or ',' inside a value is ambiguous to readers.
func AssembleTagged(message string, tags TagSet, errInfo *ErrorInfo) string {
	var sb strings.Builder
	sb.Grow(len(message) + 64)

	sb.WriteString("msg=[")
	sb.WriteString(message)
	sb.WriteByte(']')

	if errInfo != nil {
		sb.WriteString(", stacktrace=[")
		writeTaggedStack(&sb, errInfo)
		sb.WriteByte(']')
	}

	if len(tags) > 0 {
		sb.WriteString(", tags=[")
		for i, k := range tags.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(tags[k])
		}
		sb.WriteByte(']')
	}
	return sb.String()
}

// writeTaggedStack writes every frame as "  <frame>\n" and continues with
// each cause after a "Caused by:" line.
func writeTaggedStack(sb *strings.Builder, errInfo *ErrorInfo) {
	for depth := 0; errInfo != nil && depth < maxCauseDepth; depth++ {
		if depth > 0 {
			sb.WriteString("Caused by:")
		}
		for _, frame := range errInfo.Frames {
			sb.WriteString("  ")
			sb.WriteString(frame)
			sb.WriteByte('\n')
		}
		errInfo = errInfo.Cause
	}
}
