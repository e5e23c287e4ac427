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
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/valyala/fastjson"
)

// quoteJSON returns s as a quoted JSON string literal. Invalid UTF-8 is
// replaced with U+FFFD and control characters use \u escapes.
func quoteJSON(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// jsonString builds a string value whose serialized form is the
// encoding/json literal for s. fastjson writes number values verbatim, so
// the pre-quoted literal is carried through MarshalTo unchanged.
func jsonString(a *fastjson.Arena, s string) *fastjson.Value {
	return a.NewNumberString(quoteJSON(s))
}

// jsonKey rewrites an object key so fastjson can emit it without escaping.
// Quotes, backslashes and control characters become '_'.
func jsonKey(key string) string {
	clean := true
	for i := 0; i < len(key); i++ {
		if c := key[i]; c < 0x20 || c == '"' || c == '\\' {
			clean = false
			break
		}
	}
	if clean && utf8.ValidString(key) {
		return key
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, strings.ToValidUTF8(key, "�"))
}
