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
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// RenderMessage combines template with args according to style. Empty args
// always return template unchanged. When args cannot be applied a
// *RenderError is returned and the caller is expected to fall back to the raw
// template.
func RenderMessage(template string, args []any, style FormatStyle) (string, error) {
	if len(args) == 0 {
		return template, nil
	}
	switch style {
	case FormatPrintf:
		return renderPrintf(template, args)
	case FormatMessageFormat:
		return renderMessageFormat(template, args)
	default:
		return template, nil
	}
}

// renderPrintf applies fmt verbs. Operand count mismatches, bad argument
// indexes, verbs that do not apply to their operand and non-integer '*'
// operands are reported as *RenderError. Each directive is checked on its
// own, so argument text that happens to contain "%!" is rendered as is.
func renderPrintf(template string, args []any) (string, error) {
	verbs, reordered, reason := parsePrintfVerbs(template)
	if reason != "" {
		return "", &RenderError{Style: FormatPrintf, Template: template, Reason: reason}
	}

	want := 0
	for _, v := range verbs {
		if v.verb == 0 {
			return "", &RenderError{Style: FormatPrintf, Template: template, Reason: "template ends with a bare '%'"}
		}
		for _, idx := range v.operands {
			want = max(want, idx+1)
		}
	}
	if want > len(args) || (!reordered && want < len(args)) {
		return "", &RenderError{
			Style:    FormatPrintf,
			Template: template,
			Reason:   fmt.Sprintf("template needs %d operands, got %d", want, len(args)),
		}
	}

	for _, v := range verbs {
		operands := make([]any, len(v.operands))
		for i, idx := range v.operands {
			operands[i] = args[idx]
		}
		arg := operands[len(operands)-1]
		for _, star := range operands[:len(operands)-1] {
			if !isInteger(star) {
				return "", &RenderError{
					Style:    FormatPrintf,
					Template: template,
					Reason:   fmt.Sprintf("%s: width or precision operand is %T, not an integer", v.spec, star),
				}
			}
		}
		if badVerb(v.verb, fmt.Sprintf(v.spec, operands...), arg) {
			return "", &RenderError{
				Style:    FormatPrintf,
				Template: template,
				Reason:   fmt.Sprintf("%s does not apply to %T", v.spec, arg),
			}
		}
	}
	return fmt.Sprintf(template, args...), nil
}

// printfVerb is one operand-consuming directive such as "%-*.2f". spec has
// any explicit argument indexes removed and operands holds the zero-based
// argument numbers it reads, '*' operands first. A zero verb marks a '%'
// left dangling at the end of the template.
type printfVerb struct {
	spec     string
	verb     rune
	operands []int
}

// parsePrintfVerbs lists the directives of template, tracking argument
// numbers the way fmt does. "%%" consumes nothing and is skipped.
func parsePrintfVerbs(template string) (verbs []printfVerb, reordered bool, reason string) {
	argNum := 0
	for i := 0; i < len(template); i++ {
		if template[i] != '%' {
			continue
		}
		var spec strings.Builder
		spec.WriteByte('%')
		var operands []int
		i++
		for i < len(template) && strings.IndexByte("+-# 0", template[i]) >= 0 {
			spec.WriteByte(template[i])
			i++
		}

		// width
		if i, argNum, reason = printfArgIndex(template, i, argNum, &reordered); reason != "" {
			return nil, reordered, reason
		}
		if i < len(template) && template[i] == '*' {
			operands = append(operands, argNum)
			argNum++
			spec.WriteByte('*')
			i++
		}
		i = copyDigits(&spec, template, i)

		// precision
		if i < len(template) && template[i] == '.' {
			spec.WriteByte('.')
			i++
			if i, argNum, reason = printfArgIndex(template, i, argNum, &reordered); reason != "" {
				return nil, reordered, reason
			}
			if i < len(template) && template[i] == '*' {
				operands = append(operands, argNum)
				argNum++
				spec.WriteByte('*')
				i++
			}
			i = copyDigits(&spec, template, i)
		}

		if i, argNum, reason = printfArgIndex(template, i, argNum, &reordered); reason != "" {
			return nil, reordered, reason
		}
		if i >= len(template) {
			verbs = append(verbs, printfVerb{spec: spec.String(), operands: operands})
			break
		}
		verb, size := utf8.DecodeRuneInString(template[i:])
		i += size - 1
		if verb == '%' {
			continue
		}
		spec.WriteRune(verb)
		verbs = append(verbs, printfVerb{spec: spec.String(), verb: verb, operands: append(operands, argNum)})
		argNum++
	}
	return verbs, reordered, ""
}

// printfArgIndex consumes an explicit "[n]" at template[i:] and returns the
// position after it with the zero-based argument number it selects.
func printfArgIndex(template string, i, argNum int, reordered *bool) (int, int, string) {
	if i >= len(template) || template[i] != '[' {
		return i, argNum, ""
	}
	end := strings.IndexByte(template[i:], ']')
	if end < 0 {
		return i, argNum, "unterminated argument index"
	}
	n, err := strconv.Atoi(template[i+1 : i+end])
	if err != nil || n < 1 {
		return i, argNum, fmt.Sprintf("bad argument index %q", template[i:i+end+1])
	}
	*reordered = true
	return i + end + 1, n - 1, ""
}

func copyDigits(sb *strings.Builder, template string, i int) int {
	for i < len(template) && template[i] >= '0' && template[i] <= '9' {
		sb.WriteByte(template[i])
		i++
	}
	return i
}

// badVerb reports whether out is fmt's "%!c(type=value)" diagnostic for
// applying verb to arg. 'v' and 'T' accept every operand.
func badVerb(verb rune, out string, arg any) bool {
	if verb == 'v' || verb == 'T' {
		return false
	}
	prefix := "%!" + string(verb) + "("
	if arg == nil {
		return out == prefix+"<nil>)"
	}
	return strings.HasPrefix(out, prefix+reflect.TypeOf(arg).String()+"=") && strings.HasSuffix(out, ")")
}

func isInteger(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	default:
		return false
	}
}

// renderMessageFormat substitutes {n} and {n,type[,style]} placeholders.
// A single quote starts a quoted section in which braces are literal and two
// consecutive quotes produce one literal quote.
func renderMessageFormat(template string, args []any) (string, error) {
	var sb strings.Builder
	sb.Grow(len(template) + 16*len(args))

	inQuote := false
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch {
		case c == '\'':
			if i+1 < len(template) && template[i+1] == '\'' {
				sb.WriteByte('\'')
				i++
				continue
			}
			inQuote = !inQuote
		case inQuote:
			sb.WriteByte(c)
		case c == '{':
			end, err := matchingBrace(template, i)
			if err != nil {
				return "", err
			}
			value, err := formatPlaceholder(template, template[i+1:end], args)
			if err != nil {
				return "", err
			}
			sb.WriteString(value)
			i = end
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

// matchingBrace finds the '}' closing the placeholder opened at start.
func matchingBrace(template string, start int) (int, error) {
	depth := 0
	for j := start; j < len(template); j++ {
		switch template[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j, nil
			}
		}
	}
	return 0, &RenderError{Style: FormatMessageFormat, Template: template, Reason: "unmatched '{'"}
}

// formatPlaceholder renders one placeholder body such as "0" or "1,number,integer".
func formatPlaceholder(template, body string, args []any) (string, error) {
	parts := strings.SplitN(body, ",", 3)
	index, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || index < 0 {
		return "", &RenderError{
			Style:    FormatMessageFormat,
			Template: template,
			Reason:   fmt.Sprintf("invalid argument index %q", parts[0]),
		}
	}
	if index >= len(args) {
		return "", &RenderError{
			Style:    FormatMessageFormat,
			Template: template,
			Reason:   fmt.Sprintf("argument index %d out of range for %d arguments", index, len(args)),
		}
	}

	var kind, style string
	if len(parts) > 1 {
		kind = strings.ToLower(strings.TrimSpace(parts[1]))
	}
	if len(parts) > 2 {
		style = strings.ToLower(strings.TrimSpace(parts[2]))
	}

	value := args[index]
	switch kind {
	case "":
		return formatValue(value), nil
	case "number":
		f, ok := toFloat(value)
		if !ok {
			return "", &RenderError{
				Style:    FormatMessageFormat,
				Template: template,
				Reason:   fmt.Sprintf("argument %d is %T, not a number", index, value),
			}
		}
		return formatNumber(f, style), nil
	case "date", "time":
		t, ok := value.(time.Time)
		if !ok {
			return "", &RenderError{
				Style:    FormatMessageFormat,
				Template: template,
				Reason:   fmt.Sprintf("argument %d is %T, not a time", index, value),
			}
		}
		if kind == "date" {
			return t.Format(time.DateOnly), nil
		}
		return t.Format(time.TimeOnly), nil
	default:
		return "", &RenderError{
			Style:    FormatMessageFormat,
			Template: template,
			Reason:   fmt.Sprintf("unsupported format type %q", kind),
		}
	}
}

// formatValue renders an argument without an explicit format type.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// formatNumber renders f for the "number" type and its styles.
func formatNumber(f float64, style string) string {
	switch style {
	case "integer":
		return strconv.FormatFloat(math.RoundToEven(f), 'f', 0, 64)
	case "percent":
		return strconv.FormatFloat(math.RoundToEven(f*100), 'f', 0, 64) + "%"
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

// toFloat widens numeric arguments.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
