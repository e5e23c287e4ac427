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
	"errors"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func mustSerializer(t *testing.T, id string) Serializer {
	t.Helper()
	s, err := LookupSerializer(id)
	if err != nil {
		t.Fatalf("LookupSerializer(%q) returned %v, want nil", id, err)
	}
	return s
}

// TestLookupSerializer resolves identifiers and aliases.
func TestLookupSerializer(t *testing.T) {
	t.Parallel()

	for id, want := range map[string]string{
		"":       SerializerString,
		" JSON ": SerializerJSON,
		"org.apache.kafka.common.serialization.StringSerializer":    SerializerString,
		"org.apache.kafka.common.serialization.ByteArraySerializer": SerializerBytes,
		"zstd": SerializerZstd,
	} {
		if got := mustSerializer(t, id).Name(); got != want {
			t.Errorf("LookupSerializer(%q).Name() = %q, want %q", id, got, want)
		}
	}

	if _, err := LookupSerializer("avro"); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("LookupSerializer(avro) error = %v, want ErrConfiguration", err)
	}
}

// TestTextSerializers checks the pass-through encodings.
func TestTextSerializers(t *testing.T) {
	t.Parallel()

	got, _ := mustSerializer(t, SerializerString).Serialize([]byte("ok\xff"))
	if string(got) != "ok�" {
		t.Fatalf("string Serialize() = %q", got)
	}

	raw := []byte{0x00, 0xff}
	got, _ = mustSerializer(t, SerializerBytes).Serialize(raw)
	if !bytes.Equal(got, raw) {
		t.Fatalf("bytes Serialize() = %v, want %v", got, raw)
	}

	jsonSer := mustSerializer(t, SerializerJSON)
	got, _ = jsonSer.Serialize([]byte(`{"a":1}`))
	if string(got) != `{"a":1}` {
		t.Fatalf("json Serialize(document) = %q", got)
	}
	got, _ = jsonSer.Serialize([]byte(`msg=[say "hi"]`))
	if string(got) != `"msg=[say \"hi\"]"` {
		t.Fatalf("json Serialize(text) = %q", got)
	}
}

// TestJSONSerializerEscapesControlBytes covers text that strconv quoting
// would render with non-JSON escapes.
func TestJSONSerializerEscapesControlBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "escape sequence", in: "\x1b[31mred\x1b[0m", want: "\x1b[31mred\x1b[0m"},
		{name: "bell", in: "bell\x07", want: "bell\x07"},
		{name: "delete", in: "del\x7f", want: "del\x7f"},
		{name: "invalid utf8", in: "bad \xff byte", want: "bad \uFFFD byte"},
	}
	jsonSer := mustSerializer(t, SerializerJSON)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := jsonSer.Serialize([]byte(tc.in))
			if err != nil {
				t.Fatalf("Serialize() returned %v, want nil", err)
			}
			if !json.Valid(got) {
				t.Fatalf("Serialize(%q) = %q, not valid JSON", tc.in, got)
			}
			var decoded string
			if err := json.Unmarshal(got, &decoded); err != nil {
				t.Fatalf("json.Unmarshal() returned %v, want nil", err)
			}
			if decoded != tc.want {
				t.Errorf("decoded = %q, want %q", decoded, tc.want)
			}
		})
	}
}

// TestCompressingSerializers round-trips through the matching readers.
func TestCompressingSerializers(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("msg=[compress me], tags=[level=WARN] "), 32)

	gz, err := mustSerializer(t, SerializerGzip).Serialize(payload)
	if err != nil {
		t.Fatalf("gzip Serialize() returned %v, want nil", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(gz))
	if err != nil {
		t.Fatalf("gzip.NewReader() returned %v, want nil", err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("gzip read returned %v, want nil", err)
	}
	if !bytes.Equal(plain, payload) {
		t.Fatal("gzip round trip mismatch")
	}

	zs, err := mustSerializer(t, SerializerZstd).Serialize(payload)
	if err != nil {
		t.Fatalf("zstd Serialize() returned %v, want nil", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd.NewReader() returned %v, want nil", err)
	}
	defer dec.Close()
	plain, err = dec.DecodeAll(zs, nil)
	if err != nil {
		t.Fatalf("zstd DecodeAll() returned %v, want nil", err)
	}
	if !bytes.Equal(plain, payload) {
		t.Fatal("zstd round trip mismatch")
	}
	if len(zs) >= len(payload) || len(gz) >= len(payload) {
		t.Fatalf("compressed sizes gzip=%d zstd=%d, want < %d", len(gz), len(zs), len(payload))
	}
}
