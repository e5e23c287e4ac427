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
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fastjson"
)

// Serializer identifiers accepted by LookupSerializer.
const (
	SerializerString = "string"
	SerializerBytes  = "bytes"
	SerializerJSON   = "json"
	SerializerGzip   = "gzip"
	SerializerZstd   = "zstd"
)

// serializerAliases maps the class names used by JVM producer configurations
// onto the built-in serializers.
var serializerAliases = map[string]string{
	"org.apache.kafka.common.serialization.StringSerializer":    SerializerString,
	"org.apache.kafka.common.serialization.ByteArraySerializer": SerializerBytes,
}

// Serializer encodes message keys or values before they leave the process.
// Implementations are safe for concurrent use.
type Serializer interface {
	Name() string
	Serialize(data []byte) ([]byte, error)
}

// LookupSerializer resolves an identifier. An empty identifier selects the
// string serializer; unknown identifiers are configuration errors.
func LookupSerializer(id string) (Serializer, error) {
	name := strings.ToLower(strings.TrimSpace(id))
	if alias, ok := serializerAliases[strings.TrimSpace(id)]; ok {
		name = alias
	}
	switch name {
	case "", SerializerString:
		return stringSerializer{}, nil
	case SerializerBytes:
		return bytesSerializer{}, nil
	case SerializerJSON:
		return jsonSerializer{}, nil
	case SerializerGzip:
		return gzipSerializer{}, nil
	case SerializerZstd:
		return sharedZstd()
	default:
		return nil, configErr("Serializer", "unknown serializer %q", id)
	}
}

type stringSerializer struct{}

func (stringSerializer) Name() string { return SerializerString }

// Serialize replaces invalid UTF-8 sequences.
func (stringSerializer) Serialize(data []byte) ([]byte, error) {
	return bytes.ToValidUTF8(data, []byte("�")), nil
}

type bytesSerializer struct{}

func (bytesSerializer) Name() string { return SerializerBytes }

func (bytesSerializer) Serialize(data []byte) ([]byte, error) { return data, nil }

type jsonSerializer struct{}

func (jsonSerializer) Name() string { return SerializerJSON }

// Serialize passes JSON documents through and encodes anything else as a
// JSON string.
func (jsonSerializer) Serialize(data []byte) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	if fastjson.ValidateBytes(data) == nil {
		return data, nil
	}
	return []byte(quoteJSON(string(data))), nil
}

var gzipWriters = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

type gzipSerializer struct{}

func (gzipSerializer) Name() string { return SerializerGzip }

func (gzipSerializer) Serialize(data []byte) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	zw := gzipWriters.Get().(*gzip.Writer)
	defer gzipWriters.Put(zw)
	zw.Reset(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdErr     error
)

// sharedZstd lazily builds one encoder; EncodeAll is safe for concurrent use.
func sharedZstd() (Serializer, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	})
	if zstdErr != nil {
		return nil, configErr("Serializer", "zstd encoder: %v", zstdErr)
	}
	return zstdSerializer{enc: zstdEncoder}, nil
}

type zstdSerializer struct {
	enc *zstd.Encoder
}

func (zstdSerializer) Name() string { return SerializerZstd }

func (s zstdSerializer) Serialize(data []byte) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	return s.enc.EncodeAll(data, nil), nil
}
