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

package slogkafkagrpc

import (
	"context"
	"log/slog"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pjscruggs/slogkafka"
)

// fakeServerStream supplies a context to stream interceptors.
type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the stream context.
func (s *fakeServerStream) Context() context.Context {
	return s.ctx
}

func newTaggedLogger(t *testing.T) (*slog.Logger, *slogkafka.MemorySink) {
	t.Helper()

	sink := &slogkafka.MemorySink{}
	h, err := slogkafka.NewHandler(sink, slogkafka.WithHostname("rpc-1"), slogkafka.WithLevel(slog.LevelInfo))
	if err != nil {
		t.Fatalf("NewHandler() returned %v, want nil", err)
	}
	return slog.New(h), sink
}

// TestUnaryServerInterceptorContext stores request values for handlers.
func TestUnaryServerInterceptorContext(t *testing.T) {
	t.Parallel()

	interceptor := UnaryServerInterceptor(WithOTel(false))
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(DefaultRequestIDMetadataKey, "rid-1"))
	info := &grpc.UnaryServerInfo{FullMethod: "/orders.v1.OrderService/GetOrder"}

	var got map[string]string
	resp, err := interceptor(ctx, "req", info, func(ctx context.Context, req any) (any, error) {
		got = slogkafka.ContextValues(ctx)
		return "resp", nil
	})
	if err != nil {
		t.Fatalf("interceptor returned %v, want nil", err)
	}
	if resp != "resp" {
		t.Fatalf("resp = %v, want resp", resp)
	}

	want := map[string]string{
		RequestIDKey: "rid-1",
		ServiceKey:   "orders.v1.OrderService",
		MethodKey:    "GetOrder",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

// TestUnaryServerInterceptorAccessLog writes one tagged access record.
func TestUnaryServerInterceptorAccessLog(t *testing.T) {
	t.Parallel()

	logger, sink := newTaggedLogger(t)
	interceptor := UnaryServerInterceptor(WithLogger(logger), WithAccessLog(true))
	info := &grpc.UnaryServerInfo{FullMethod: "/orders.v1.OrderService/GetOrder"}

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		if slogkafka.Logger(ctx) != logger {
			t.Error("RPC context does not carry the configured logger")
		}
		return nil, status.Error(codes.NotFound, "no such order")
	})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("interceptor error = %v, want NotFound", err)
	}

	msgs := sink.Messages()
	if len(msgs) != 1 {
		t.Fatalf("sink received %d messages, want 1", len(msgs))
	}
	want := "msg=[/orders.v1.OrderService/GetOrder NotFound], tags=[host=rpc-1, level=INFO, type=access]"
	if got := string(msgs[0].Value); got != want {
		t.Fatalf("Value = %q, want %q", got, want)
	}
}

// TestStreamServerInterceptorContext wraps the stream context.
func TestStreamServerInterceptorContext(t *testing.T) {
	t.Parallel()

	interceptor := StreamServerInterceptor()
	stream := &fakeServerStream{ctx: context.Background()}
	info := &grpc.StreamServerInfo{FullMethod: "/chat.Chat/Talk", IsClientStream: true, IsServerStream: true}

	var got map[string]string
	err := interceptor(nil, stream, info, func(srv any, ss grpc.ServerStream) error {
		got = slogkafka.ContextValues(ss.Context())
		return nil
	})
	if err != nil {
		t.Fatalf("interceptor returned %v, want nil", err)
	}
	if got[ServiceKey] != "chat.Chat" || got[MethodKey] != "Talk" {
		t.Fatalf("context values = %v", got)
	}
	if len(got[RequestIDKey]) != 36 {
		t.Fatalf("requestId = %q, want generated UUID", got[RequestIDKey])
	}
}

// TestSplitFullMethod handles well-formed and bare names.
func TestSplitFullMethod(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in, service, method string
	}{
		{"/pkg.Service/Method", "pkg.Service", "Method"},
		{"Method", "", "Method"},
		{"", "", ""},
	}
	for _, tc := range testCases {
		service, method := splitFullMethod(tc.in)
		if service != tc.service || method != tc.method {
			t.Errorf("splitFullMethod(%q) = %q, %q, want %q, %q", tc.in, service, method, tc.service, tc.method)
		}
	}
}

// TestStreamKind names every streaming shape.
func TestStreamKind(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		info grpc.StreamServerInfo
		want string
	}{
		{grpc.StreamServerInfo{IsClientStream: true, IsServerStream: true}, "bidi_stream"},
		{grpc.StreamServerInfo{IsClientStream: true}, "client_stream"},
		{grpc.StreamServerInfo{IsServerStream: true}, "server_stream"},
		{grpc.StreamServerInfo{}, "unary"},
	}
	for _, tc := range testCases {
		if got := streamKind(&tc.info); got != tc.want {
			t.Errorf("streamKind(%+v) = %q, want %q", tc.info, got, tc.want)
		}
	}
}

// TestServerOptions installs the stats handler only when enabled.
func TestServerOptions(t *testing.T) {
	t.Parallel()

	if got := len(ServerOptions()); got != 3 {
		t.Fatalf("len(ServerOptions()) = %d, want 3", got)
	}
	if got := len(ServerOptions(WithOTel(false))); got != 2 {
		t.Fatalf("len(ServerOptions(WithOTel(false))) = %d, want 2", got)
	}
}
