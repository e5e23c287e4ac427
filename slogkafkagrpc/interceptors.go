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

// Package slogkafkagrpc provides gRPC server interceptors that attach
// request ids and trace ids to RPC contexts so that slogkafka events carry
// them, and optionally write one access record per RPC.
package slogkafkagrpc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pjscruggs/slogkafka"
)

// Context keys set for every RPC.
const (
	RequestIDKey = "requestId"
	ServiceKey   = "rpc.service"
	MethodKey    = "rpc.method"
)

// UnaryServerInterceptor enriches the context of unary RPCs.
func UnaryServerInterceptor(opts ...Option) grpc.UnaryServerInterceptor {
	cfg := applyOptions(opts)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx = enrichContext(ctx, cfg, info.FullMethod)

		resp, err := handler(ctx, req)
		logAccess(ctx, cfg, info.FullMethod, "unary", err, time.Since(start))
		return resp, err
	}
}

// StreamServerInterceptor enriches the context of streaming RPCs.
func StreamServerInterceptor(opts ...Option) grpc.StreamServerInterceptor {
	cfg := applyOptions(opts)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		ctx := enrichContext(ss.Context(), cfg, info.FullMethod)

		err := handler(srv, &serverStream{ServerStream: ss, ctx: ctx})
		logAccess(ctx, cfg, info.FullMethod, streamKind(info), err, time.Since(start))
		return err
	}
}

// ServerOptions returns grpc.ServerOptions installing the otelgrpc stats
// handler and both interceptors.
func ServerOptions(opts ...Option) []grpc.ServerOption {
	cfg := applyOptions(opts)
	var serverOpts []grpc.ServerOption

	if cfg.enableOTel {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler(statsHandlerOptions(cfg)...)))
	}

	serverOpts = append(serverOpts,
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(opts...)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(opts...)),
	)
	return serverOpts
}

// statsHandlerOptions configures otelgrpc instrumentation.
func statsHandlerOptions(cfg *config) []otelgrpc.Option {
	var opts []otelgrpc.Option
	if cfg.tracerProvider != nil {
		opts = append(opts, otelgrpc.WithTracerProvider(cfg.tracerProvider))
	}
	if cfg.propagators != nil {
		opts = append(opts, otelgrpc.WithPropagators(cfg.propagators))
	}
	return opts
}

// enrichContext stores the request id, method and trace ids in ctx.
func enrichContext(ctx context.Context, cfg *config, fullMethod string) context.Context {
	requestID := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(cfg.requestIDKey); len(vals) > 0 {
			requestID = vals[0]
		}
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	service, method := splitFullMethod(fullMethod)
	kv := []string{
		RequestIDKey, requestID,
		ServiceKey, service,
		MethodKey, method,
	}
	if traceID, spanID, ok := slogkafka.ExtractTraceSpan(ctx); ok {
		kv = append(kv, slogkafka.ContextTraceIDKey, traceID, slogkafka.ContextSpanIDKey, spanID)
	}
	ctx = slogkafka.WithContextValues(ctx, kv...)
	if cfg.logger != nil {
		ctx = slogkafka.ContextWithLogger(ctx, cfg.logger)
	}
	return ctx
}

// logAccess writes the access record for a finished RPC.
func logAccess(ctx context.Context, cfg *config, fullMethod, kind string, err error, latency time.Duration) {
	if !cfg.accessLog || cfg.logger == nil {
		return
	}
	code := status.Code(err)
	cfg.logger.LogAttrs(ctx, cfg.accessLevel, fullMethod+" "+code.String(),
		slogkafka.LoggerName(slogkafka.AccessLogLogger),
		slog.String("rpc.kind", kind),
		slog.String("rpc.code", code.String()),
		slog.Duration("rpc.latency", latency),
	)
}

// splitFullMethod splits "/pkg.Service/Method".
func splitFullMethod(full string) (service, method string) {
	full = strings.TrimPrefix(full, "/")
	if i := strings.LastIndexByte(full, '/'); i >= 0 {
		return full[:i], full[i+1:]
	}
	return "", full
}

// streamKind names the streaming shape of an RPC.
func streamKind(info *grpc.StreamServerInfo) string {
	switch {
	case info.IsClientStream && info.IsServerStream:
		return "bidi_stream"
	case info.IsClientStream:
		return "client_stream"
	case info.IsServerStream:
		return "server_stream"
	default:
		return "unary"
	}
}

type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the enriched context.
func (s *serverStream) Context() context.Context {
	return s.ctx
}
