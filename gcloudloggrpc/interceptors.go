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

package gcloudloggrpc

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/zeppos/gcloudlog"
	"github.com/zeppos/gcloudlog/internal/gcp"
)

// RequestCompletedMessage is the message of the per-RPC log entry.
const RequestCompletedMessage = "rpc completed"

// UnaryServerInterceptor attaches request fields to the context of unary RPCs.
func UnaryServerInterceptor(opts ...Option) grpc.UnaryServerInterceptor {
	gcloudlog.EnsurePropagation()
	cfg := applyOptions(opts)
	projectID := resolveProjectID(cfg.projectID)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		ctx = attachFields(ctx, cfg, projectID)

		resp, err := handler(ctx, req)
		logCompletion(ctx, cfg, info.FullMethod, err, start)
		return resp, err
	}
}

// StreamServerInterceptor attaches request fields to the context of
// streaming RPCs.
func StreamServerInterceptor(opts ...Option) grpc.StreamServerInterceptor {
	gcloudlog.EnsurePropagation()
	cfg := applyOptions(opts)
	projectID := resolveProjectID(cfg.projectID)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		ctx := attachFields(ss.Context(), cfg, projectID)

		err := handler(srv, &serverStream{ServerStream: ss, ctx: ctx})
		logCompletion(ctx, cfg, info.FullMethod, err, start)
		return err
	}
}

// UnaryClientInterceptor injects trace metadata into outgoing unary RPCs.
func UnaryClientInterceptor(opts ...Option) grpc.UnaryClientInterceptor {
	cfg := applyOptions(opts)

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		return invoker(outgoingContext(ctx, cfg), method, req, reply, cc, callOpts...)
	}
}

// StreamClientInterceptor injects trace metadata into outgoing streaming RPCs.
func StreamClientInterceptor(opts ...Option) grpc.StreamClientInterceptor {
	cfg := applyOptions(opts)

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		return streamer(outgoingContext(ctx, cfg), desc, cc, method, callOpts...)
	}
}

// ServerOptions returns grpc.ServerOptions installing the otelgrpc stats
// handler and the gcloudlog interceptors.
func ServerOptions(opts ...Option) []grpc.ServerOption {
	cfg := applyOptions(opts)
	var serverOpts []grpc.ServerOption
	if cfg.enableOTel {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler(statsHandlerOptions(cfg)...)))
	}
	return append(serverOpts,
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(opts...)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(opts...)),
	)
}

// DialOptions returns grpc.DialOptions installing the otelgrpc stats handler
// and the trace-injecting client interceptors.
func DialOptions(opts ...Option) []grpc.DialOption {
	cfg := applyOptions(opts)
	var dialOpts []grpc.DialOption
	if cfg.enableOTel {
		dialOpts = append(dialOpts, grpc.WithStatsHandler(otelgrpc.NewClientHandler(statsHandlerOptions(cfg)...)))
	}
	return append(dialOpts,
		grpc.WithChainUnaryInterceptor(UnaryClientInterceptor(opts...)),
		grpc.WithChainStreamInterceptor(StreamClientInterceptor(opts...)),
	)
}

func statsHandlerOptions(cfg *config) []otelgrpc.Option {
	var opts []otelgrpc.Option
	if cfg.tracerProvider != nil {
		opts = append(opts, otelgrpc.WithTracerProvider(cfg.tracerProvider))
	}
	if cfg.propagators != nil {
		opts = append(opts, otelgrpc.WithPropagators(cfg.propagators))
	}
	for _, f := range cfg.filters {
		opts = append(opts, otelgrpc.WithFilter(f))
	}
	return opts
}

// RPCFields returns the fields the server interceptors attach for an RPC
// whose context is ctx.
func RPCFields(ctx context.Context, projectID string) gcloudlog.Fields {
	f := gcloudlog.TraceFields(ctx, projectID)
	if addr, ok := peerAddress(ctx); ok {
		f.ClientIP = addr
	}
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(":authority"); len(vals) > 0 {
			f.HostName = stripPort(vals[0])
		}
	}
	return f
}

func attachFields(ctx context.Context, cfg *config, projectID string) context.Context {
	md, _ := metadata.FromIncomingContext(ctx)
	ctx = ensureServerSpanContext(ctx, md, cfg)

	f := RPCFields(ctx, projectID)
	if !cfg.includePeer {
		f.ClientIP = ""
	}
	if !cfg.includeAuthority {
		f.HostName = ""
	}
	return gcloudlog.ContextWithFields(ctx, f)
}

func logCompletion(ctx context.Context, cfg *config, method string, err error, start time.Time) {
	if cfg.requestLogger == nil {
		return
	}
	cfg.requestLogger.LogAttrs(ctx, cfg.requestLogLevel, RequestCompletedMessage,
		slog.String("grpc.method", method),
		slog.String("grpc.code", status.Code(err).String()),
		slog.Duration("latency", time.Since(start)),
	)
}

func outgoingContext(ctx context.Context, cfg *config) context.Context {
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.New(nil)
	}
	injectClientTrace(ctx, md, cfg)
	return metadata.NewOutgoingContext(ctx, md)
}

// resolveProjectID prefers the explicit ID, then the environment.
func resolveProjectID(explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	return gcp.LoadConfig().ProjectID
}

// peerAddress extracts the remote host portion of the peer address.
func peerAddress(ctx context.Context) (string, bool) {
	pr, ok := peer.FromContext(ctx)
	if !ok || pr == nil || pr.Addr == nil {
		return "", false
	}
	return stripPort(pr.Addr.String()), true
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the request context carrying gcloudlog fields.
func (s *serverStream) Context() context.Context {
	return s.ctx
}
