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

package gcloudloghttp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeppos/gcloudlog"
	"github.com/zeppos/gcloudlog/internal/gcp"
)

const instrumentationName = "github.com/zeppos/gcloudlog/gcloudloghttp"

// RequestCompletedMessage is the message of the per-request log entry.
const RequestCompletedMessage = "request completed"

// Middleware returns net/http middleware that extracts trace context and
// attaches request fields (trace, span, client IP, host name and optionally
// the HTTP request) to the request context, where gcloudlog.Handler picks
// them up for every record logged with that context.
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	gcloudlog.EnsurePropagation()
	cfg := applyOptions(opts)
	projectID := resolveProjectID(cfg.projectID)

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		chain := wrapWithOTel(cfg, fieldsHandler(cfg, projectID, next))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ctx := ensureSpanContext(r.Context(), r, cfg); ctx != r.Context() {
				r = r.WithContext(ctx)
			}
			chain.ServeHTTP(w, r)
		})
	}
}

// resolveProjectID prefers the configured project, then the environment.
func resolveProjectID(configured string) string {
	if id := strings.TrimSpace(configured); id != "" {
		return id
	}
	return gcp.LoadConfig().ProjectID
}

// RequestFields returns the fields the middleware attaches for r.
func RequestFields(r *http.Request, projectID string, trustProxy bool) gcloudlog.Fields {
	f := gcloudlog.TraceFields(r.Context(), projectID)
	f.ClientIP = gcloudlog.ClientIPFromRequest(r, trustProxy)
	f.HostName = gcloudlog.HostNameFromRequest(r)
	return f
}

// fieldsHandler attaches request fields and writes the optional request log.
func fieldsHandler(cfg *config, projectID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		f := RequestFields(r, projectID, cfg.trustProxy)
		if !cfg.includeClientIP {
			f.ClientIP = ""
		}
		if !cfg.includeHostName {
			f.HostName = ""
		}
		req := gcloudlog.HTTPRequestFromRequest(r)
		req.RemoteIP = gcloudlog.ClientIPFromRequest(r, cfg.trustProxy)
		if cfg.includeHTTPReq {
			f.HTTPRequest = req
		}

		ctx := gcloudlog.ContextWithFields(r.Context(), f)
		r = r.WithContext(ctx)

		rec := wrapResponseWriter(w)
		next.ServeHTTP(rec, r)

		if cfg.requestLogger == nil {
			return
		}
		final := *req
		final.Status = rec.Status()
		final.ResponseSize = rec.BytesWritten()
		final.Latency = time.Since(start)
		cfg.requestLogger.LogAttrs(ctx, cfg.requestLogLevel, RequestCompletedMessage, gcloudlog.HTTPRequest(&final))
	})
}

// wrapWithOTel wraps handler with otelhttp middleware when enabled.
func wrapWithOTel(cfg *config, handler http.Handler) http.Handler {
	if !cfg.enableOTel {
		return handler
	}
	return otelhttp.NewHandler(handler, instrumentationName, otelOptions(cfg)...)
}

// otelOptions builds OpenTelemetry handler options from configuration.
func otelOptions(cfg *config) []otelhttp.Option {
	var otelOpts []otelhttp.Option
	if cfg.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(cfg.tracerProvider))
	}
	if !cfg.propagateTrace {
		otelOpts = append(otelOpts, otelhttp.WithPropagators(noopPropagator{}))
	} else if cfg.propagators != nil {
		otelOpts = append(otelOpts, otelhttp.WithPropagators(cfg.propagators))
	}
	if cfg.publicEndpoint {
		otelOpts = append(otelOpts, otelhttp.WithPublicEndpoint())
	}
	if cfg.spanNameFormatter != nil {
		otelOpts = append(otelOpts, otelhttp.WithSpanNameFormatter(cfg.spanNameFormatter))
	}
	for _, filter := range cfg.filters {
		otelOpts = append(otelOpts, otelhttp.WithFilter(filter))
	}
	return otelOpts
}

type noopPropagator struct{}

// Inject is a no-op.
func (noopPropagator) Inject(context.Context, propagation.TextMapCarrier) {}

// Extract returns ctx unchanged.
func (noopPropagator) Extract(ctx context.Context, _ propagation.TextMapCarrier) context.Context {
	return ctx
}

// Fields reports no injected fields.
func (noopPropagator) Fields() []string { return nil }

// ensureSpanContext extracts a remote span context from the request headers
// when ctx does not already carry one.
func ensureSpanContext(ctx context.Context, r *http.Request, cfg *config) context.Context {
	if !cfg.propagateTrace || trace.SpanContextFromContext(ctx).IsValid() {
		return ctx
	}
	propagator := cfg.propagators
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	extracted := propagator.Extract(ctx, propagation.HeaderCarrier(r.Header))
	if !trace.SpanContextFromContext(extracted).IsValid() {
		return ctx
	}
	return extracted
}

type responseRecorder struct {
	http.ResponseWriter
	status       int
	wroteHeader  bool
	bytesWritten int64
}

func wrapResponseWriter(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader records the status code before delegating to the wrapped writer.
func (rr *responseRecorder) WriteHeader(status int) {
	if !rr.wroteHeader {
		rr.status = status
		rr.wroteHeader = true
	}
	rr.ResponseWriter.WriteHeader(status)
}

// Write records bytes written and forwards the call to the underlying writer.
func (rr *responseRecorder) Write(p []byte) (int, error) {
	if !rr.wroteHeader {
		rr.WriteHeader(http.StatusOK)
	}
	n, err := rr.ResponseWriter.Write(p)
	rr.bytesWritten += int64(n)
	if err != nil {
		return n, fmt.Errorf("write response body: %w", err)
	}
	return n, nil
}

// ReadFrom streams data from src while tracking bytes for logging.
func (rr *responseRecorder) ReadFrom(src io.Reader) (int64, error) {
	if !rr.wroteHeader {
		rr.WriteHeader(http.StatusOK)
	}
	n, err := io.Copy(rr.ResponseWriter, src)
	rr.bytesWritten += n
	if err != nil {
		return n, fmt.Errorf("copy response body: %w", err)
	}
	return n, nil
}

// Status returns the HTTP status code that was written to the client.
func (rr *responseRecorder) Status() int { return rr.status }

// BytesWritten reports the cumulative number of bytes sent to the client.
func (rr *responseRecorder) BytesWritten() int64 { return rr.bytesWritten }

// Unwrap exposes the underlying ResponseWriter for http.ResponseController.
func (rr *responseRecorder) Unwrap() http.ResponseWriter { return rr.ResponseWriter }

// Flush forwards the flush request when supported.
func (rr *responseRecorder) Flush() {
	if flusher, ok := rr.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack delegates to the wrapped Hijacker when supported.
func (rr *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rr.ResponseWriter.(http.Hijacker); ok {
		conn, rw, err := hijacker.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, rw, nil
	}
	return nil, nil, http.ErrNotSupported
}
