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
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	gcppropagator "github.com/GoogleCloudPlatform/opentelemetry-operations-go/propagator"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zeppos/gcloudlog"
)

const (
	testTraceID     = "105445aa7843bc8bf206b12000100000"
	testTraceparent = "00-" + testTraceID + "-00f067aa0ba902b7-01"
)

// captureFields serves the request and returns the fields seen by the inner
// handler.
func captureFields(t *testing.T, mw func(http.Handler) http.Handler, req *http.Request) gcloudlog.Fields {
	t.Helper()
	var got gcloudlog.Fields
	var called bool
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		got = gcloudlog.FieldsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !called {
		t.Fatal("inner handler was not called")
	}
	return got
}

// TestMiddlewareAttachesTraceparentFields verifies W3C trace context and
// client details reach the request context.
func TestMiddlewareAttachesTraceparentFields(t *testing.T) {
	t.Parallel()

	mw := Middleware(
		WithProjectID("sandbox"),
		WithOTel(false),
		WithPropagators(propagation.TraceContext{}),
	)
	req := httptest.NewRequest(http.MethodGet, "http://api.example.com:8080/widgets", nil)
	req.RemoteAddr = "198.51.100.10:12345"
	req.Header.Set("traceparent", testTraceparent)

	got := captureFields(t, mw, req)
	if want := "projects/sandbox/traces/" + testTraceID; got.Trace != want {
		t.Errorf("Trace = %q, want %q", got.Trace, want)
	}
	if got.SpanID != "00f067aa0ba902b7" {
		t.Errorf("SpanID = %q, want %q", got.SpanID, "00f067aa0ba902b7")
	}
	if got.ClientIP != "198.51.100.10" {
		t.Errorf("ClientIP = %q, want %q", got.ClientIP, "198.51.100.10")
	}
	if got.HostName != "api.example.com" {
		t.Errorf("HostName = %q, want %q", got.HostName, "api.example.com")
	}
	if got.HTTPRequest != nil {
		t.Errorf("HTTPRequest = %+v, want nil by default", got.HTTPRequest)
	}
}

// TestMiddlewareAttachesXCloudTraceContext verifies the legacy Cloud Trace
// header is accepted.
func TestMiddlewareAttachesXCloudTraceContext(t *testing.T) {
	t.Parallel()

	mw := Middleware(
		WithProjectID("sandbox"),
		WithOTel(false),
		WithPropagators(gcppropagator.CloudTraceOneWayPropagator{}),
	)
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.Header.Set(XCloudTraceContextHeader, testTraceID+"/10;o=1")

	got := captureFields(t, mw, req)
	if want := "projects/sandbox/traces/" + testTraceID; got.Trace != want {
		t.Errorf("Trace = %q, want %q", got.Trace, want)
	}
	if got.SpanID != "000000000000000a" {
		t.Errorf("SpanID = %q, want %q", got.SpanID, "000000000000000a")
	}
}

// TestMiddlewareTracePropagationDisabled verifies incoming trace headers are
// ignored when propagation is off.
func TestMiddlewareTracePropagationDisabled(t *testing.T) {
	t.Parallel()

	mw := Middleware(
		WithProjectID("sandbox"),
		WithOTel(false),
		WithTracePropagation(false),
	)
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.Header.Set("traceparent", testTraceparent)

	if got := captureFields(t, mw, req); got.Trace != "" || got.SpanID != "" {
		t.Errorf("fields = %+v, want no trace", got)
	}
}

// TestMiddlewareToggles verifies the client IP, host name and HTTP request
// options.
func TestMiddlewareToggles(t *testing.T) {
	t.Parallel()

	mw := Middleware(
		WithProjectID("sandbox"),
		WithOTel(false),
		WithHostName(false),
		WithTrustProxy(true),
		WithHTTPRequest(true),
	)
	req := httptest.NewRequest(http.MethodPost, "http://example.com/upload", strings.NewReader("abc"))
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	got := captureFields(t, mw, req)
	if got.ClientIP != "203.0.113.7" {
		t.Errorf("ClientIP = %q, want forwarded address", got.ClientIP)
	}
	if got.HostName != "" {
		t.Errorf("HostName = %q, want empty", got.HostName)
	}
	if got.HTTPRequest == nil {
		t.Fatal("HTTPRequest = nil, want request description")
	}
	if got.HTTPRequest.RemoteIP != "203.0.113.7" || got.HTTPRequest.RequestSize != 3 {
		t.Errorf("HTTPRequest = {RemoteIP:%q RequestSize:%d}, want {203.0.113.7 3}",
			got.HTTPRequest.RemoteIP, got.HTTPRequest.RequestSize)
	}

	mw = Middleware(WithOTel(false), WithClientIP(false))
	if got := captureFields(t, mw, req); got.ClientIP != "" {
		t.Errorf("ClientIP = %q, want empty when disabled", got.ClientIP)
	}
}

type recordCollector struct {
	mu      sync.Mutex
	records []slog.Record
}

func (c *recordCollector) Enabled(context.Context, slog.Level) bool { return true }

func (c *recordCollector) Handle(_ context.Context, r slog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r.Clone())
	return nil
}

func (c *recordCollector) WithAttrs([]slog.Attr) slog.Handler { return c }
func (c *recordCollector) WithGroup(string) slog.Handler      { return c }

// TestMiddlewareRequestLog verifies the per-request entry carries the final
// status.
func TestMiddlewareRequestLog(t *testing.T) {
	t.Parallel()

	var c recordCollector
	mw := Middleware(WithOTel(false), WithRequestLog(slog.New(&c), slog.LevelWarn))
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "http://example.com/items/7", nil))

	if len(c.records) != 1 {
		t.Fatalf("request log emitted %d records, want 1", len(c.records))
	}
	r := c.records[0]
	if r.Message != RequestCompletedMessage || r.Level != slog.LevelWarn {
		t.Errorf("record = %v %q, want WARN %q", r.Level, r.Message, RequestCompletedMessage)
	}
	var status int64
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != gcloudlog.HTTPRequestKey {
			return true
		}
		for _, ga := range a.Value.Resolve().Group() {
			if ga.Key == "status" {
				status = ga.Value.Int64()
			}
		}
		return false
	})
	if status != http.StatusCreated {
		t.Errorf("request log status = %d, want %d", status, http.StatusCreated)
	}
}

// TestMiddlewareOTelSpan verifies spans are recorded and their IDs reach the
// request fields.
func TestMiddlewareOTelSpan(t *testing.T) {
	t.Parallel()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	mw := Middleware(
		WithProjectID("sandbox"),
		WithTracerProvider(tp),
		WithPropagators(propagation.TraceContext{}),
		WithSpanNameFormatter(func(_ string, r *http.Request) string { return r.Method + " " + r.URL.Path }),
	)
	req := httptest.NewRequest(http.MethodGet, "http://example.com/orders", nil)
	req.Header.Set("traceparent", testTraceparent)

	got := captureFields(t, mw, req)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "GET /orders" {
		t.Errorf("span name = %q, want %q", span.Name(), "GET /orders")
	}
	if got.Trace != "projects/sandbox/traces/"+testTraceID {
		t.Errorf("Trace = %q, want the incoming trace", got.Trace)
	}
	if got.SpanID != span.SpanContext().SpanID().String() {
		t.Errorf("SpanID = %q, want server span %q", got.SpanID, span.SpanContext().SpanID())
	}
}

// TestMiddlewareNilNextUsesNotFound verifies a nil handler serves 404.
func TestMiddlewareNilNextUsesNotFound(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	Middleware(WithOTel(false))(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://example.com/", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// TestResponseRecorder verifies status and size tracking.
func TestResponseRecorder(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	rec := wrapResponseWriter(rr)
	if _, err := rec.Write([]byte("hello ")); err != nil {
		t.Fatalf("Write() returned %v, want nil", err)
	}
	rec.WriteHeader(http.StatusTeapot)
	if _, err := rec.ReadFrom(strings.NewReader("world")); err != nil {
		t.Fatalf("ReadFrom() returned %v, want nil", err)
	}
	rec.Flush()

	if rec.Status() != http.StatusOK {
		t.Errorf("Status() = %d, want %d (first write wins)", rec.Status(), http.StatusOK)
	}
	if rec.BytesWritten() != int64(len("hello world")) {
		t.Errorf("BytesWritten() = %d, want %d", rec.BytesWritten(), len("hello world"))
	}
	if rr.Body.String() != "hello world" || !rr.Flushed {
		t.Errorf("body = %q flushed = %v, want hello world, true", rr.Body.String(), rr.Flushed)
	}
	if rec.Unwrap() != rr {
		t.Error("Unwrap() did not return the wrapped writer")
	}
	if _, _, err := rec.Hijack(); !errors.Is(err, http.ErrNotSupported) {
		t.Errorf("Hijack() returned %v, want http.ErrNotSupported", err)
	}
}

type hijackWriter struct {
	http.ResponseWriter
	conn net.Conn
}

func (h hijackWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return h.conn, bufio.NewReadWriter(bufio.NewReader(h.conn), bufio.NewWriter(h.conn)), nil
}

// TestResponseRecorderHijack verifies Hijack delegates when supported.
func TestResponseRecorderHijack(t *testing.T) {
	t.Parallel()

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	rec := wrapResponseWriter(hijackWriter{ResponseWriter: httptest.NewRecorder(), conn: server})
	conn, _, err := rec.Hijack()
	if err != nil {
		t.Fatalf("Hijack() returned %v, want nil", err)
	}
	if conn != server {
		t.Error("Hijack() returned a different connection")
	}
}

// TestNoopPropagator verifies the disabled propagator leaves carriers alone.
func TestNoopPropagator(t *testing.T) {
	t.Parallel()

	carrier := propagation.MapCarrier{}
	ctx := context.Background()
	var p noopPropagator
	p.Inject(ctx, carrier)
	if len(carrier) != 0 {
		t.Errorf("Inject() wrote %v, want nothing", carrier)
	}
	if p.Extract(ctx, carrier) != ctx {
		t.Error("Extract() returned a different context")
	}
	if p.Fields() != nil {
		t.Errorf("Fields() = %v, want nil", p.Fields())
	}
}
