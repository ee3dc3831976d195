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
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeppos/gcloudlog"
)

// XCloudTraceContextHeader is the legacy Cloud Trace propagation header.
const XCloudTraceContextHeader = "X-Cloud-Trace-Context"

// Transport returns an http.RoundTripper that propagates the trace context
// of each outbound request's context. With WithOTel(true) (the default) the
// base transport is additionally wrapped by otelhttp so client spans are
// recorded.
func Transport(base http.RoundTripper, opts ...Option) http.RoundTripper {
	cfg := applyOptions(opts)
	if base == nil {
		base = http.DefaultTransport
	}
	rt := roundTripper{base: base, cfg: cfg}
	if !cfg.enableOTel {
		return rt
	}

	var otelOpts []otelhttp.Option
	if cfg.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(cfg.tracerProvider))
	}
	// Injection is done by roundTripper so the legacy header sees the
	// client span created here.
	otelOpts = append(otelOpts, otelhttp.WithPropagators(noopPropagator{}))
	return otelhttp.NewTransport(rt, otelOpts...)
}

type roundTripper struct {
	base http.RoundTripper
	cfg  *config
}

// RoundTrip injects trace headers on a clone of req and forwards it.
func (t roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("round trip request: nil request")
	}
	if t.cfg.propagateTrace {
		req = req.Clone(req.Context())
		t.injectTrace(req.Context(), req)
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, fmt.Errorf("round trip request: %w", err)
	}
	return resp, nil
}

// injectTrace writes propagation headers and, when enabled, the legacy
// X-Cloud-Trace-Context header.
func (t roundTripper) injectTrace(ctx context.Context, req *http.Request) {
	propagator := t.cfg.propagators
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	if !t.cfg.injectLegacyXCTC || req.Header.Get(XCloudTraceContextHeader) != "" {
		return
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	req.Header.Set(
		XCloudTraceContextHeader,
		gcloudlog.BuildXCloudTraceContext(sc.TraceID().String(), sc.SpanID().String(), sc.IsSampled()),
	)
}
