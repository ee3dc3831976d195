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
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/metadata"

	"github.com/zeppos/gcloudlog"
)

// XCloudTraceContextHeader is the legacy Cloud Trace propagation header.
const XCloudTraceContextHeader = "X-Cloud-Trace-Context"

type metadataCarrier struct {
	metadata.MD
}

// Get returns the first value for the provided metadata key.
func (mc metadataCarrier) Get(key string) string {
	values := mc.MD.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Set stores the value under the provided metadata key.
func (mc metadataCarrier) Set(key string, value string) {
	mc.MD.Set(key, value)
}

// Keys reports all metadata keys present in the carrier.
func (mc metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(mc.MD))
	for k := range mc.MD {
		keys = append(keys, k)
	}
	return keys
}

func (cfg *config) propagator() propagation.TextMapPropagator {
	if cfg.propagators != nil {
		return cfg.propagators
	}
	return otel.GetTextMapPropagator()
}

// ensureServerSpanContext extracts a remote span context from incoming
// metadata unless ctx already carries one. Without a configured propagator
// the W3C traceparent format is still honoured.
func ensureServerSpanContext(ctx context.Context, md metadata.MD, cfg *config) context.Context {
	if !cfg.propagateTrace || trace.SpanContextFromContext(ctx).IsValid() || len(md) == 0 {
		return ctx
	}
	for _, p := range []propagation.TextMapPropagator{cfg.propagator(), propagation.TraceContext{}} {
		if extracted := p.Extract(ctx, metadataCarrier{md}); trace.SpanContextFromContext(extracted).IsValid() {
			return extracted
		}
	}
	return ctx
}

// injectClientTrace writes trace metadata for an outbound RPC.
func injectClientTrace(ctx context.Context, md metadata.MD, cfg *config) {
	if !cfg.propagateTrace {
		return
	}
	cfg.propagator().Inject(ctx, metadataCarrier{md})

	if !cfg.injectLegacyXCTC {
		return
	}
	key := strings.ToLower(XCloudTraceContextHeader)
	if len(md.Get(key)) > 0 {
		return
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	md.Set(key, gcloudlog.BuildXCloudTraceContext(sc.TraceID().String(), sc.SpanID().String(), sc.IsSampled()))
}
