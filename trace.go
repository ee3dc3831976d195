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

package gcloudlog

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/trace"
)

// ExtractTraceSpan extracts OpenTelemetry trace details from ctx and, if a
// non-empty projectID is provided, formats a fully-qualified Cloud Trace name.
//
// It returns:
//   - formattedTrace: "projects/<projectID>/traces/<traceID>" if projectID != "", else "".
//   - rawTraceID: 32-char lowercase hex trace ID.
//   - rawSpanID: 16-char lowercase hex span ID.
//   - sampled: whether the span context is sampled.
//   - ok: whether ctx carries a valid span context.
func ExtractTraceSpan(ctx context.Context, projectID string) (formattedTrace, rawTraceID, rawSpanID string, sampled, ok bool) {
	if ctx == nil {
		return "", "", "", false, false
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", "", "", false, false
	}

	rawTraceID = sc.TraceID().String()
	rawSpanID = sc.SpanID().String()
	sampled = sc.IsSampled()
	if projectID != "" {
		formattedTrace = FormatTraceResource(projectID, rawTraceID)
	}
	return formattedTrace, rawTraceID, rawSpanID, sampled, true
}

// FormatTraceResource returns a fully-qualified Cloud Trace resource name:
//
//	projects/<projectID>/traces/<traceID>
func FormatTraceResource(projectID, rawTraceID string) string {
	return fmt.Sprintf("projects/%s/traces/%s", projectID, rawTraceID)
}

// TraceFields returns the trace and span of the OpenTelemetry span in ctx as
// Fields, ready for ContextWithFields. The zero Fields is returned when ctx
// carries no valid span.
func TraceFields(ctx context.Context, projectID string) Fields {
	formatted, rawTrace, rawSpan, _, ok := ExtractTraceSpan(ctx, projectID)
	if !ok {
		return Fields{}
	}
	if formatted == "" {
		formatted = rawTrace
	}
	return Fields{Trace: formatted, SpanID: rawSpan}
}

// SpanIDHexToDecimal converts a 16-char hex span ID to its unsigned decimal
// representation as used by the X-Cloud-Trace-Context header.
func SpanIDHexToDecimal(spanIDHex string) (string, bool) {
	ui, err := strconv.ParseUint(spanIDHex, 16, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatUint(ui, 10), true
}

// BuildXCloudTraceContext builds the value of the X-Cloud-Trace-Context header
// from raw hex IDs and a sampled flag:
//
//	TRACE_ID[/SPAN_ID][;o=TRACE_TRUE]
func BuildXCloudTraceContext(rawTraceID, spanIDHex string, sampled bool) string {
	val := rawTraceID
	if dec, ok := SpanIDHexToDecimal(spanIDHex); ok {
		val += "/" + dec
	}
	if sampled {
		return val + ";o=1"
	}
	return val + ";o=0"
}
