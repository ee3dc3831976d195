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
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func spanContext(tb testing.TB, traceHex, spanHex string, sampled bool) trace.SpanContext {
	tb.Helper()
	traceID, err := trace.TraceIDFromHex(traceHex)
	if err != nil {
		tb.Fatalf("TraceIDFromHex(%q) returned %v", traceHex, err)
	}
	spanID, err := trace.SpanIDFromHex(spanHex)
	if err != nil {
		tb.Fatalf("SpanIDFromHex(%q) returned %v", spanHex, err)
	}
	var flags trace.TraceFlags
	if sampled {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: flags})
}

// TestExtractTraceSpan covers formatted and raw trace extraction.
func TestExtractTraceSpan(t *testing.T) {
	t.Parallel()

	if _, _, _, _, ok := ExtractTraceSpan(context.Background(), "p"); ok {
		t.Errorf("ExtractTraceSpan(no span) ok = true")
	}

	sc := spanContext(t, "105445aa7843bc8bf206b12000100000", "09158d8185d3c3af", false)
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	formatted, rawTrace, rawSpan, sampled, ok := ExtractTraceSpan(ctx, "my-project")
	if !ok || sampled {
		t.Fatalf("ExtractTraceSpan() ok, sampled = %v, %v; want true, false", ok, sampled)
	}
	if formatted != "projects/my-project/traces/105445aa7843bc8bf206b12000100000" {
		t.Errorf("formatted = %q", formatted)
	}
	if rawTrace != "105445aa7843bc8bf206b12000100000" || rawSpan != "09158d8185d3c3af" {
		t.Errorf("raw = %q, %q", rawTrace, rawSpan)
	}

	if formatted, _, _, _, _ := ExtractTraceSpan(ctx, ""); formatted != "" {
		t.Errorf("formatted without project = %q, want empty", formatted)
	}

	f := TraceFields(ctx, "")
	if f.Trace != rawTrace || f.SpanID != rawSpan {
		t.Errorf("TraceFields(no project) = %+v, want raw IDs", f)
	}
}

// TestXCloudTraceContext covers the legacy header helpers.
func TestXCloudTraceContext(t *testing.T) {
	t.Parallel()

	dec, ok := SpanIDHexToDecimal("00000000000004d2")
	if !ok || dec != "1234" {
		t.Errorf("SpanIDHexToDecimal() = %q, %v; want 1234, true", dec, ok)
	}
	if _, ok := SpanIDHexToDecimal("not-hex"); ok {
		t.Errorf("SpanIDHexToDecimal(not-hex) ok = true")
	}

	tests := []struct {
		span    string
		sampled bool
		want    string
	}{
		{"00000000000004d2", true, "abc/1234;o=1"},
		{"00000000000004d2", false, "abc/1234;o=0"},
		{"", true, "abc;o=1"},
	}
	for _, tt := range tests {
		if got := BuildXCloudTraceContext("abc", tt.span, tt.sampled); got != tt.want {
			t.Errorf("BuildXCloudTraceContext(abc, %q, %v) = %q, want %q", tt.span, tt.sampled, got, tt.want)
		}
	}
}
