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
	"errors"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestParseMapping covers JSON, literal and rejected inputs.
func TestParseMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    map[string]any
		wantErr bool
	}{
		{name: "json", in: `{"a": 1, "b": {"c": "d"}}`, want: map[string]any{"a": float64(1), "b": map[string]any{"c": "d"}}},
		{name: "single quotes", in: `{'field1': 'test1', 'field2': 'test2'}`, want: map[string]any{"field1": "test1", "field2": "test2"}},
		{name: "non-string keys", in: `{1: 'one', true: 'yes'}`, want: map[string]any{"1": "one", "true": "yes"}},
		{name: "literal constants", in: `{'a': None, 'b': True, 'c': False, 'd': [1, 'x']}`, want: map[string]any{"a": nil, "b": true, "c": false, "d": []any{1, "x"}}},
		{name: "quoted constants", in: `{'a': 'None', 'b': 'True'}`, want: map[string]any{"a": "None", "b": "True"}},
		{name: "nested literal", in: `{'outer': {'inner': None}}`, want: map[string]any{"outer": map[string]any{"inner": nil}}},
		{name: "surrounding space", in: "  {\"a\": \"b\"}\n", want: map[string]any{"a": "b"}},
		{name: "empty", in: "   ", wantErr: true},
		{name: "null", in: "null", wantErr: true},
		{name: "list", in: "[1, 2]", wantErr: true},
		{name: "scalar", in: "plain text", wantErr: true},
		{name: "broken", in: `{"a": `, wantErr: true},
		{name: "tuple", in: `{'a': None, 'b': True, 'c': (1, 2)}`, wantErr: true},
		{name: "set", in: `{'a': {1, 2}}`, wantErr: true},
		{name: "bare key", in: `{'a'}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseMapping(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseMapping(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseMapping(%q) returned %v", tt.in, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseMapping(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

// TestDataMapping covers every accepted data value shape.
func TestDataMapping(t *testing.T) {
	t.Parallel()

	if m, err := dataMapping(nil); err != nil || m != nil {
		t.Errorf("dataMapping(nil) = %v, %v; want nil, nil", m, err)
	}
	if m, err := dataMapping(""); err != nil || m != nil {
		t.Errorf(`dataMapping("") = %v, %v; want nil, nil`, m, err)
	}
	in := map[string]any{"k": "v"}
	if m, err := dataMapping(in); err != nil || cmp.Diff(in, m) != "" {
		t.Errorf("dataMapping(map) = %v, %v", m, err)
	}
	if m, err := dataMapping(`{'k': 'v'}`); err != nil || cmp.Diff(in, m) != "" {
		t.Errorf("dataMapping(literal) = %v, %v", m, err)
	}
	if _, err := dataMapping([]any{1}); !errors.Is(err, errNotMapping) {
		t.Errorf("dataMapping(list) error = %v, want %v", err, errNotMapping)
	}
}

// TestSplitFunction covers package and method splitting.
func TestSplitFunction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, pkg, name string
	}{
		{"github.com/zeppos/gcloudlog.(*Handler).Handle", "github.com/zeppos/gcloudlog", "(*Handler).Handle"},
		{"main.main", "main", "main"},
		{"example.com/a.b/pkg.Func.func1", "example.com/a.b/pkg", "Func.func1"},
		{"nodots", "", "nodots"},
	}
	for _, tt := range tests {
		pkg, name := splitFunction(tt.in)
		if pkg != tt.pkg || name != tt.name {
			t.Errorf("splitFunction(%q) = %q, %q; want %q, %q", tt.in, pkg, name, tt.pkg, tt.name)
		}
	}
}

// TestInfoBuilderReportsFailures verifies failures are counted and reported.
func TestInfoBuilderReportsFailures(t *testing.T) {
	t.Parallel()

	var failures int
	var messages []string
	b := infoBuilder{
		formatter:  FormatterFunc(func(Body) (string, error) { return `{"data": "not a map"}`, nil }),
		loggerName: "unit",
		diagnostic: func(msg string, _ ...slog.Attr) { messages = append(messages, msg) },
		onFailure:  func() { failures++ },
	}
	r := slog.NewRecord(testTime, slog.LevelInfo, "m", 0)
	info := b.build(r, Body{Message: "m"}, Fields{Data: map[string]any{"typed": true}})

	if failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}
	if diff := cmp.Diff([]string{"discarding info with malformed data field"}, messages); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
	if info["typed"] != true || info[fieldLoggerName] != "unit" {
		t.Errorf("info = %v, want typed data and logger name", info)
	}
}
