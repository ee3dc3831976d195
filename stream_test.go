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
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestStreamHandler verifies line output, levels and derived handlers.
func TestStreamHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewStreamHandler(&buf, slog.LevelInfo, nil)
	logger := slog.New(h).With("svc", "api").WithGroup("req")

	logger.Debug("hidden")
	logger.Info("shown", "id", 1, Trace("t1"))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("wrote %d lines, want 1: %q", len(lines), buf.String())
	}
	want := `{"message":"shown","req":{"id":1,"trace":"t1"},"svc":"api"}`
	if lines[0] != want {
		t.Errorf("line = %s, want %s", lines[0], want)
	}
}

// TestStreamHandlerTemplate verifies a shared template formatter.
func TestStreamHandlerTemplate(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := NewStreamHandler(&buf, nil, mustTemplate(t, singleLineFormat))
	slog.New(h).Warn("disk", "data", "{'free': '10%'}")

	if want := `{"message":"disk","data":"{'free': '10%'}"}` + "\n"; buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
