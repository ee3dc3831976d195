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
	"errors"
	"log/slog"
	"slices"
	"testing"

	"cloud.google.com/go/logging"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"google.golang.org/protobuf/testing/protocmp"
)

// TestPayloadEntry verifies the Cloud Logging entry conversion.
func TestPayloadEntry(t *testing.T) {
	t.Parallel()

	req := &logging.HTTPRequest{Status: 200}
	p := Payload{
		Time:         testTime,
		Level:        slog.LevelWarn,
		Severity:     logging.Warning,
		Message:      "hello",
		Info:         map[string]any{"k": "v", "message": "from body"},
		Resource:     GlobalResource("sandbox"),
		Labels:       map[string]string{"a": "b"},
		Trace:        "projects/sandbox/traces/abc",
		SpanID:       "0123456789abcdef",
		TraceSampled: true,
		HTTPRequest:  req,
	}
	e := p.Entry()

	want := logging.Entry{
		Timestamp:    testTime,
		Severity:     logging.Warning,
		Payload:      map[string]any{"k": "v", "message": "hello"},
		Labels:       map[string]string{"a": "b"},
		HTTPRequest:  req,
		Resource:     p.Resource,
		Trace:        "projects/sandbox/traces/abc",
		SpanID:       "0123456789abcdef",
		TraceSampled: true,
	}
	if diff := cmp.Diff(want, e, cmpopts.IgnoreFields(logging.Entry{}, "InsertID"), protocmp.Transform()); diff != "" {
		t.Errorf("Entry() mismatch (-want +got):\n%s", diff)
	}
	if e.InsertID == "" || e.InsertID == p.Entry().InsertID {
		t.Errorf("InsertID = %q, want unique non-empty", e.InsertID)
	}
	if p.Info["message"] != "from body" {
		t.Errorf("Entry() mutated Info: %v", p.Info)
	}
}

// TestLoggerTransports verifies the background and sync transports.
func TestLoggerTransports(t *testing.T) {
	t.Parallel()

	client := newFakeClient("sandbox")
	bg, err := NewBackgroundTransport(client, "bg")
	if err != nil {
		t.Fatalf("NewBackgroundTransport() returned %v", err)
	}
	if err := bg.Send(context.Background(), Payload{Message: "a"}); err != nil {
		t.Errorf("background Send() returned %v", err)
	}
	if err := bg.Flush(); err != nil {
		t.Errorf("background Flush() returned %v", err)
	}
	for range 2 {
		if err := bg.Close(); err != nil {
			t.Errorf("background Close() returned %v", err)
		}
	}
	if len(client.logger.logged) != 1 || client.logger.flushes != 2 {
		t.Errorf("logged, flushes = %d, %d; want 1, 2", len(client.logger.logged), client.logger.flushes)
	}

	syncErr := errors.New("rpc failed")
	client.logger.syncErr = syncErr
	st, err := NewSyncTransport(client, "sync")
	if err != nil {
		t.Fatalf("NewSyncTransport() returned %v", err)
	}
	if err := st.Send(context.Background(), Payload{Message: "b"}); !errors.Is(err, syncErr) {
		t.Errorf("sync Send() returned %v, want %v", err, syncErr)
	}
	client.logger.syncErr = nil
	if err := st.Send(context.Background(), Payload{Message: "c"}); err != nil {
		t.Errorf("sync Send() returned %v", err)
	}
	if len(client.logger.synced) != 1 {
		t.Errorf("synced = %d, want 1", len(client.logger.synced))
	}

	if _, err := NewSyncTransport(nil, "x"); !errors.Is(err, ErrClientNotInitialized) {
		t.Errorf("NewSyncTransport(nil) returned %v, want %v", err, ErrClientNotInitialized)
	}
}

// TestTransportRegistry covers registration and lookup.
func TestTransportRegistry(t *testing.T) {
	t.Parallel()

	if _, err := LookupTransport(TransportBackground); err != nil {
		t.Errorf("LookupTransport(background) returned %v", err)
	}
	if _, err := LookupTransport("missing"); !errors.Is(err, ErrUnknownTransport) {
		t.Errorf("LookupTransport(missing) returned %v, want %v", err, ErrUnknownTransport)
	}

	const name = "registry-test"
	if err := RegisterTransport(name, NewSyncTransport); err != nil {
		t.Fatalf("RegisterTransport() returned %v", err)
	}
	if err := RegisterTransport(name, NewSyncTransport); !errors.Is(err, ErrTransportExists) {
		t.Errorf("duplicate RegisterTransport() returned %v, want %v", err, ErrTransportExists)
	}
	if err := RegisterTransport("", NewSyncTransport); err == nil {
		t.Errorf("RegisterTransport(empty name) returned nil error")
	}

	names := TransportNames()
	if !slices.IsSorted(names) || !slices.Contains(names, name) || !slices.Contains(names, TransportSync) {
		t.Errorf("TransportNames() = %v", names)
	}
}
