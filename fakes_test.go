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
	"io"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/logging"
)

var testTime = time.Date(2025, time.March, 14, 15, 9, 26, 0, time.UTC)

// fakeEntryLogger records entries written by the built-in transports.
type fakeEntryLogger struct {
	mu      sync.Mutex
	logged  []logging.Entry
	synced  []logging.Entry
	flushes int
	syncErr error
}

func (l *fakeEntryLogger) Log(e logging.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logged = append(l.logged, e)
}

func (l *fakeEntryLogger) LogSync(_ context.Context, e logging.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.syncErr != nil {
		return l.syncErr
	}
	l.synced = append(l.synced, e)
	return nil
}

func (l *fakeEntryLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushes++
	return nil
}

// fakeClient hands out a single fakeEntryLogger.
type fakeClient struct {
	projectID string
	logger    *fakeEntryLogger
	loggerErr error

	mu       sync.Mutex
	logNames []string
	closed   int
}

func newFakeClient(projectID string) *fakeClient {
	return &fakeClient{projectID: projectID, logger: &fakeEntryLogger{}}
}

func (c *fakeClient) ProjectID() string { return c.projectID }

func (c *fakeClient) Logger(logName string, _ ...logging.LoggerOption) (EntryLogger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logNames = append(c.logNames, logName)
	if c.loggerErr != nil {
		return nil, c.loggerErr
	}
	return c.logger, nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

// recordingTransport captures payloads handed to Send.
type recordingTransport struct {
	mu       sync.Mutex
	payloads []Payload
	sendErr  error
	flushes  int
	closes   int
}

func (t *recordingTransport) Send(_ context.Context, p Payload) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	t.payloads = append(t.payloads, p)
	return nil
}

func (t *recordingTransport) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flushes++
	return nil
}

func (t *recordingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes++
	return nil
}

func (t *recordingTransport) last(tb testing.TB) Payload {
	tb.Helper()
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.payloads) == 0 {
		tb.Fatalf("transport received no payloads")
	}
	return t.payloads[len(t.payloads)-1]
}

func (t *recordingTransport) factory() TransportFactory {
	return func(Client, string) (Transport, error) { return t, nil }
}

// newTestHandler builds a Handler for project "sandbox" wired to a
// recordingTransport. Extra options are applied last.
func newTestHandler(tb testing.TB, opts ...Option) (*Handler, *recordingTransport) {
	tb.Helper()
	rt := &recordingTransport{}
	base := []Option{
		WithClient(newFakeClient("sandbox")),
		WithTransport(rt.factory()),
		WithDiagnosticWriter(io.Discard),
	}
	h, err := NewHandler(context.Background(), "sandbox", append(base, opts...)...)
	if err != nil {
		tb.Fatalf("NewHandler() returned %v, want nil", err)
	}
	tb.Cleanup(func() {
		if err := h.Close(); err != nil {
			tb.Errorf("Handler.Close() returned %v, want nil", err)
		}
	})
	return h, rt
}
