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

package loggingtest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/logging"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zeppos/gcloudlog/loggingtest"
)

func newClient(t *testing.T, srv *loggingtest.Server) *logging.Client {
	t.Helper()
	client, err := logging.NewClient(context.Background(), "sandbox", srv.ClientOptions()...)
	if err != nil {
		t.Fatalf("logging.NewClient() returned %v, want nil", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// TestServerRecordsEntries verifies entries written by a real client are
// recorded with their request-level log name and labels.
func TestServerRecordsEntries(t *testing.T) {
	t.Parallel()

	srv := loggingtest.NewServer(t)
	lg := newClient(t, srv).Logger("python", logging.CommonLabels(map[string]string{"env": "dev"}))

	ctx := context.Background()
	if err := lg.LogSync(ctx, logging.Entry{Payload: map[string]any{"message": "json entry", "n": 1}}); err != nil {
		t.Fatalf("LogSync() returned %v, want nil", err)
	}
	if err := lg.LogSync(ctx, logging.Entry{Payload: "text entry"}); err != nil {
		t.Fatalf("LogSync() returned %v, want nil", err)
	}
	if got := len(srv.Requests()); got < 2 {
		t.Fatalf("len(Requests()) = %d, want at least 2", got)
	}

	matches := srv.EntriesWithMessage("json entry")
	if len(matches) != 1 {
		t.Fatalf("len(EntriesWithMessage()) = %d, want 1", len(matches))
	}
	first := matches[0]
	if first.GetLogName() != "projects/sandbox/logs/python" {
		t.Errorf("LogName = %q, want projects/sandbox/logs/python", first.GetLogName())
	}
	if first.GetLabels()["env"] != "dev" {
		t.Errorf("Labels = %v, want env=dev", first.GetLabels())
	}
	if n := loggingtest.Payload(first)["n"]; n != float64(1) {
		t.Errorf("Payload()[n] = %v, want 1", n)
	}

	var text int
	for _, e := range srv.Entries() {
		if e.GetTextPayload() != "text entry" {
			continue
		}
		text++
		if p := loggingtest.Payload(e); p != nil {
			t.Errorf("Payload(text entry) = %v, want nil", p)
		}
	}
	if text != 1 {
		t.Errorf("found %d text entries, want 1", text)
	}
}

// TestServerWriteError verifies injected failures reach the client and are
// not recorded.
func TestServerWriteError(t *testing.T) {
	t.Parallel()

	srv := loggingtest.NewServer(t)
	lg := newClient(t, srv).Logger("python")

	srv.SetWriteError(status.Error(codes.PermissionDenied, "denied"))
	err := lg.LogSync(context.Background(), logging.Entry{Payload: map[string]any{"message": "lost"}})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("LogSync() returned %v, want PermissionDenied", err)
	}
	if got := len(srv.EntriesWithMessage("lost")); got != 0 {
		t.Errorf("len(EntriesWithMessage(lost)) = %d, want 0", got)
	}
}

// TestServerWaitForMessage verifies waiting on buffered writes.
func TestServerWaitForMessage(t *testing.T) {
	t.Parallel()

	srv := loggingtest.NewServer(t)
	lg := newClient(t, srv).Logger("python", logging.DelayThreshold(10*time.Millisecond))
	lg.Log(logging.Entry{Payload: map[string]any{"message": "eventually"}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e, err := srv.WaitForMessage(ctx, "eventually")
	if err != nil {
		t.Fatalf("WaitForMessage() returned %v, want nil", err)
	}
	if loggingtest.Payload(e)["message"] != "eventually" {
		t.Errorf("WaitForMessage() entry = %v", e)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	if _, err := srv.WaitForMessage(short, "never"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForMessage(never) returned %v, want DeadlineExceeded", err)
	}
}
