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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestHandlerMetrics verifies sent, parse-failure and send-error counters.
func TestHandlerMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	h, rt := newTestHandler(t, WithMetricsRegisterer(reg), WithLogName("metrics"))
	logger := slog.New(h)

	logger.Info("ok")
	logger.Info("bad data", slog.Bool(DataKey, true))
	rt.sendErr = errors.New("down")
	_ = h.Handle(context.Background(), slog.NewRecord(testTime, slog.LevelInfo, "lost", 0))

	m := h.core.metrics
	if got := testutil.ToFloat64(m.records); got != 2 {
		t.Errorf("records_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.parseFailures); got != 1 {
		t.Errorf("parse_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.sendErrors); got != 1 {
		t.Errorf("send_errors_total = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(reg); n != 3 {
		t.Errorf("registry collected %d series, want 3", n)
	}
}

// TestHandlerMetricsSharedRegistry verifies two handlers can share a
// registerer.
func TestHandlerMetricsSharedRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a, _ := newTestHandler(t, WithMetricsRegisterer(reg), WithLogName("a"))
	b, _ := newTestHandler(t, WithMetricsRegisterer(reg), WithLogName("b"))

	slog.New(a).Info("one")
	slog.New(b).Info("two")
	slog.New(b).Info("three")

	if got := testutil.ToFloat64(b.core.metrics.records); got != 2 {
		t.Errorf("records_total{log_name=b} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(a.core.metrics.records); got != 1 {
		t.Errorf("records_total{log_name=a} = %v, want 1", got)
	}
}

// TestNilHandlerMetrics verifies a nil registerer disables metrics.
func TestNilHandlerMetrics(t *testing.T) {
	t.Parallel()

	m, err := newHandlerMetrics(nil, "x")
	if m != nil || err != nil {
		t.Fatalf("newHandlerMetrics(nil) = %v, %v; want nil, nil", m, err)
	}
	m.recordSent()
	m.recordParseFailure()
	m.recordSendError()
}
