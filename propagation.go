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
	"os"
	"strconv"
	"strings"
	"sync"

	gcppropagator "github.com/GoogleCloudPlatform/opentelemetry-operations-go/propagator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var installPropagatorOnce sync.Once

// EnsurePropagation installs a composite OpenTelemetry text map propagator
// that accepts the X-Cloud-Trace-Context header on ingress alongside W3C
// Trace Context and Baggage. It runs at most once per process and is skipped
// when GCLOUDLOG_DISABLE_PROPAGATOR_AUTOSET is truthy.
//
// The HTTP and gRPC integrations call it before extracting trace context.
func EnsurePropagation() {
	installPropagatorOnce.Do(func() {
		if disableAutoSet() {
			return
		}
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			gcppropagator.CloudTraceOneWayPropagator{},
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	})
}

func disableAutoSet() bool {
	raw := strings.TrimSpace(os.Getenv("GCLOUDLOG_DISABLE_PROPAGATOR_AUTOSET"))
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	return err == nil && b
}
