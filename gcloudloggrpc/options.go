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
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Option configures gRPC interceptors and helper functions.
type Option func(*config)

type config struct {
	projectID        string
	propagators      propagation.TextMapPropagator
	tracerProvider   trace.TracerProvider
	propagateTrace   bool
	enableOTel       bool
	filters          []otelgrpc.Filter
	includePeer      bool
	includeAuthority bool
	requestLogger    *slog.Logger
	requestLogLevel  slog.Level
	injectLegacyXCTC bool
}

func defaultConfig() *config {
	return &config{
		propagateTrace:   true,
		enableOTel:       true,
		includePeer:      true,
		includeAuthority: true,
		requestLogLevel:  slog.LevelInfo,
	}
}

func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithProjectID sets the project used to format trace names.
func WithProjectID(projectID string) Option {
	return func(cfg *config) {
		cfg.projectID = projectID
	}
}

// WithPropagators overrides the propagator used for metadata extraction and
// injection.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *config) {
		cfg.propagators = p
	}
}

// WithTracerProvider installs the tracer provider used by otelgrpc.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.tracerProvider = tp
	}
}

// WithTracePropagation toggles trace extraction and injection.
func WithTracePropagation(enabled bool) Option {
	return func(cfg *config) {
		cfg.propagateTrace = enabled
	}
}

// WithOTel toggles the otelgrpc stats handlers returned by ServerOptions and
// DialOptions.
func WithOTel(enabled bool) Option {
	return func(cfg *config) {
		cfg.enableOTel = enabled
	}
}

// WithFilter appends an otelgrpc filter.
func WithFilter(filter otelgrpc.Filter) Option {
	return func(cfg *config) {
		if filter != nil {
			cfg.filters = append(cfg.filters, filter)
		}
	}
}

// WithPeerInfo toggles the client_ip field taken from the peer address.
func WithPeerInfo(enabled bool) Option {
	return func(cfg *config) {
		cfg.includePeer = enabled
	}
}

// WithAuthority toggles the host_name field taken from :authority.
func WithAuthority(enabled bool) Option {
	return func(cfg *config) {
		cfg.includeAuthority = enabled
	}
}

// WithRequestLog logs one entry per server RPC through logger once the
// handler returns.
func WithRequestLog(logger *slog.Logger, level slog.Level) Option {
	return func(cfg *config) {
		cfg.requestLogger = logger
		cfg.requestLogLevel = level
	}
}

// WithLegacyXCloudInjection adds X-Cloud-Trace-Context to outgoing metadata.
func WithLegacyXCloudInjection(enabled bool) Option {
	return func(cfg *config) {
		cfg.injectLegacyXCTC = enabled
	}
}
