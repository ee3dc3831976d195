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

package gcloudloghttp

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Option configures HTTP middleware or transport behaviour.
type Option func(*config)

type config struct {
	projectID         string
	enableOTel        bool
	tracerProvider    trace.TracerProvider
	propagators       propagation.TextMapPropagator
	propagateTrace    bool
	publicEndpoint    bool
	spanNameFormatter func(string, *http.Request) string
	filters           []otelhttp.Filter
	trustProxy        bool
	includeClientIP   bool
	includeHostName   bool
	includeHTTPReq    bool
	requestLogger     *slog.Logger
	requestLogLevel   slog.Level
	injectLegacyXCTC  bool
}

// defaultConfig returns the baseline configuration for the HTTP helpers.
func defaultConfig() *config {
	return &config{
		enableOTel:      true,
		propagateTrace:  true,
		includeClientIP: true,
		includeHostName: true,
		requestLogLevel: slog.LevelInfo,
	}
}

// applyOptions applies the provided options on top of defaultConfig.
func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithProjectID sets the project used to format trace names. When unset, the
// middleware reads GCLOUDLOG_PROJECT_ID or GOOGLE_CLOUD_PROJECT.
func WithProjectID(projectID string) Option {
	return func(cfg *config) {
		cfg.projectID = projectID
	}
}

// WithPropagators supplies the propagator used for extracting (server) or
// injecting (client) trace context. When omitted, otel.GetTextMapPropagator()
// is used.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *config) {
		cfg.propagators = p
	}
}

// WithTracerProvider installs the tracer provider used by otelhttp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.tracerProvider = tp
	}
}

// WithTracePropagation toggles extraction and injection of trace context.
// Enabled by default.
func WithTracePropagation(enabled bool) Option {
	return func(cfg *config) {
		cfg.propagateTrace = enabled
	}
}

// WithOTel enables or disables otelhttp span creation. Enabled by default.
func WithOTel(enabled bool) Option {
	return func(cfg *config) {
		cfg.enableOTel = enabled
	}
}

// WithPublicEndpoint toggles the otelhttp public endpoint hint, which starts
// a new trace linked to the incoming one.
func WithPublicEndpoint(enabled bool) Option {
	return func(cfg *config) {
		cfg.publicEndpoint = enabled
	}
}

// WithSpanNameFormatter customizes otelhttp span naming.
func WithSpanNameFormatter(formatter func(string, *http.Request) string) Option {
	return func(cfg *config) {
		cfg.spanNameFormatter = formatter
	}
}

// WithFilter appends an otelhttp filter applied before span creation.
func WithFilter(filter otelhttp.Filter) Option {
	return func(cfg *config) {
		if filter != nil {
			cfg.filters = append(cfg.filters, filter)
		}
	}
}

// WithTrustProxy makes the first X-Forwarded-For hop the client IP. Only
// enable it behind a proxy that sets the header.
func WithTrustProxy(enabled bool) Option {
	return func(cfg *config) {
		cfg.trustProxy = enabled
	}
}

// WithClientIP toggles the client_ip field. Enabled by default.
func WithClientIP(enabled bool) Option {
	return func(cfg *config) {
		cfg.includeClientIP = enabled
	}
}

// WithHostName toggles the host_name field. Enabled by default.
func WithHostName(enabled bool) Option {
	return func(cfg *config) {
		cfg.includeHostName = enabled
	}
}

// WithHTTPRequest attaches the request description to every entry logged
// while serving it. Off by default; the request log always carries it.
func WithHTTPRequest(enabled bool) Option {
	return func(cfg *config) {
		cfg.includeHTTPReq = enabled
	}
}

// WithRequestLog logs one entry per request through logger once the
// response is written, carrying status, sizes and latency.
func WithRequestLog(logger *slog.Logger, level slog.Level) Option {
	return func(cfg *config) {
		cfg.requestLogger = logger
		cfg.requestLogLevel = level
	}
}

// WithLegacyXCloudInjection makes Transport also set X-Cloud-Trace-Context
// on outbound requests.
func WithLegacyXCloudInjection(enabled bool) Option {
	return func(cfg *config) {
		cfg.injectLegacyXCTC = enabled
	}
}
