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

// Package gcloudloghttp attaches request-scoped gcloudlog fields to net/http
// servers and propagates trace context from net/http clients.
//
// Middleware extracts the incoming trace context (W3C traceparent or
// X-Cloud-Trace-Context, depending on the configured propagator), optionally
// starts an otelhttp server span, and stores trace, span, client IP, host name
// and request details in the request context:
//
//	handler := gcloudloghttp.Middleware(
//		gcloudloghttp.WithProjectID("my-project"),
//		gcloudloghttp.WithRequestLog(logger, slog.LevelInfo),
//	)(mux)
//
// Records logged with r.Context() through a gcloudlog.Handler then carry
// those fields without further plumbing.
package gcloudloghttp
