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

// Package gcloudloggrpc attaches request-scoped gcloudlog fields to gRPC
// servers and propagates trace metadata from gRPC clients.
//
// Server interceptors store the trace, span, peer address and :authority of
// each RPC in its context. ServerOptions installs them together with the
// otelgrpc stats handler:
//
//	srv := grpc.NewServer(gcloudloggrpc.ServerOptions(
//		gcloudloggrpc.WithProjectID("my-project"),
//	)...)
package gcloudloggrpc
