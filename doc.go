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

// Package gcloudlog forwards [log/slog] records to Google Cloud Logging.
//
// The primary entry point is [NewHandler], which returns a [Handler] bound to
// a Cloud Logging client and a [Transport]. For every record the handler:
//   - renders the record body with a [Formatter] and parses it into a
//     structured info payload (JSON, or literal mappings such as
//     `{'k': 'v'}`);
//   - adds the standard fields `filename`, `funcName`, `level_name`,
//     `level_no`, `line_no`, `module`, `logger_name`, `pathname`,
//     `client_ip` and `host_name`;
//   - merges caller data supplied under the `data` key or through [Data],
//     with caller data winning on collision;
//   - resolves the monitored resource, labels, trace, span and HTTP request
//     from [Fields] carried by the context or by typed attributes;
//   - hands the resulting [Payload] to the transport.
//
// Malformed bodies never fail a log call: the handler reports them on its
// diagnostic writer and still sends the standard fields.
//
// # Transports
//
// The "background" transport (default) buffers entries in the client
// library; "sync" writes each entry with one RPC. The gcloudlogasync
// subpackage registers an "async" transport with a bounded queue. Custom
// transports are added with [RegisterTransport].
//
// # Subpackages
//
//   - [github.com/zeppos/gcloudlog/gcloudloghttp] attaches request fields
//     and trace context in net/http middleware.
//   - [github.com/zeppos/gcloudlog/gcloudloggrpc] does the same for gRPC
//     servers.
//   - [github.com/zeppos/gcloudlog/logconfig] builds loggers from a YAML
//     document.
//   - [github.com/zeppos/gcloudlog/loggingtest] runs an in-process fake of
//     the Cloud Logging API for tests.
//
// # Quick Start
//
//	handler, err := gcloudlog.NewHandler(ctx, "my-project")
//	if err != nil {
//	    log.Fatalf("create gcloudlog handler: %v", err)
//	}
//	defer handler.Close() // flushes buffered entries
//
//	logger := slog.New(handler)
//	logger.Info("application started",
//	    gcloudlog.Data(map[string]any{"field1": "test1"}),
//	    gcloudlog.Labels(map[string]string{"env": "dev"}),
//	)
package gcloudlog
