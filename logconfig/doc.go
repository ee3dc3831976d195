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

// Package logconfig builds an *slog.Logger from a declarative YAML document
// listing named formatters, handlers and the root wiring:
//
//	formatters:
//	  single-line:
//	    format: '{"message":{{json .Message}},"data":{{json (.Attr "data")}}}'
//	handlers:
//	  console: {type: console, level: debug, formatter: single-line, stream: stdout}
//	  cloud: {type: gcloud, project: my-project, log_name: app, labels: {env: dev}}
//	  rolling: {type: file, path: app.log, max_size_mb: 10}
//	root: {level: info, handlers: [console, cloud]}
//
// Handler types are console (gcloudlog.StreamHandler on stdout or stderr),
// file (StreamHandler over a lumberjack rotating file) and gcloud
// (gcloudlog.Handler). A gcloud handler reports logger_name as its log name
// unless logger_name is set. Environment variables prefixed with GCLOUDLOG_ and
// using "__" as the path separator override document values.
package logconfig
