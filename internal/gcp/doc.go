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

// Package gcp contains the internal Cloud Logging plumbing used by gcloudlog.
//
// This package is not intended for direct use by consumers of the gcloudlog
// module. It owns the lifecycle of the underlying cloud.google.com/go/logging
// client, resolves configuration from the environment and the metadata
// server, and maps slog levels onto Cloud Logging severities.
package gcp
