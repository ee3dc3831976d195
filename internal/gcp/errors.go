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

package gcp

import "errors"

// ErrProjectIDMissing indicates that a Google Cloud project ID could not be
// determined from options, environment variables, or the metadata server.
var ErrProjectIDMissing = errors.New("gcp: project ID required but not found")

// ErrClientInitializationFailed indicates that creating the underlying
// `cloud.google.com/go/logging` client failed. The original error is wrapped.
var ErrClientInitializationFailed = errors.New("gcp: cloud logging client initialization failed")

// ErrClientNotInitialized indicates that an operation requiring an initialized
// Cloud Logging client was attempted before Initialize succeeded, or after
// Close.
var ErrClientNotInitialized = errors.New("gcp: cloud logging client not initialized")

// ErrInvalidLogName indicates that a log name violates Cloud Logging LOG_ID
// constraints.
var ErrInvalidLogName = errors.New("gcp: invalid log name")
