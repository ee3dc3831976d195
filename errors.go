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
	"errors"

	"github.com/zeppos/gcloudlog/internal/gcp"
)

var (
	// ErrProjectIDMissing is returned by NewHandler when no project ID was
	// supplied and none could be resolved from the environment or the
	// metadata server.
	ErrProjectIDMissing = gcp.ErrProjectIDMissing

	// ErrClientInitializationFailed wraps failures creating the Cloud Logging
	// client.
	ErrClientInitializationFailed = gcp.ErrClientInitializationFailed

	// ErrClientNotInitialized is returned when a transport is requested from a
	// client that is missing or already closed.
	ErrClientNotInitialized = gcp.ErrClientNotInitialized

	// ErrInvalidLogName is returned for log names Cloud Logging rejects.
	ErrInvalidLogName = gcp.ErrInvalidLogName

	// ErrUnknownTransport is returned when a transport name is not registered.
	ErrUnknownTransport = errors.New("gcloudlog: unknown transport")

	// ErrTransportExists is returned when registering a transport name twice.
	ErrTransportExists = errors.New("gcloudlog: transport already registered")
)
