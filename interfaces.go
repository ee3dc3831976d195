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
	"context"

	"cloud.google.com/go/logging"

	"github.com/zeppos/gcloudlog/internal/gcp"
)

// Client represents an authenticated connection to Cloud Logging bound to a
// single project. The Handler obtains one at construction and hands it to the
// transport factory.
//
// The default implementation wraps *logging.Client. Custom implementations
// are mostly useful in tests.
type Client interface {
	// ProjectID reports the project entries are written to. It is also used
	// to format trace names derived from the request context.
	ProjectID() string

	// Logger returns a logger writing to logName. Implementations may apply
	// their own buffering defaults before opts.
	Logger(logName string, opts ...logging.LoggerOption) (EntryLogger, error)

	// Close flushes buffered entries and releases the connection.
	Close() error
}

// EntryLogger is the subset of *logging.Logger used by the built-in
// transports.
type EntryLogger interface {
	// Log buffers e for background delivery. Delivery errors are reported
	// through the client's error hook.
	Log(e logging.Entry)

	// LogSync writes e immediately and returns any delivery error.
	LogSync(ctx context.Context, e logging.Entry) error

	// Flush blocks until all buffered entries are sent.
	Flush() error
}

// Transport delivers payloads to Cloud Logging. Send must be safe for
// concurrent use; the Handler adds no synchronization of its own.
type Transport interface {
	// Send delivers or enqueues p. Buffering transports return nil once the
	// payload is accepted.
	Send(ctx context.Context, p Payload) error

	// Flush blocks until previously accepted payloads have been delivered.
	Flush() error

	// Close flushes and releases transport resources. It does not close the
	// Client.
	Close() error
}

// TransportFactory builds a Transport bound to client and logName.
type TransportFactory func(client Client, logName string) (Transport, error)

// managedClient adapts the internal client manager to Client.
type managedClient struct {
	cm *gcp.ClientManager
}

func (c *managedClient) ProjectID() string { return c.cm.ProjectID() }

func (c *managedClient) Logger(logName string, opts ...logging.LoggerOption) (EntryLogger, error) {
	l, err := c.cm.Logger(logName, opts...)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (c *managedClient) Close() error { return c.cm.Close() }

var _ Client = (*managedClient)(nil)
