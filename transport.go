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
	"fmt"
	"slices"
	"sync"
)

// Built-in transport names.
const (
	TransportBackground = "background"
	TransportSync       = "sync"
)

func init() {
	mustRegister(TransportBackground, NewBackgroundTransport)
	mustRegister(TransportSync, NewSyncTransport)
}

// loggerTransport delivers entries through an EntryLogger obtained from the
// client. sync selects LogSync over the buffered Log.
type loggerTransport struct {
	logger EntryLogger
	sync   bool

	closeOnce sync.Once
	closeErr  error
}

// NewBackgroundTransport returns a transport that hands entries to the client
// library's bundler. Send never blocks on the network; delivery errors are
// reported through the client's error hook.
func NewBackgroundTransport(client Client, logName string) (Transport, error) {
	return newLoggerTransport(client, logName, false)
}

// NewSyncTransport returns a transport that writes each entry with a single
// blocking RPC and returns its error.
func NewSyncTransport(client Client, logName string) (Transport, error) {
	return newLoggerTransport(client, logName, true)
}

func newLoggerTransport(client Client, logName string, sync bool) (*loggerTransport, error) {
	if client == nil {
		return nil, fmt.Errorf("create transport for log %q: %w", logName, ErrClientNotInitialized)
	}
	l, err := client.Logger(logName)
	if err != nil {
		return nil, fmt.Errorf("create transport for log %q: %w", logName, err)
	}
	return &loggerTransport{logger: l, sync: sync}, nil
}

// Send implements Transport.
func (t *loggerTransport) Send(ctx context.Context, p Payload) error {
	e := p.Entry()
	if t.sync {
		if ctx == nil {
			ctx = context.Background()
		}
		return t.logger.LogSync(ctx, e)
	}
	t.logger.Log(e)
	return nil
}

// Flush implements Transport.
func (t *loggerTransport) Flush() error {
	if t.sync {
		return nil
	}
	return t.logger.Flush()
}

// Close implements Transport.
func (t *loggerTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.Flush()
	})
	return t.closeErr
}

type transportRegistry struct {
	mu       sync.Mutex
	registry map[string]TransportFactory
}

func (r *transportRegistry) register(name string, f TransportFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" || f == nil {
		return fmt.Errorf("register transport %q: name and factory are required", name)
	}
	if _, ok := r.registry[name]; ok {
		return fmt.Errorf("register transport %q: %w", name, ErrTransportExists)
	}
	r.registry[name] = f
	return nil
}

func (r *transportRegistry) get(name string) (TransportFactory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.registry[name]
	if !ok {
		return nil, fmt.Errorf("transport %q: %w", name, ErrUnknownTransport)
	}
	return f, nil
}

func (r *transportRegistry) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.registry))
	for name := range r.registry {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

var transports = &transportRegistry{registry: make(map[string]TransportFactory)}

// RegisterTransport makes a transport factory available under name for
// WithTransportName and declarative configuration.
func RegisterTransport(name string, f TransportFactory) error {
	return transports.register(name, f)
}

// LookupTransport returns the factory registered under name.
func LookupTransport(name string) (TransportFactory, error) {
	return transports.get(name)
}

// TransportNames lists the registered transport names in sorted order.
func TransportNames() []string {
	return transports.names()
}

func mustRegister(name string, f TransportFactory) {
	if err := RegisterTransport(name, f); err != nil {
		panic(err)
	}
}
