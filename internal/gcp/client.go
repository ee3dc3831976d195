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

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"cloud.google.com/go/logging"
	"google.golang.org/api/option"
	mrpb "google.golang.org/genproto/googleapis/api/monitoredres"
)

// gcpClientAPI is the subset of *logging.Client used by ClientManager.
type gcpClientAPI interface {
	Logger(logID string, opts ...logging.LoggerOption) *logging.Logger
	Close() error
}

type realGcpClientWrapper struct {
	realClient *logging.Client
}

func (w *realGcpClientWrapper) Logger(logID string, opts ...logging.LoggerOption) *logging.Logger {
	return w.realClient.Logger(logID, opts...)
}
func (w *realGcpClientWrapper) Close() error { return w.realClient.Close() }

var _ gcpClientAPI = (*realGcpClientWrapper)(nil)

// EntryLogger adapts a concrete *logging.Logger. Log, LogSync and Flush are
// promoted from the embedded logger.
type EntryLogger struct {
	*logging.Logger
}

type newClientFuncType func(ctx context.Context, projectID string, onError func(error), opts ...option.ClientOption) (gcpClientAPI, error)

// ClientManager owns an authenticated Cloud Logging client bound to a single
// project and hands out loggers configured with the resolved buffering
// settings.
type ClientManager struct {
	cfg            Config
	userAgent      string
	clientOpts     []option.ClientOption
	newClientFn    newClientFuncType
	internalLogger *slog.Logger

	mu        sync.Mutex
	client    gcpClientAPI
	initOnce  sync.Once
	initErr   error
	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// NewClientManager creates a ClientManager. clientOpts are appended after the
// options derived from cfg, so callers can override endpoints or credentials
// (for example option.WithGRPCConn in tests). internalLogger receives
// lifecycle diagnostics and background write errors.
func NewClientManager(cfg Config, userAgent string, clientOpts []option.ClientOption, internalLogger *slog.Logger) *ClientManager {
	cm := &ClientManager{
		cfg:            cfg,
		userAgent:      userAgent,
		clientOpts:     clientOpts,
		internalLogger: internalLogger,
	}
	cm.newClientFn = func(ctx context.Context, projectID string, onError func(error), opts ...option.ClientOption) (gcpClientAPI, error) {
		realClient, err := logging.NewClient(ctx, projectID, opts...)
		if err != nil {
			return nil, err
		}
		realClient.OnError = onError
		return &realGcpClientWrapper{realClient: realClient}, nil
	}
	return cm
}

// Initialize creates the underlying Cloud Logging client. Client creation is
// bounded by the configured init timeout. Subsequent calls return the result
// of the first.
func (cm *ClientManager) Initialize(ctx context.Context) error {
	cm.initOnce.Do(func() {
		if cm.cfg.ProjectID == "" {
			cm.initErr = fmt.Errorf("project ID is required for client initialization: %w", ErrProjectIDMissing)
			return
		}

		opts := []option.ClientOption{option.WithUserAgent(cm.userAgent)}
		if len(cm.cfg.ClientScopes) > 0 {
			opts = append(opts, option.WithScopes(cm.cfg.ClientScopes...))
		}
		opts = append(opts, cm.clientOpts...)

		timeout := cm.cfg.InitTimeout
		if timeout <= 0 {
			timeout = defaultClientInitTimeout
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		onError := func(err error) {
			logDiagnostic(cm.internalLogger, slog.LevelError, "Cloud Logging background error", slog.Any("error", err))
		}
		client, err := cm.newClientFn(ctx, cm.cfg.ProjectID, onError, opts...)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				cm.initErr = fmt.Errorf("client creation timed out after %v: %w", timeout, ErrClientInitializationFailed)
			} else {
				cm.initErr = fmt.Errorf("client creation failed: %v: %w", err, ErrClientInitializationFailed)
			}
			return
		}

		cm.mu.Lock()
		cm.client = client
		cm.mu.Unlock()
		logDiagnostic(cm.internalLogger, slog.LevelDebug, "Cloud Logging client initialized", slog.String("project", cm.cfg.ProjectID))
	})
	return cm.initErr
}

// ProjectID reports the project the client writes to.
func (cm *ClientManager) ProjectID() string { return cm.cfg.ProjectID }

// Logger returns a logger for logName carrying the configured buffering
// thresholds and common resource. Extra options are applied last.
func (cm *ClientManager) Logger(logName string, opts ...logging.LoggerOption) (*EntryLogger, error) {
	if cm.initErr != nil {
		return nil, cm.initErr
	}
	cm.mu.Lock()
	client, closed := cm.client, cm.closed
	cm.mu.Unlock()
	if client == nil || closed {
		return nil, ErrClientNotInitialized
	}

	logID, err := NormalizeLogName(logName)
	if err != nil {
		return nil, err
	}

	loggerOpts := cm.loggerOptions()
	loggerOpts = append(loggerOpts, opts...)

	escaped := url.PathEscape(logID)
	l := client.Logger(escaped, loggerOpts...)
	if l == nil {
		return nil, fmt.Errorf("client.Logger(%q) returned nil: %w", escaped, ErrClientInitializationFailed)
	}
	return &EntryLogger{Logger: l}, nil
}

// loggerOptions assembles logger options from configuration. A common
// resource is always set so the client library skips its own detection.
func (cm *ClientManager) loggerOptions() []logging.LoggerOption {
	res := cm.cfg.Resource
	if res == nil {
		res = &mrpb.MonitoredResource{Type: "global"}
	}
	opts := []logging.LoggerOption{logging.CommonResource(res)}
	if cm.cfg.ConcurrentWriteLimit != nil {
		opts = append(opts, logging.ConcurrentWriteLimit(*cm.cfg.ConcurrentWriteLimit))
	}
	if cm.cfg.DelayThreshold != nil {
		opts = append(opts, logging.DelayThreshold(*cm.cfg.DelayThreshold))
	}
	if cm.cfg.EntryCountThreshold != nil {
		opts = append(opts, logging.EntryCountThreshold(*cm.cfg.EntryCountThreshold))
	}
	if cm.cfg.EntryByteThreshold != nil {
		opts = append(opts, logging.EntryByteThreshold(*cm.cfg.EntryByteThreshold))
	}
	if cm.cfg.EntryByteLimit != nil {
		opts = append(opts, logging.EntryByteLimit(*cm.cfg.EntryByteLimit))
	}
	if cm.cfg.BufferedByteLimit != nil {
		opts = append(opts, logging.BufferedByteLimit(*cm.cfg.BufferedByteLimit))
	}
	if cm.cfg.PartialSuccess != nil && *cm.cfg.PartialSuccess {
		opts = append(opts, logging.PartialSuccess())
	}
	return opts
}

// Close flushes every logger created by the client and closes the
// connection. It is idempotent and returns the error from the first call.
func (cm *ClientManager) Close() error {
	cm.closeOnce.Do(func() {
		if cm.initErr != nil {
			cm.closeErr = cm.initErr
			return
		}
		cm.mu.Lock()
		client := cm.client
		cm.closed = true
		cm.mu.Unlock()
		if client == nil {
			cm.closeErr = ErrClientNotInitialized
			return
		}

		logDiagnostic(cm.internalLogger, slog.LevelDebug, "Closing Cloud Logging client")
		if err := client.Close(); err != nil {
			logDiagnostic(cm.internalLogger, slog.LevelError, "Error closing Cloud Logging client", slog.Any("error", err))
			cm.closeErr = err
		}
	})
	return cm.closeErr
}

// logDiagnostic emits internal diagnostic messages, guarding against nil
// loggers in tests.
func logDiagnostic(logger *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}
