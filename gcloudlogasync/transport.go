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

package gcloudlogasync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeppos/gcloudlog"
)

const (
	// TransportName is the registry name of the transport built by init.
	TransportName = "async"

	defaultQueueSize = 1024

	envAsyncEnabled      = "GCLOUDLOG_ASYNC_ENABLED"
	envAsyncQueueSize    = "GCLOUDLOG_ASYNC_QUEUE_SIZE"
	envAsyncDropMode     = "GCLOUDLOG_ASYNC_DROP_MODE"
	envAsyncWorkers      = "GCLOUDLOG_ASYNC_WORKERS"
	envAsyncBatchSize    = "GCLOUDLOG_ASYNC_BATCH_SIZE"
	envAsyncFlushTimeout = "GCLOUDLOG_ASYNC_FLUSH_TIMEOUT"
)

func init() {
	if err := gcloudlog.RegisterTransport(TransportName, Factory(gcloudlog.NewSyncTransport, WithEnv())); err != nil {
		panic(err)
	}
}

// DropMode controls how Send behaves when the queue is full.
type DropMode int

const (
	// DropModeBlock blocks the caller when the queue is full.
	DropModeBlock DropMode = iota
	// DropModeDropNewest drops the incoming payload when the queue is full.
	DropModeDropNewest
	// DropModeDropOldest drops the oldest queued payload when the queue is full.
	DropModeDropOldest
)

// String returns the configuration name of m.
func (m DropMode) String() string {
	switch m {
	case DropModeDropNewest:
		return "drop_newest"
	case DropModeDropOldest:
		return "drop_oldest"
	default:
		return "block"
	}
}

// ParseDropMode converts a configuration name into a DropMode.
func ParseDropMode(s string) (DropMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return DropModeBlock, nil
	case "drop_newest", "drop-newest":
		return DropModeDropNewest, nil
	case "drop_oldest", "drop-oldest":
		return DropModeDropOldest, nil
	}
	return DropModeBlock, fmt.Errorf("gcloudlogasync: unknown drop mode %q", s)
}

// ErrFlushTimeout indicates Close returned before the queue was fully drained.
var ErrFlushTimeout = errors.New("gcloudlogasync: flush timeout")

// DropHandler observes dropped payloads.
type DropHandler func(ctx context.Context, p gcloudlog.Payload)

// Config controls queue behaviour.
type Config struct {
	Enabled      bool
	QueueSize    int
	WorkerCount  int
	BatchSize    int
	DropMode     DropMode
	OnDrop       DropHandler
	ErrorWriter  io.Writer
	FlushTimeout time.Duration

	workerStarter func(func())
}

// Option customizes queue configuration.
type Option func(*Config)

// WithEnabled toggles the queue on or off. A disabled queue returns the
// inner transport unchanged.
func WithEnabled(enabled bool) Option {
	return func(cfg *Config) {
		cfg.Enabled = enabled
	}
}

// WithQueueSize adjusts the queue capacity. Zero yields an unbuffered queue.
func WithQueueSize(size int) Option {
	return func(cfg *Config) {
		cfg.QueueSize = size
	}
}

// WithWorkerCount configures the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(cfg *Config) {
		cfg.WorkerCount = count
	}
}

// WithBatchSize sets how many queued payloads a worker drains per wake-up.
// Values less than 1 default to 1.
func WithBatchSize(size int) Option {
	return func(cfg *Config) {
		cfg.BatchSize = size
	}
}

// WithDropMode sets the queue overflow strategy.
func WithDropMode(mode DropMode) Option {
	return func(cfg *Config) {
		cfg.DropMode = mode
	}
}

// WithOnDrop registers a callback invoked when a payload is dropped.
func WithOnDrop(fn DropHandler) Option {
	return func(cfg *Config) {
		cfg.OnDrop = fn
	}
}

// WithErrorWriter directs worker errors and panic reports to w. Use nil to
// silence error reporting.
func WithErrorWriter(w io.Writer) Option {
	return func(cfg *Config) {
		cfg.ErrorWriter = w
	}
}

// WithFlushTimeout limits how long Close waits for workers to finish.
func WithFlushTimeout(timeout time.Duration) Option {
	return func(cfg *Config) {
		cfg.FlushTimeout = timeout
	}
}

// WithEnv overlays configuration from environment variables.
func WithEnv() Option {
	return func(cfg *Config) {
		applyEnv(cfg)
	}
}

// Factory returns a TransportFactory that builds inner and queues in front
// of it.
func Factory(inner gcloudlog.TransportFactory, opts ...Option) gcloudlog.TransportFactory {
	if inner == nil {
		inner = gcloudlog.NewSyncTransport
	}
	return func(client gcloudlog.Client, logName string) (gcloudlog.Transport, error) {
		t, err := inner(client, logName)
		if err != nil {
			return nil, err
		}
		return Wrap(t, opts...), nil
	}
}

// Transport queues payloads for an inner transport. It is safe for
// concurrent use.
type Transport struct {
	inner    gcloudlog.Transport
	dropMode DropMode
	onDrop   DropHandler

	queue        chan queuedPayload
	wg           sync.WaitGroup
	closed       atomic.Bool
	flushTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
	errWriter    io.Writer

	pendingMu   sync.Mutex
	pendingCond *sync.Cond
	pending     int
}

type queuedPayload struct {
	ctx     context.Context
	payload gcloudlog.Payload
}

var _ gcloudlog.Transport = (*Transport)(nil)

// Wrap returns a queued transport around inner unless disabled.
func Wrap(inner gcloudlog.Transport, opts ...Option) gcloudlog.Transport {
	cfg := buildConfig(opts)
	if !cfg.Enabled {
		return inner
	}
	return newTransport(inner, cfg)
}

// newTransport constructs a Transport and spins up workers according to cfg.
func newTransport(inner gcloudlog.Transport, cfg Config) *Transport {
	t := &Transport{
		inner:        inner,
		dropMode:     cfg.DropMode,
		onDrop:       cfg.OnDrop,
		queue:        make(chan queuedPayload, cfg.QueueSize),
		flushTimeout: cfg.FlushTimeout,
		errWriter:    cfg.ErrorWriter,
	}
	t.pendingCond = sync.NewCond(&t.pendingMu)

	start := func() {
		t.wg.Add(cfg.WorkerCount)
		for range cfg.WorkerCount {
			go t.worker(cfg.BatchSize)
		}
	}
	if cfg.workerStarter != nil {
		cfg.workerStarter(start)
	} else {
		start()
	}
	return t
}

func (t *Transport) worker(batchSize int) {
	defer t.wg.Done()
	for item := range t.queue {
		t.deliver(item)
		for n := 1; n < batchSize; n++ {
			select {
			case next, ok := <-t.queue:
				if !ok {
					return
				}
				t.deliver(next)
			default:
				goto nextItem
			}
		}
	nextItem:
	}
}

func (t *Transport) deliver(item queuedPayload) {
	defer t.done()
	defer func() {
		if r := recover(); r != nil {
			t.logError("gcloudlogasync: recovered panic from transport: %v\n", r)
		}
	}()
	if err := t.inner.Send(item.ctx, item.payload); err != nil {
		t.logError("gcloudlogasync: transport error: %v\n", err)
	}
}

func (t *Transport) logError(format string, args ...any) {
	if t.errWriter == nil {
		return
	}
	_, _ = fmt.Fprintf(t.errWriter, format, args...)
}

func (t *Transport) add() {
	t.pendingMu.Lock()
	t.pending++
	t.pendingMu.Unlock()
}

func (t *Transport) done() {
	t.pendingMu.Lock()
	t.pending--
	if t.pending == 0 {
		t.pendingCond.Broadcast()
	}
	t.pendingMu.Unlock()
}

func (t *Transport) drop(item queuedPayload) {
	if t.onDrop != nil {
		t.onDrop(item.ctx, item.payload)
	}
}

// Send enqueues p. The context is detached from cancellation so queued
// payloads outlive the request that produced them.
func (t *Transport) Send(ctx context.Context, p gcloudlog.Payload) error {
	if ctx == nil {
		ctx = context.Background()
	}
	item := queuedPayload{ctx: context.WithoutCancel(ctx), payload: p}
	if t.closed.Load() {
		t.drop(item)
		return nil
	}
	t.enqueue(item)
	return nil
}

// enqueue routes a payload into the queue respecting drop policies and
// recovers from sends on a closed queue.
func (t *Transport) enqueue(item queuedPayload) {
	t.add()
	defer func() {
		if recover() != nil {
			t.done()
			t.drop(item)
		}
	}()

	switch t.dropMode {
	case DropModeDropNewest:
		select {
		case t.queue <- item:
		default:
			t.done()
			t.drop(item)
		}
	case DropModeDropOldest:
		select {
		case t.queue <- item:
		default:
			select {
			case dropped := <-t.queue:
				t.done()
				t.drop(dropped)
			default:
			}
			select {
			case t.queue <- item:
			default:
				t.done()
				t.drop(item)
			}
		}
	default:
		t.queue <- item
	}
}

// Flush waits until every queued payload has been handed to the inner
// transport, then flushes it. Once Close has started, Flush returns without
// waiting; draining is then bounded by the flush timeout.
func (t *Transport) Flush() error {
	t.pendingMu.Lock()
	for t.pending > 0 && !t.closed.Load() {
		t.pendingCond.Wait()
	}
	t.pendingMu.Unlock()
	if t.closed.Load() {
		return nil
	}
	return t.inner.Flush()
}

// Close drains the queue, bounded by the flush timeout, then closes the
// inner transport.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if t.closed.CompareAndSwap(false, true) {
			close(t.queue)
		}
		t.pendingMu.Lock()
		t.pendingCond.Broadcast()
		t.pendingMu.Unlock()

		done := make(chan struct{})
		go func() {
			t.wg.Wait()
			close(done)
		}()

		if t.flushTimeout > 0 {
			select {
			case <-done:
			case <-time.After(t.flushTimeout):
				t.closeErr = ErrFlushTimeout
			}
		} else {
			<-done
		}

		if err := t.inner.Close(); err != nil && t.closeErr == nil {
			t.closeErr = err
		}
	})
	return t.closeErr
}

// buildConfig applies options with defaults and clamps invalid values.
func buildConfig(opts []Option) Config {
	cfg := Config{
		Enabled:     true,
		QueueSize:   defaultQueueSize,
		WorkerCount: 1,
		BatchSize:   1,
		DropMode:    DropModeBlock,
		ErrorWriter: os.Stderr,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if cfg.QueueSize < 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return cfg
}

// applyEnv overlays configuration from environment variables.
func applyEnv(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv(envAsyncEnabled)); raw != "" {
		if enabled, err := strconv.ParseBool(raw); err == nil {
			cfg.Enabled = enabled
		}
	}
	if raw := strings.TrimSpace(os.Getenv(envAsyncQueueSize)); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil {
			cfg.QueueSize = size
		}
	}
	if raw := strings.TrimSpace(os.Getenv(envAsyncWorkers)); raw != "" {
		if workers, err := strconv.Atoi(raw); err == nil {
			cfg.WorkerCount = workers
		}
	}
	if raw := strings.TrimSpace(os.Getenv(envAsyncBatchSize)); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil {
			cfg.BatchSize = size
		}
	}
	if raw := strings.TrimSpace(os.Getenv(envAsyncDropMode)); raw != "" {
		if mode, err := ParseDropMode(raw); err == nil {
			cfg.DropMode = mode
		}
	}
	if raw := strings.TrimSpace(os.Getenv(envAsyncFlushTimeout)); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.FlushTimeout = d
		}
	}
}
