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
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"

	"cloud.google.com/go/logging/apiv2/loggingpb"
	mrpb "google.golang.org/genproto/googleapis/api/monitoredres"

	"github.com/zeppos/gcloudlog/internal/gcp"
)

// Handler is an slog.Handler that forwards records to Google Cloud Logging.
//
// For each record it renders the body with the configured Formatter, parses
// it into the structured info payload, adds the standard source and level
// fields, merges caller data, resolves resource, labels, trace, span and
// HTTP request, and hands the resulting Payload to its Transport.
//
// A Handler is immutable and safe for concurrent use. Handlers derived with
// WithAttrs, WithGroup or Named share the transport and client of their
// parent; closing any of them closes all.
type Handler struct {
	core       *handlerCore
	attrs      []groupedAttr
	groups     []string
	loggerName string
}

// handlerCore holds configuration resolved once at construction.
type handlerCore struct {
	projectID string
	logName   string
	resource  *mrpb.MonitoredResource
	labels    map[string]string
	formatter Formatter
	leveler   slog.Leveler
	levelVar  *slog.LevelVar

	client     Client
	ownsClient bool
	transport  Transport
	diag       *slog.Logger
	metrics    *handlerMetrics

	closeOnce sync.Once
	closeErr  error
}

var _ slog.Handler = (*Handler)(nil)

// NewHandler builds a Handler writing to projectID. An empty projectID falls
// back to GCLOUDLOG_PROJECT_ID, GOOGLE_CLOUD_PROJECT, the injected client and
// finally the metadata server.
//
// Construction creates a Cloud Logging client unless WithClient is given and
// binds the transport to it. Errors from either step are returned.
//
// Example:
//
//	h, err := gcloudlog.NewHandler(ctx, "my-project",
//		gcloudlog.WithLogName("app"),
//		gcloudlog.WithLabels(map[string]string{"env": "dev"}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer h.Close()
//	logger := slog.New(h)
func NewHandler(ctx context.Context, projectID string, opts ...Option) (*Handler, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	builder := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(builder)
		}
	}

	diag := builder.diagLogger
	if diag == nil {
		w := builder.diagWriter
		if w == nil {
			w = os.Stderr
		}
		diag = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	cfg := gcp.LoadConfig()
	applyOptions(&cfg, builder)

	client := builder.client
	if client != nil {
		cfg.ProjectID = firstNonEmpty(projectID, client.ProjectID(), cfg.ProjectID)
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("gcloudlog: %w", ErrProjectIDMissing)
		}
	} else {
		pid, err := gcp.ResolveProjectID(ctx, firstNonEmpty(projectID, cfg.ProjectID))
		if err != nil {
			return nil, fmt.Errorf("gcloudlog: %w", err)
		}
		cfg.ProjectID = pid
	}
	cfg.Resource = resolveResource(ctx, cfg, builder)

	factory, err := resolveTransportFactory(cfg, builder)
	if err != nil {
		return nil, fmt.Errorf("gcloudlog: %w", err)
	}

	ownsClient := false
	if client == nil {
		cm := gcp.NewClientManager(cfg, UserAgent, builder.clientOpts, diag)
		if err := cm.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("gcloudlog: %w", err)
		}
		client = &managedClient{cm: cm}
		ownsClient = true
	}
	closeOwned := func() {
		if ownsClient {
			_ = client.Close()
		}
	}

	transport, err := factory(client, cfg.LogName)
	if err != nil {
		closeOwned()
		return nil, fmt.Errorf("gcloudlog: build transport: %w", err)
	}

	metrics, err := newHandlerMetrics(builder.registerer, cfg.LogName)
	if err != nil {
		_ = transport.Close()
		closeOwned()
		return nil, fmt.Errorf("gcloudlog: register metrics: %w", err)
	}

	core := &handlerCore{
		projectID:  cfg.ProjectID,
		logName:    cfg.LogName,
		resource:   cfg.Resource,
		labels:     maps.Clone(cfg.Labels),
		formatter:  builder.formatter,
		client:     client,
		ownsClient: ownsClient,
		transport:  transport,
		diag:       diag,
		metrics:    metrics,
	}
	if core.formatter == nil {
		core.formatter = JSONFormatter{}
	}
	if builder.leveler != nil {
		core.leveler = builder.leveler
	} else {
		core.levelVar = new(slog.LevelVar)
		core.levelVar.Set(cfg.Level)
		core.leveler = core.levelVar
	}

	loggerName := cfg.LogName
	if builder.loggerName != nil {
		loggerName = *builder.loggerName
	}

	h := &Handler{core: core, loggerName: loggerName}
	if len(builder.attrs) > 0 {
		h = h.withAttrs(builder.attrs)
	}
	if builder.group != "" {
		h = h.withGroup(builder.group)
	}

	logDiagnostic(diag, slog.LevelDebug, "gcloudlog handler ready",
		slog.String("project", core.projectID),
		slog.String("log_name", core.logName),
		slog.String("resource", core.resource.GetType()),
	)
	return h, nil
}

// applyOptions layers programmatic options over the environment config.
func applyOptions(cfg *gcp.Config, o *options) {
	if o.logName != nil {
		cfg.LogName = *o.logName
	}
	if cfg.LogName == "" {
		cfg.LogName = gcp.DefaultLogName
	}
	if o.transportName != nil {
		cfg.Transport = *o.transportName
	}
	if o.level != nil {
		cfg.Level = *o.level
	}
	if o.labels != nil {
		merged := maps.Clone(cfg.Labels)
		if merged == nil {
			merged = make(map[string]string, len(o.labels))
		}
		maps.Copy(merged, o.labels)
		cfg.Labels = merged
	}
	if o.entryCountThresh != nil {
		cfg.EntryCountThreshold = o.entryCountThresh
	}
	if o.delayThreshold != nil {
		cfg.DelayThreshold = o.delayThreshold
	}
}

// resolveResource picks the handler's default monitored resource: an explicit
// option, detection, the environment, then the global resource.
func resolveResource(ctx context.Context, cfg gcp.Config, o *options) *mrpb.MonitoredResource {
	switch {
	case o.resource != nil:
		return o.resource
	case o.detectResource, cfg.ResourceType == gcp.ResourceTypeAuto:
		return DetectResource(ctx, cfg.ProjectID)
	case cfg.Resource != nil:
		return cfg.Resource
	default:
		return GlobalResource(cfg.ProjectID)
	}
}

func resolveTransportFactory(cfg gcp.Config, o *options) (TransportFactory, error) {
	if o.transport != nil {
		return o.transport, nil
	}
	name := cfg.Transport
	if name == "" {
		name = gcp.DefaultTransport
	}
	return LookupTransport(name)
}

// Enabled reports whether level meets the handler's minimum level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.core.leveler.Level()
}

// Handle converts r into a Payload and sends it through the transport.
// Problems with the record body or its data never fail the call; they are
// reported on the diagnostic channel. Transport errors are returned.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c := h.core
	p := c.buildPayload(ctx, r, h.collectAttrs(r), h.loggerName)
	if err := c.transport.Send(ctx, p); err != nil {
		c.metrics.recordSendError()
		logDiagnostic(c.diag, slog.LevelError, "failed to send log entry",
			slog.String("log_name", c.logName), slog.Any("error", err))
		return err
	}
	c.metrics.recordSent()
	return nil
}

// collectAttrs returns the handler attributes followed by the record's.
func (h *Handler) collectAttrs(r slog.Record) []groupedAttr {
	attrs := make([]groupedAttr, len(h.attrs), len(h.attrs)+r.NumAttrs())
	copy(attrs, h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, groupedAttr{groups: h.groups, attr: a})
		return true
	})
	return attrs
}

// buildPayload resolves every part of the entry for r. Field precedence from
// lowest to highest is handler defaults, context, handler attributes, record
// attributes.
func (c *handlerCore) buildPayload(ctx context.Context, r slog.Record, attrs []groupedAttr, loggerName string) Payload {
	bodyMap, attrFields := bodyAttrs(attrs, false)
	fields := FieldsFromContext(ctx).Merge(attrFields)

	builder := infoBuilder{
		formatter:  c.formatter,
		loggerName: loggerName,
		diagnostic: func(msg string, attrs ...slog.Attr) {
			logDiagnostic(c.diag, slog.LevelWarn, msg, attrs...)
		},
		onFailure: c.metrics.recordParseFailure,
	}
	info := builder.build(r, Body{Time: r.Time, Level: r.Level, Message: r.Message, Attrs: bodyMap}, fields)

	resource := c.resource
	if fields.Resource != nil {
		resource = fields.Resource
	}

	trace, spanID, sampled := fields.Trace, fields.SpanID, false
	if formatted, rawTrace, rawSpan, isSampled, ok := ExtractTraceSpan(ctx, c.projectID); ok {
		if trace == "" && spanID == "" {
			trace = firstNonEmpty(formatted, rawTrace)
			spanID = rawSpan
		}
		if trace == formatted || trace == rawTrace {
			sampled = isSampled
		}
	}

	return Payload{
		Time:           r.Time,
		Level:          r.Level,
		Severity:       gcp.SeverityForLevel(r.Level),
		Message:        r.Message,
		Info:           info,
		Resource:       resource,
		Labels:         mergeLabels(c.labels, fields.Labels),
		Trace:          trace,
		SpanID:         spanID,
		TraceSampled:   sampled,
		HTTPRequest:    fields.HTTPRequest,
		SourceLocation: sourceLocation(r.PC),
	}
}

// mergeLabels returns defaults overlaid with event labels in a new map, or
// nil when both are empty. Neither input is modified.
func mergeLabels(defaults, event map[string]string) map[string]string {
	if len(defaults) == 0 && len(event) == 0 {
		return nil
	}
	out := make(map[string]string, len(defaults)+len(event))
	maps.Copy(out, defaults)
	maps.Copy(out, event)
	return out
}

func sourceLocation(pc uintptr) *loggingpb.LogEntrySourceLocation {
	src, ok := sourceFromPC(pc)
	if !ok {
		return nil
	}
	return &loggingpb.LogEntrySourceLocation{
		File:     src.file,
		Line:     int64(src.line),
		Function: src.function,
	}
}

// WithAttrs returns a handler whose records include attrs. Event field
// attributes among them apply to every record of the new handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.withAttrs(attrs)
}

func (h *Handler) withAttrs(attrs []slog.Attr) *Handler {
	clone := *h
	clone.attrs = slices.Clip(h.attrs)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, groupedAttr{groups: h.groups, attr: a})
	}
	return &clone
}

// WithGroup returns a handler that nests subsequent attributes under name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.withGroup(name)
}

func (h *Handler) withGroup(name string) *Handler {
	clone := *h
	clone.groups = append(slices.Clip(h.groups), name)
	return &clone
}

// Named returns a handler reporting name in the logger_name info field.
func (h *Handler) Named(name string) *Handler {
	clone := *h
	clone.loggerName = name
	return &clone
}

// ProjectID reports the project entries are written to.
func (h *Handler) ProjectID() string { return h.core.projectID }

// LogName reports the Cloud Logging log name.
func (h *Handler) LogName() string { return h.core.logName }

// Resource reports the default monitored resource.
func (h *Handler) Resource() *mrpb.MonitoredResource { return h.core.resource }

// SetLevel changes the minimum level. It has no effect when the level is
// controlled through WithLeveler.
func (h *Handler) SetLevel(level slog.Level) {
	if h.core.levelVar != nil {
		h.core.levelVar.Set(level)
	}
}

// Level reports the current minimum level.
func (h *Handler) Level() slog.Level { return h.core.leveler.Level() }

// Flush blocks until entries accepted by the transport have been delivered.
func (h *Handler) Flush() error {
	return h.core.transport.Flush()
}

// Close flushes and closes the transport and, when the handler created it,
// the client. It is safe to call multiple times.
func (h *Handler) Close() error {
	c := h.core
	c.closeOnce.Do(func() {
		var errs []error
		if err := c.transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
		if c.ownsClient {
			if err := c.client.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close client: %w", err))
			}
		}
		c.closeErr = errors.Join(errs...)
		if c.closeErr != nil {
			logDiagnostic(c.diag, slog.LevelError, "failed to close gcloudlog handler", slog.Any("error", c.closeErr))
		}
	})
	return c.closeErr
}

// logDiagnostic emits internal diagnostic messages, guarding against nil
// loggers in tests.
func logDiagnostic(logger *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	logger.LogAttrs(context.Background(), level, msg, attrs...)
}
