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
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/api/option"
	mrpb "google.golang.org/genproto/googleapis/api/monitoredres"
)

// Option configures a Handler during NewHandler. Options are applied in
// order, so later options override earlier ones and any value taken from
// the environment.
type Option func(*options)

// options holds programmatic settings. Pointer fields distinguish an explicit
// zero value from an unset option.
type options struct {
	logName          *string
	loggerName       *string
	transport        TransportFactory
	transportName    *string
	resource         *mrpb.MonitoredResource
	detectResource   bool
	labels           map[string]string
	level            *slog.Level
	leveler          slog.Leveler
	formatter        Formatter
	client           Client
	clientOpts       []option.ClientOption
	diagWriter       io.Writer
	diagLogger       *slog.Logger
	registerer       prometheus.Registerer
	attrs            []slog.Attr
	group            string
	entryCountThresh *int
	delayThreshold   *time.Duration
}

// WithLogName sets the Cloud Logging log name entries are written to. It
// overrides GCLOUDLOG_LOG_NAME. The default is "gcloudlog".
func WithLogName(name string) Option {
	return func(o *options) {
		o.logName = &name
	}
}

// WithLoggerName sets the logger_name info field. It defaults to the log
// name; Handler.Named derives handlers with other names.
func WithLoggerName(name string) Option {
	return func(o *options) {
		o.loggerName = &name
	}
}

// WithTransport sets the factory used to build the handler's transport. It
// takes precedence over WithTransportName.
func WithTransport(f TransportFactory) Option {
	return func(o *options) {
		o.transport = f
	}
}

// WithTransportName selects a registered transport, such as "background",
// "sync" or, once gcloudlogasync is imported, "async". It overrides
// GCLOUDLOG_TRANSPORT.
func WithTransportName(name string) Option {
	return func(o *options) {
		o.transportName = &name
	}
}

// WithResource sets the monitored resource attached to entries that do not
// carry their own. The default is the global resource.
func WithResource(res *mrpb.MonitoredResource) Option {
	return func(o *options) {
		o.resource = res
		o.detectResource = false
	}
}

// WithDetectedResource derives the monitored resource from the runtime
// environment using DetectResource.
func WithDetectedResource() Option {
	return func(o *options) {
		o.resource = nil
		o.detectResource = true
	}
}

// WithLabels sets default labels attached to every entry. Event labels are
// merged over them. The map is copied.
func WithLabels(labels map[string]string) Option {
	return func(o *options) {
		o.labels = maps.Clone(labels)
	}
}

// WithLevel sets the minimum level accepted by the handler. It overrides
// LOG_LEVEL.
func WithLevel(level slog.Level) Option {
	return func(o *options) {
		o.level = &level
	}
}

// WithLeveler makes the handler consult l on every Enabled call, so the
// minimum level can change at runtime. It takes precedence over WithLevel.
func WithLeveler(l slog.Leveler) Option {
	return func(o *options) {
		o.leveler = l
	}
}

// WithFormatter sets the formatter that renders the record body parsed into
// the info payload. The default is JSONFormatter.
func WithFormatter(f Formatter) Option {
	return func(o *options) {
		o.formatter = f
	}
}

// WithClient injects an existing client. The handler does not close injected
// clients.
func WithClient(c Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithClientOptions appends options passed to the Cloud Logging client when
// the handler creates its own.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// WithDiagnosticWriter sets the stream receiving diagnostics about records
// that could not be parsed or delivered. The default is os.Stderr.
func WithDiagnosticWriter(w io.Writer) Option {
	return func(o *options) {
		o.diagWriter = w
	}
}

// WithDiagnosticLogger routes diagnostics to logger instead of a text
// handler on the diagnostic writer.
func WithDiagnosticLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.diagLogger = logger
	}
}

// WithMetricsRegisterer registers the handler's Prometheus counters on reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithAttrs adds attributes to the handler, as if Handler.WithAttrs had been
// called right after construction. Multiple WithAttrs options accumulate.
func WithAttrs(attrs []slog.Attr) Option {
	return func(o *options) {
		o.attrs = append(o.attrs, attrs...)
	}
}

// WithGroup opens a group on the handler after any WithAttrs are applied.
// Only the last WithGroup takes effect.
func WithGroup(name string) Option {
	return func(o *options) {
		o.group = name
	}
}

// WithEntryCountThreshold sets the maximum number of entries the client
// library buffers before sending. See logging.EntryCountThreshold.
func WithEntryCountThreshold(count int) Option {
	return func(o *options) {
		o.entryCountThresh = &count
	}
}

// WithDelayThreshold sets the maximum time entries are buffered before
// sending. See logging.DelayThreshold.
func WithDelayThreshold(delay time.Duration) Option {
	return func(o *options) {
		o.delayThreshold = &delay
	}
}
