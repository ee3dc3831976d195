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

package logconfig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zeppos/gcloudlog"
	_ "github.com/zeppos/gcloudlog/gcloudlogasync" // registers the async transport
)

// Logger is an *slog.Logger built from a Config. Close releases every
// handler that holds resources.
type Logger struct {
	*slog.Logger
	closers []io.Closer
}

// Close flushes and closes the underlying handlers, joining their errors.
func (l *Logger) Close() error {
	var errs []error
	for _, c := range slices.Backward(l.closers) {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildOption adjusts how Build creates handlers.
type BuildOption func(*builder)

type builder struct {
	stdout     io.Writer
	stderr     io.Writer
	gcloudOpts []gcloudlog.Option
}

// WithStdout replaces os.Stdout for console handlers.
func WithStdout(w io.Writer) BuildOption {
	return func(b *builder) { b.stdout = w }
}

// WithStderr replaces os.Stderr for console handlers.
func WithStderr(w io.Writer) BuildOption {
	return func(b *builder) { b.stderr = w }
}

// WithGCloudOptions appends options to every gcloud handler, after the ones
// derived from the configuration.
func WithGCloudOptions(opts ...gcloudlog.Option) BuildOption {
	return func(b *builder) { b.gcloudOpts = append(b.gcloudOpts, opts...) }
}

// Build creates the handlers listed under root and returns a logger fanning
// out to them. Handlers created before a failure are closed.
func Build(ctx context.Context, cfg *Config, opts ...BuildOption) (*Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &builder{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	rootLevel, _ := gcloudlog.ParseLevel(cfg.Root.Level)
	out := &Logger{}
	handlers := make([]slog.Handler, 0, len(cfg.Root.Handlers))
	for _, name := range cfg.Root.Handlers {
		h, closer, err := b.handler(ctx, cfg.Handlers[name], cfg.Formatters)
		if err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("build handler %s: %w", name, err)
		}
		if closer != nil {
			out.closers = append(out.closers, closer)
		}
		handlers = append(handlers, h)
	}
	out.Logger = slog.New(newFanoutHandler(rootLevel, handlers...))
	return out, nil
}

func (b *builder) handler(ctx context.Context, hc HandlerConfig, formatters map[string]FormatterConfig) (slog.Handler, io.Closer, error) {
	formatter, err := buildFormatter(formatters[hc.Formatter])
	if err != nil {
		return nil, nil, err
	}
	level := slog.LevelDebug
	if hc.Level != "" {
		level, _ = gcloudlog.ParseLevel(hc.Level)
	}

	switch hc.Type {
	case TypeConsole:
		w := b.stderr
		if hc.Stream == "stdout" {
			w = b.stdout
		}
		return gcloudlog.NewStreamHandler(w, level, formatter), nil, nil
	case TypeFile:
		rolling := &lumberjack.Logger{
			Filename:   hc.Path,
			MaxSize:    hc.MaxSizeMB,
			MaxBackups: hc.MaxBackups,
			MaxAge:     hc.MaxAgeDays,
			Compress:   hc.Compress,
		}
		return gcloudlog.NewStreamHandler(rolling, level, formatter), rolling, nil
	case TypeGCloud:
		opts := []gcloudlog.Option{
			gcloudlog.WithLevel(level),
			gcloudlog.WithFormatter(formatter),
		}
		if hc.LogName != "" {
			opts = append(opts, gcloudlog.WithLogName(hc.LogName))
		}
		if hc.LoggerName != "" {
			opts = append(opts, gcloudlog.WithLoggerName(hc.LoggerName))
		}
		if hc.Transport != "" {
			opts = append(opts, gcloudlog.WithTransportName(hc.Transport))
		}
		if len(hc.Labels) > 0 {
			opts = append(opts, gcloudlog.WithLabels(hc.Labels))
		}
		switch hc.Resource {
		case "auto":
			opts = append(opts, gcloudlog.WithDetectedResource())
		case "global":
			opts = append(opts, gcloudlog.WithResource(gcloudlog.GlobalResource(hc.Project)))
		}
		h, err := gcloudlog.NewHandler(ctx, hc.Project, append(opts, b.gcloudOpts...)...)
		if err != nil {
			return nil, nil, err
		}
		return h, h, nil
	}
	return nil, nil, fmt.Errorf("unknown type %q", hc.Type)
}

func buildFormatter(fc FormatterConfig) (gcloudlog.Formatter, error) {
	if fc.Format == "" || fc.Format == "json" {
		return gcloudlog.JSONFormatter{}, nil
	}
	f, err := gcloudlog.NewTemplateFormatter(fc.Format)
	if err != nil {
		return nil, fmt.Errorf("formatter: %w", err)
	}
	return f, nil
}
