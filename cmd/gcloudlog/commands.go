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

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/zeppos/gcloudlog"
	"github.com/zeppos/gcloudlog/logconfig"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gcloudlog",
		Short:         "Send structured log entries to Google Cloud Logging",
		Version:       gcloudlog.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newSendCommand(), newTransportsCommand())
	return cmd
}

type sendOptions struct {
	config string
	level  string
	data   string
	labels []string
	trace  string
	spanID string
}

func newSendCommand() *cobra.Command {
	var opts sendOptions
	cmd := &cobra.Command{
		Use:   "send MESSAGE",
		Short: "Log one message through the configured handlers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.config, "config", "c", "", "logging configuration file (default $GCLOUDLOG_CONFIG)")
	flags.StringVarP(&opts.level, "level", "l", "info", "severity of the entry")
	flags.StringVar(&opts.data, "data", "", "JSON object merged into the entry payload")
	flags.StringArrayVar(&opts.labels, "label", nil, "entry label as key=value (repeatable)")
	flags.StringVar(&opts.trace, "trace", "", "trace name, e.g. projects/p/traces/id")
	flags.StringVar(&opts.spanID, "span-id", "", "span identifier within the trace")
	return cmd
}

func runSend(cmd *cobra.Command, opts sendOptions, message string) error {
	level, err := gcloudlog.ParseLevel(opts.level)
	if err != nil {
		return err
	}
	attrs, err := opts.attrs()
	if err != nil {
		return err
	}

	cfg, err := logconfig.Load(opts.config)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger, err := logconfig.Build(ctx, cfg,
		logconfig.WithStdout(cmd.OutOrStdout()),
		logconfig.WithStderr(cmd.ErrOrStderr()),
	)
	if err != nil {
		return err
	}
	logger.LogAttrs(ctx, level, message, attrs...)
	if err := logger.Close(); err != nil {
		return fmt.Errorf("close logger: %w", err)
	}
	return nil
}

func (o sendOptions) attrs() ([]slog.Attr, error) {
	var attrs []slog.Attr
	if o.data != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(o.data), &data); err != nil {
			return nil, fmt.Errorf("invalid --data: %w", err)
		}
		attrs = append(attrs, gcloudlog.Data(data))
	}
	if len(o.labels) > 0 {
		labels := make(map[string]string, len(o.labels))
		for _, kv := range o.labels {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return nil, fmt.Errorf("invalid --label %q: want key=value", kv)
			}
			labels[k] = v
		}
		attrs = append(attrs, gcloudlog.Labels(labels))
	}
	if o.trace != "" {
		attrs = append(attrs, gcloudlog.Trace(o.trace))
	}
	if o.spanID != "" {
		attrs = append(attrs, gcloudlog.SpanID(o.spanID))
	}
	return attrs, nil
}

func newTransportsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transports",
		Short: "List registered transport names",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range gcloudlog.TransportNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
