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
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// StreamHandler writes each record as one formatted line to a writer. It
// accepts the same Formatter as Handler, so a console or file sink can share
// a format with the Cloud Logging sink. Event field attributes are rendered
// like ordinary attributes.
type StreamHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	leveler   slog.Leveler
	formatter Formatter
	attrs     []groupedAttr
	groups    []string
}

var _ slog.Handler = (*StreamHandler)(nil)

// NewStreamHandler returns a StreamHandler writing to w. A nil leveler
// accepts Info and above; a nil formatter selects JSONFormatter.
func NewStreamHandler(w io.Writer, leveler slog.Leveler, formatter Formatter) *StreamHandler {
	if w == nil {
		w = io.Discard
	}
	if leveler == nil {
		leveler = slog.LevelInfo
	}
	if formatter == nil {
		formatter = JSONFormatter{}
	}
	return &StreamHandler{mu: &sync.Mutex{}, w: w, leveler: leveler, formatter: formatter}
}

// Enabled implements slog.Handler.
func (h *StreamHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.leveler.Level()
}

// Handle implements slog.Handler.
func (h *StreamHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]groupedAttr, len(h.attrs), len(h.attrs)+r.NumAttrs())
	copy(attrs, h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, groupedAttr{groups: h.groups, attr: a})
		return true
	})
	m, _ := bodyAttrs(attrs, true)

	line, err := h.formatter.Format(Body{Time: r.Time, Level: r.Level, Message: r.Message, Attrs: m})
	if err != nil {
		return err
	}
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = io.WriteString(h.w, line)
	return err
}

// WithAttrs implements slog.Handler.
func (h *StreamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = slices.Clip(h.attrs)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, groupedAttr{groups: h.groups, attr: a})
	}
	return &clone
}

// WithGroup implements slog.Handler.
func (h *StreamHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clip(h.groups), name)
	return &clone
}
