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
	"bytes"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"

	"cloud.google.com/go/logging"
	"github.com/goccy/go-json"
)

// Body is the view of a record handed to a Formatter: the final message plus
// the resolved attributes, with groups nested as maps.
type Body struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// LevelName returns the Cloud Logging severity name of the record level.
func (b Body) LevelName() string { return Level(b.Level).String() }

// Attr returns the top-level attribute key, or an empty string when absent.
// Templates use it as {{.Attr "data"}}.
func (b Body) Attr(key string) any {
	if v, ok := b.Attrs[key]; ok && v != nil {
		return v
	}
	return ""
}

// Formatter renders a record body into the mapping-shaped string the Handler
// parses into the info payload. Output that does not parse as a mapping is
// tolerated: the Handler then keeps only the standard fields.
type Formatter interface {
	Format(b Body) (string, error)
}

// FormatterFunc adapts a function to Formatter.
type FormatterFunc func(b Body) (string, error)

// Format calls f(b).
func (f FormatterFunc) Format(b Body) (string, error) { return f(b) }

// JSONFormatter renders the body as a JSON object holding the message and
// every attribute. It is the default Formatter.
type JSONFormatter struct{}

// Format implements Formatter.
func (JSONFormatter) Format(b Body) (string, error) {
	m := make(map[string]any, len(b.Attrs)+1)
	maps.Copy(m, b.Attrs)
	m["message"] = b.Message

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return "", fmt.Errorf("marshal record body: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// TemplateFormatter renders the body through a text/template. The template
// sees a Body, so .Message, .LevelName, .Time and {{.Attr "key"}} are
// available, plus a json function that encodes its argument. Interpolated
// values are not escaped, so structured attributes should go through json:
//
//	{"message":{{json .Message}},"data":{{json (.Attr "data")}}}
//
// A string attribute holding a literal such as {'k': 'v'} may also be quoted
// directly, as in "data":"{{.Attr "data"}}".
type TemplateFormatter struct {
	tmpl *template.Template
}

// NewTemplateFormatter parses format into a TemplateFormatter.
func NewTemplateFormatter(format string) (*TemplateFormatter, error) {
	tmpl, err := template.New("gcloudlog").Funcs(template.FuncMap{
		"json": func(v any) (string, error) {
			out, err := json.Marshal(v)
			return string(out), err
		},
	}).Parse(format)
	if err != nil {
		return nil, fmt.Errorf("parse format template: %w", err)
	}
	return &TemplateFormatter{tmpl: tmpl}, nil
}

// Format implements Formatter.
func (f *TemplateFormatter) Format(b Body) (string, error) {
	var sb strings.Builder
	if err := f.tmpl.Execute(&sb, b); err != nil {
		return "", fmt.Errorf("execute format template: %w", err)
	}
	return sb.String(), nil
}

// groupedAttr holds an attribute along with its group path.
type groupedAttr struct {
	groups []string
	attr   slog.Attr
}

// bodyAttrs resolves attrs into a nested map. Event field attributes are
// collected into fields instead of the map unless keepFields is set, in which
// case their display value is rendered like any other attribute.
func bodyAttrs(attrs []groupedAttr, keepFields bool) (map[string]any, Fields) {
	out := make(map[string]any, len(attrs))
	var fields Fields

	var walk func(ga groupedAttr)
	walk = func(ga groupedAttr) {
		a := ga.attr
		if f, ok := fieldsFromAttr(a); ok {
			fields = fields.Merge(f)
			if !keepFields {
				return
			}
		}
		if a.Equal(slog.Attr{}) {
			return
		}
		if a.Value.Kind() == slog.KindGroup {
			children := a.Value.Group()
			if len(children) == 0 {
				return
			}
			path := ga.groups
			if a.Key != "" {
				path = append(append([]string(nil), ga.groups...), a.Key)
			}
			for _, child := range children {
				walk(groupedAttr{groups: path, attr: child})
			}
			return
		}
		if a.Key == "" {
			return
		}
		nestedMap(out, ga.groups)[a.Key] = resolveValue(a.Value)
	}

	for _, ga := range attrs {
		walk(ga)
	}
	return out, fields
}

// nestedMap navigates or creates nested maps per group path.
func nestedMap(base map[string]any, groups []string) map[string]any {
	curr := base
	for _, g := range groups {
		if g == "" {
			continue
		}
		if m, ok := curr[g].(map[string]any); ok {
			curr = m
			continue
		}
		next := make(map[string]any)
		curr[g] = next
		curr = next
	}
	return curr
}

// resolveValue converts an slog.Value into a JSON-friendly Go value.
func resolveValue(v slog.Value) any {
	rv := v.Resolve()

	switch rv.Kind() {
	case slog.KindGroup:
		group := rv.Group()
		if len(group) == 0 {
			return nil
		}
		m := make(map[string]any, len(group))
		for _, ga := range group {
			if ga.Key == "" {
				continue
			}
			m[ga.Key] = resolveValue(ga.Value)
		}
		return m
	case slog.KindBool:
		return rv.Bool()
	case slog.KindDuration:
		return rv.Duration().String()
	case slog.KindFloat64:
		return rv.Float64()
	case slog.KindInt64:
		return rv.Int64()
	case slog.KindString:
		return rv.String()
	case slog.KindTime:
		return rv.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindUint64:
		return rv.Uint64()
	default:
		switch val := rv.Any().(type) {
		case error:
			return val.Error()
		case *http.Request:
			return nil
		case *logging.HTTPRequest:
			return httpRequestSummary(val)
		case fmt.Stringer:
			return val.String()
		default:
			return val
		}
	}
}

// httpRequestSummary renders the loggable parts of req.
func httpRequestSummary(req *logging.HTTPRequest) map[string]any {
	if req == nil {
		return nil
	}
	m := map[string]any{
		"status":       req.Status,
		"requestSize":  req.RequestSize,
		"responseSize": req.ResponseSize,
		"remoteIp":     req.RemoteIP,
	}
	if req.Latency > 0 {
		m["latency"] = req.Latency.String()
	}
	if r := req.Request; r != nil {
		m["requestMethod"] = r.Method
		if r.URL != nil {
			m["requestUrl"] = r.URL.String()
		}
		m["userAgent"] = r.UserAgent()
		m["protocol"] = r.Proto
	}
	return m
}
