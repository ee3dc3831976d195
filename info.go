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
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Info field names populated for every record.
const (
	fieldFilename   = "filename"
	fieldFuncName   = "funcName"
	fieldLevelName  = "level_name"
	fieldLevelNo    = "level_no"
	fieldLineNo     = "line_no"
	fieldModule     = "module"
	fieldLoggerName = "logger_name"
	fieldPathname   = "pathname"
	fieldClientIP   = "client_ip"
	fieldHostName   = "host_name"
)

var (
	errNotMapping         = errors.New("value is not a mapping")
	errUnsupportedLiteral = errors.New("unsupported literal")
)

// parseMapping decodes s as a mapping. JSON is tried first; YAML flow syntax
// covers the remaining literal forms such as {'k': 'v'}, with None, True and
// False read as their Go values. Tuples, sets and bare keys are rejected.
func parseMapping(s string) (map[string]any, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, errNotMapping
	}

	var m map[string]any
	jsonErr := json.Unmarshal([]byte(trimmed), &m)
	if jsonErr == nil {
		if m == nil {
			return nil, errNotMapping
		}
		return m, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(trimmed), &doc); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", errors.Join(jsonErr, err))
	}
	if len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errNotMapping
	}
	v, err := literalValue(doc.Content[0])
	if err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	return v.(map[string]any), nil
}

// literalValue converts a YAML node holding a dict literal into Go values.
func literalValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, err := literalValue(n.Content[i])
			if err != nil {
				return nil, err
			}
			val := n.Content[i+1]
			if isBareNull(val) {
				return nil, fmt.Errorf("%w: key %v has no value", errUnsupportedLiteral, key)
			}
			v, err := literalValue(val)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(key)] = v
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, child := range n.Content {
			v, err := literalValue(child)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		if n.Style == 0 {
			switch n.Value {
			case "None":
				return nil, nil
			case "True":
				return true, nil
			case "False":
				return false, nil
			}
			if strings.ContainsAny(n.Value, "()") {
				return nil, fmt.Errorf("%w: %q", errUnsupportedLiteral, n.Value)
			}
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: yaml node kind %d", errUnsupportedLiteral, n.Kind)
	}
}

// isBareNull reports whether n is an implicit empty value, as produced for a
// mapping key written without a colon.
func isBareNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Style == 0 && n.Value == "" && n.Tag == "!!null"
}

// sourceInfo is the caller location of a record.
type sourceInfo struct {
	file     string
	line     int
	function string
}

func sourceFromPC(pc uintptr) (sourceInfo, bool) {
	if pc == 0 {
		return sourceInfo{}, false
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	frame, _ := frames.Next()
	if frame.File == "" && frame.Function == "" {
		return sourceInfo{}, false
	}
	return sourceInfo{file: frame.File, line: frame.Line, function: frame.Function}, true
}

// splitFunction splits a fully qualified function name such as
// "example.com/app/pkg.(*T).Run" into "example.com/app/pkg" and "(*T).Run".
func splitFunction(fn string) (pkg, name string) {
	slash := strings.LastIndex(fn, "/")
	dot := strings.Index(fn[slash+1:], ".")
	if dot < 0 {
		return "", fn
	}
	dot += slash + 1
	return fn[:dot], fn[dot+1:]
}

// standardFields builds the fields every info payload carries. Values that
// cannot be determined are nil.
func standardFields(r slog.Record, loggerName string, f Fields) map[string]any {
	out := map[string]any{
		fieldFilename:   nil,
		fieldFuncName:   nil,
		fieldLevelName:  Level(r.Level).String(),
		fieldLevelNo:    int(r.Level),
		fieldLineNo:     nil,
		fieldModule:     nil,
		fieldLoggerName: loggerName,
		fieldPathname:   nil,
		fieldClientIP:   nil,
		fieldHostName:   nil,
	}
	if src, ok := sourceFromPC(r.PC); ok {
		pkg, name := splitFunction(src.function)
		out[fieldPathname] = src.file
		out[fieldFilename] = filepath.Base(src.file)
		out[fieldLineNo] = src.line
		if name != "" {
			out[fieldFuncName] = name
		}
		if pkg != "" {
			out[fieldModule] = pkg
		}
	}
	if f.ClientIP != "" {
		out[fieldClientIP] = f.ClientIP
	}
	if f.HostName != "" {
		out[fieldHostName] = f.HostName
	}
	return out
}

// infoBuilder assembles the info payload for one record.
type infoBuilder struct {
	formatter  Formatter
	loggerName string
	diagnostic func(msg string, attrs ...slog.Attr)
	onFailure  func()
}

// build renders, parses and merges the info payload. It never fails: a body
// that cannot be rendered or parsed, or that carries a malformed data value,
// yields the standard fields alone.
func (b infoBuilder) build(r slog.Record, body Body, f Fields) (info map[string]any) {
	std := standardFields(r, b.loggerName, f)

	defer func() {
		if p := recover(); p != nil {
			b.fail("recovered panic while building log info", slog.Any("panic", p))
			info = std
		}
	}()

	base := b.parseBody(body)
	info = make(map[string]any, len(base)+len(std))
	maps.Copy(info, base)
	maps.Copy(info, std)

	if raw, ok := info[DataKey]; ok {
		delete(info, DataKey)
		data, err := dataMapping(raw)
		if err != nil {
			b.fail("discarding info with malformed data field", slog.Any("error", err))
			info = maps.Clone(std)
		} else {
			maps.Copy(info, data)
		}
	}
	maps.Copy(info, f.Data)
	return info
}

func (b infoBuilder) parseBody(body Body) map[string]any {
	formatter := b.formatter
	if formatter == nil {
		formatter = JSONFormatter{}
	}
	s, err := formatter.Format(body)
	if err != nil {
		b.fail("failed to format log record", slog.Any("error", err))
		return nil
	}
	m, err := parseMapping(s)
	if err != nil {
		b.fail("failed to parse formatted log record", slog.Any("error", err), slog.String("formatted", s))
		return nil
	}
	return m
}

func (b infoBuilder) fail(msg string, attrs ...slog.Attr) {
	if b.onFailure != nil {
		b.onFailure()
	}
	if b.diagnostic != nil {
		b.diagnostic(msg, attrs...)
	}
}

// dataMapping interprets the value of the data info key. Empty strings are
// treated as no data.
func dataMapping(v any) (map[string]any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return val, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return parseMapping(val)
	default:
		return nil, fmt.Errorf("data has type %T: %w", v, errNotMapping)
	}
}
