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
	"log/slog"
	"runtime"
	"strconv"
	"strings"
)

const maxStackFrames = 64

// ErrorReportOption configures ErrorReport and ReportError.
type ErrorReportOption func(*errorReportConfig)

type errorReportConfig struct {
	service string
	version string
}

// WithServiceContext sets the serviceContext reported to Cloud Error
// Reporting. Without it the service and version are read from the Cloud Run,
// App Engine or Cloud Functions environment.
func WithServiceContext(service, version string) ErrorReportOption {
	return func(cfg *errorReportConfig) {
		cfg.service = strings.TrimSpace(service)
		cfg.version = strings.TrimSpace(version)
	}
}

// stackTracer is implemented by errors carrying their own program counters,
// such as those from github.com/pkg/errors adapters.
type stackTracer interface {
	StackTrace() []uintptr
}

// ErrorReport returns a Data attribute that makes the entry ingestible by
// Cloud Error Reporting: stack_trace, context.reportLocation and, when known,
// serviceContext. The stack comes from err when it implements
// StackTrace() []uintptr, otherwise from the caller.
func ErrorReport(err error, opts ...ErrorReportOption) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	cfg := errorReportConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.service = firstNonEmpty(cfg.service, trimmedEnv("K_SERVICE"), trimmedEnv("GAE_SERVICE"), trimmedEnv("FUNCTION_TARGET"))
	cfg.version = firstNonEmpty(cfg.version, trimmedEnv("K_REVISION"), trimmedEnv("GAE_VERSION"))

	pcs := errorPCs(err)
	if len(pcs) == 0 {
		pcs = callerPCs()
	}

	data := map[string]any{
		"error":       err.Error(),
		"stack_trace": err.Error() + "\n\n" + formatStack(pcs),
	}
	if top, ok := firstFrame(pcs); ok {
		data["context"] = map[string]any{
			"reportLocation": map[string]any{
				"filePath":     top.File,
				"lineNumber":   top.Line,
				"functionName": top.Function,
			},
		}
	}
	if cfg.service != "" {
		sc := map[string]any{"service": cfg.service}
		if cfg.version != "" {
			sc["version"] = cfg.version
		}
		data["serviceContext"] = sc
	}
	return Data(data)
}

// ReportError logs err at error level through logger with ErrorReport data.
func ReportError(ctx context.Context, logger *slog.Logger, err error, msg string, opts ...ErrorReportOption) {
	if logger == nil || err == nil {
		return
	}
	logger.LogAttrs(ctx, slog.LevelError, msg, ErrorReport(err, opts...))
}

func errorPCs(err error) []uintptr {
	var st stackTracer
	if !errors.As(err, &st) {
		return nil
	}
	pcs := st.StackTrace()
	if len(pcs) > maxStackFrames {
		pcs = pcs[:maxStackFrames]
	}
	return pcs
}

// callerPCs captures the stack above gcloudlog and log/slog frames.
func callerPCs() []uintptr {
	pcs := make([]uintptr, maxStackFrames)
	n := runtime.Callers(1, pcs)
	pcs = pcs[:n]

	frames := runtime.CallersFrames(pcs)
	skip := 0
	for {
		frame, more := frames.Next()
		if !internalFrame(frame.Function) {
			break
		}
		skip++
		if !more {
			return pcs
		}
	}
	return pcs[skip:]
}

func internalFrame(fn string) bool {
	if strings.HasPrefix(fn, "runtime.") || strings.HasPrefix(fn, "log/slog.") {
		return true
	}
	pkg, _ := splitFunction(fn)
	return pkg == "github.com/zeppos/gcloudlog"
}

func firstFrame(pcs []uintptr) (runtime.Frame, bool) {
	if len(pcs) == 0 {
		return runtime.Frame{}, false
	}
	frame, _ := runtime.CallersFrames(pcs).Next()
	return frame, frame.Function != ""
}

// formatStack renders pcs in the runtime/debug.Stack layout Error Reporting
// parses.
func formatStack(pcs []uintptr) string {
	var sb strings.Builder
	sb.WriteString("goroutine 1 [running]:\n")
	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		if frame.Function != "" && frame.Function != "runtime.goexit" {
			sb.WriteString(frame.Function)
			sb.WriteString("()\n\t")
			sb.WriteString(frame.File)
			sb.WriteByte(':')
			sb.WriteString(strconv.Itoa(frame.Line))
			if frame.Entry != 0 && frame.PC > frame.Entry {
				sb.WriteString(" +0x")
				sb.WriteString(strconv.FormatUint(uint64(frame.PC-frame.Entry), 16))
			}
			sb.WriteByte('\n')
		}
		if !more {
			break
		}
	}
	return sb.String()
}
