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
	"log/slog"
	"runtime"
	"time"
)

// NewLogger is a convenience wrapper around NewHandler returning an
// *slog.Logger together with the handler, which the caller must Close.
func NewLogger(ctx context.Context, projectID string, opts ...Option) (*slog.Logger, *Handler, error) {
	h, err := NewHandler(ctx, projectID, opts...)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(h), h, nil
}

// DefaultContext logs at DEFAULT severity.
func DefaultContext(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	logAt(ctx, logger, LevelDefault, msg, args...)
}

// NoticeContext logs at NOTICE severity, for significant but normal events.
func NoticeContext(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	logAt(ctx, logger, LevelNotice, msg, args...)
}

// CriticalContext logs at CRITICAL severity.
func CriticalContext(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	logAt(ctx, logger, LevelCritical, msg, args...)
}

// AlertContext logs at ALERT severity.
func AlertContext(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	logAt(ctx, logger, LevelAlert, msg, args...)
}

// EmergencyContext logs at EMERGENCY severity.
func EmergencyContext(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	logAt(ctx, logger, LevelEmergency, msg, args...)
}

func logAt(ctx context.Context, logger *slog.Logger, level Level, msg string, args ...any) {
	if logger == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !logger.Enabled(ctx, level.Level()) {
		return
	}
	// Skip runtime.Callers, logAt and the exported helper.
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level.Level(), msg, pcs[0])
	r.Add(args...)
	_ = logger.Handler().Handle(ctx, r)
}
