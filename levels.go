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
	"fmt"
	"log/slog"

	"github.com/zeppos/gcloudlog/internal/gcp"
)

// Level represents the severity of a log event, extending slog.Level to cover
// every Google Cloud Logging severity. It keeps the slog.Level integer
// representation so it can be passed anywhere a slog.Leveler is accepted.
type Level slog.Level

// Levels for the Cloud Logging severities, spaced around the standard slog
// values so ordering is preserved.
const (
	// LevelDefault maps to DEFAULT. Lower than Debug.
	LevelDefault Level = -8
	// LevelDebug maps to DEBUG.
	LevelDebug Level = Level(slog.LevelDebug)
	// LevelInfo maps to INFO.
	LevelInfo Level = Level(slog.LevelInfo)
	// LevelNotice maps to NOTICE. Between Info and Warn.
	LevelNotice Level = 2
	// LevelWarn maps to WARNING.
	LevelWarn Level = Level(slog.LevelWarn)
	// LevelError maps to ERROR.
	LevelError Level = Level(slog.LevelError)
	// LevelCritical maps to CRITICAL.
	LevelCritical Level = 12
	// LevelAlert maps to ALERT.
	LevelAlert Level = 16
	// LevelEmergency maps to EMERGENCY.
	LevelEmergency Level = 20
)

// String returns the Cloud Logging severity name of l. Values between two
// named levels render as the lower name plus an offset (e.g. "INFO+1").
func (l Level) String() string {
	switch l {
	case LevelDefault:
		return "DEFAULT"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelNotice:
		return "NOTICE"
	case LevelWarn:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	case LevelAlert:
		return "ALERT"
	case LevelEmergency:
		return "EMERGENCY"
	}

	var base Level
	switch {
	case l < LevelDefault:
		return slog.Level(l).String()
	case l < LevelDebug:
		base = LevelDefault
	case l < LevelInfo:
		base = LevelDebug
	case l < LevelNotice:
		base = LevelInfo
	case l < LevelWarn:
		base = LevelNotice
	case l < LevelError:
		base = LevelWarn
	case l < LevelCritical:
		base = LevelError
	case l < LevelAlert:
		base = LevelCritical
	case l < LevelEmergency:
		base = LevelAlert
	default:
		base = LevelEmergency
	}
	return fmt.Sprintf("%s+%d", base.String(), int(l-base))
}

// Level returns the underlying slog.Level, making Level a slog.Leveler.
func (l Level) Level() slog.Level {
	return slog.Level(l)
}

// ParseLevel converts a level name ("debug", "notice", "warning", ...) or an
// integer into an slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	return gcp.ParseLevel(s)
}
