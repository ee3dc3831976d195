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

package gcp

import (
	"log/slog"

	"cloud.google.com/go/logging"
)

// Extended levels mirroring the gcloudlog.Level constants. They are duplicated
// here so the internal package does not import its parent.
const (
	levelDefault   slog.Level = -8
	levelNotice    slog.Level = 2
	levelCritical  slog.Level = 12
	levelAlert     slog.Level = 16
	levelEmergency slog.Level = 20
)

// SeverityForLevel converts an slog.Level to the corresponding Cloud Logging
// severity. Levels between two named severities map to the higher one.
func SeverityForLevel(level slog.Level) logging.Severity {
	switch {
	case level <= levelDefault:
		return logging.Default
	case level <= slog.LevelDebug:
		return logging.Debug
	case level <= slog.LevelInfo:
		return logging.Info
	case level <= levelNotice:
		return logging.Notice
	case level <= slog.LevelWarn:
		return logging.Warning
	case level <= slog.LevelError:
		return logging.Error
	case level <= levelCritical:
		return logging.Critical
	case level <= levelAlert:
		return logging.Alert
	default:
		return logging.Emergency
	}
}
