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
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
	"github.com/goccy/go-json"
	mrpb "google.golang.org/genproto/googleapis/api/monitoredres"
)

// Environment variable names used for configuration.
const (
	envLogLevel    = "LOG_LEVEL"
	envProjectID   = "GCLOUDLOG_PROJECT_ID"
	envLogName     = "GCLOUDLOG_LOG_NAME"
	envTransport   = "GCLOUDLOG_TRANSPORT"
	envClientScope = "GCLOUDLOG_CLIENT_SCOPES"

	envLabelsJSON          = "GCLOUDLOG_LABELS_JSON"
	envLabelPrefix         = "GCLOUDLOG_L_"
	envResourceType        = "GCLOUDLOG_RESOURCE_TYPE"
	envResourceLabelPrefix = "GCLOUDLOG_RL_"

	envInitTimeoutMS        = "GCLOUDLOG_INIT_TIMEOUT_MS"
	envConcurrentWriteLimit = "GCLOUDLOG_CONCURRENT_WRITE_LIMIT"
	envDelayThresholdMS     = "GCLOUDLOG_DELAY_THRESHOLD_MS"
	envEntryCountThreshold  = "GCLOUDLOG_ENTRY_COUNT_THRESHOLD"
	envEntryByteThreshold   = "GCLOUDLOG_ENTRY_BYTE_THRESHOLD"
	envEntryByteLimit       = "GCLOUDLOG_ENTRY_BYTE_LIMIT"
	envBufferedByteLimit    = "GCLOUDLOG_BUFFERED_BYTE_LIMIT"
	envPartialSuccess       = "GCLOUDLOG_PARTIAL_SUCCESS"
)

// Defaults applied when neither options nor environment provide a value.
const (
	DefaultLogName           = "gcloudlog"
	DefaultTransport         = "background"
	defaultLogLevel          = slog.LevelInfo
	defaultBufferedByteLimit = 100 * 1024 * 1024 // 100 MiB
	defaultClientInitTimeout = 10 * time.Second

	// ResourceTypeAuto requests monitored resource detection from the
	// runtime environment instead of a fixed resource type.
	ResourceTypeAuto = "auto"
)

// Config holds values resolved from hard-coded defaults and environment
// variables. Programmatic options in the parent package are layered on top.
type Config struct {
	ProjectID string
	LogName   string
	Transport string
	Level     slog.Level

	Labels         map[string]string
	ResourceType   string
	ResourceLabels map[string]string

	// Resource is the monitored resource attached to every entry that does not
	// carry its own. It is resolved once at construction.
	Resource *mrpb.MonitoredResource

	ClientScopes []string
	InitTimeout  time.Duration

	ConcurrentWriteLimit *int
	DelayThreshold       *time.Duration
	EntryCountThreshold  *int
	EntryByteThreshold   *int
	EntryByteLimit       *int
	BufferedByteLimit    *int
	PartialSuccess       *bool
}

// LoadConfig resolves configuration from environment variables, applying
// defaults for anything unset or invalid. Invalid values are reported to
// stderr and otherwise ignored; LoadConfig never consults the metadata
// server (see ResolveProjectID).
func LoadConfig() Config {
	cfg := Config{
		LogName:           DefaultLogName,
		Transport:         DefaultTransport,
		Level:             defaultLogLevel,
		InitTimeout:       defaultClientInitTimeout,
		BufferedByteLimit: intPtr(defaultBufferedByteLimit),
	}

	cfg.ProjectID = normalizeProjectID(firstNonEmpty(
		os.Getenv(envProjectID),
		os.Getenv("GOOGLE_CLOUD_PROJECT"),
		os.Getenv("GCLOUD_PROJECT"),
	))
	if v := strings.TrimSpace(os.Getenv(envLogName)); v != "" {
		cfg.LogName = v
	}
	if v := strings.TrimSpace(os.Getenv(envTransport)); v != "" {
		cfg.Transport = strings.ToLower(v)
	}
	if v := os.Getenv(envLogLevel); v != "" {
		if lvl, err := ParseLevel(v); err == nil {
			cfg.Level = lvl
		} else {
			warnf("Invalid log level value %q in %s, defaulting to %v", v, envLogLevel, cfg.Level)
		}
	}

	if val := os.Getenv(envClientScope); val != "" {
		var scopes []string
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				scopes = append(scopes, s)
			}
		}
		cfg.ClientScopes = scopes
	}

	labels := make(map[string]string)
	if raw := os.Getenv(envLabelsJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &labels); err != nil {
			warnf("Failed to parse JSON from %s: %v", envLabelsJSON, err)
		}
	}
	for k, v := range prefixedEnv(envLabelPrefix) {
		labels[k] = v
	}
	if len(labels) > 0 {
		cfg.Labels = labels
	}

	cfg.ResourceType = strings.TrimSpace(os.Getenv(envResourceType))
	if rl := prefixedEnv(envResourceLabelPrefix); len(rl) > 0 {
		cfg.ResourceLabels = rl
	}
	if cfg.ResourceType != "" && cfg.ResourceType != ResourceTypeAuto {
		cfg.Resource = &mrpb.MonitoredResource{Type: cfg.ResourceType, Labels: cfg.ResourceLabels}
	}

	if d := parseDurationPtrEnvMS(envInitTimeoutMS); d != nil && *d > 0 {
		cfg.InitTimeout = *d
	}
	cfg.ConcurrentWriteLimit = parseIntPtrEnv(envConcurrentWriteLimit)
	cfg.DelayThreshold = parseDurationPtrEnvMS(envDelayThresholdMS)
	cfg.EntryCountThreshold = parseIntPtrEnv(envEntryCountThreshold)
	cfg.EntryByteThreshold = parseIntPtrEnv(envEntryByteThreshold)
	cfg.EntryByteLimit = parseIntPtrEnv(envEntryByteLimit)
	if v := parseIntPtrEnv(envBufferedByteLimit); v != nil {
		cfg.BufferedByteLimit = v
	}
	cfg.PartialSuccess = parseBoolPtrEnv(envPartialSuccess)

	return cfg
}

// ResolveProjectID returns projectID when set, otherwise asks the metadata
// server when running on Google Cloud. An empty result is reported as
// ErrProjectIDMissing.
func ResolveProjectID(ctx context.Context, projectID string) (string, error) {
	if id := normalizeProjectID(projectID); id != "" {
		return id, nil
	}
	if metadata.OnGCE() {
		id, err := metadata.ProjectIDWithContext(ctx)
		if err == nil && id != "" {
			return normalizeProjectID(id), nil
		}
		if err != nil {
			return "", fmt.Errorf("query metadata server for project ID: %v: %w", err, ErrProjectIDMissing)
		}
	}
	return "", ErrProjectIDMissing
}

// ParseLevel converts a level name or integer into an slog.Level. It accepts
// the standard slog names plus the Cloud Logging severities (default, notice,
// critical, alert, emergency).
func ParseLevel(s string) (slog.Level, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	switch trimmed {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "default":
		return levelDefault, nil
	case "notice":
		return levelNotice, nil
	case "critical":
		return levelCritical, nil
	case "alert":
		return levelAlert, nil
	case "emergency":
		return levelEmergency, nil
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return slog.Level(n), nil
}

// Max length is *less than* 512 chars.
// See: https://cloud.google.com/logging/docs/reference/v2/rest/v2/LogEntry
const logIDMaxLen = 512

// NormalizeLogName trims whitespace and surrounding quotes from a log name and
// validates it against Cloud Logging LOG_ID constraints. An empty name yields
// DefaultLogName.
func NormalizeLogName(s string) (string, error) {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultLogName
	}
	if len(s) >= logIDMaxLen {
		return "", fmt.Errorf("log name must be < %d characters: %w", logIDMaxLen, ErrInvalidLogName)
	}
	for i := 0; i < len(s); i++ {
		b := s[i]
		if ('a' <= b && b <= 'z') ||
			('A' <= b && b <= 'Z') ||
			('0' <= b && b <= '9') ||
			b == '/' || b == '_' || b == '-' || b == '.' {
			continue
		}
		return "", fmt.Errorf("log name contains invalid character %q: %w", b, ErrInvalidLogName)
	}
	return s, nil
}

// prefixedEnv collects environment variables sharing prefix into a map keyed
// by the remainder of the variable name.
func prefixedEnv(prefix string) map[string]string {
	out := make(map[string]string)
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, prefix) {
			continue
		}
		parts := strings.SplitN(e, "=", 2)
		key := strings.TrimPrefix(parts[0], prefix)
		if key != "" && len(parts) == 2 {
			out[key] = parts[1]
		}
	}
	return out
}

func parseIntPtrEnv(name string) *int {
	trimmed := strings.TrimSpace(os.Getenv(name))
	if trimmed == "" {
		return nil
	}
	if i, err := strconv.Atoi(trimmed); err == nil {
		return &i
	}
	warnf("Invalid integer value %q in %s, ignoring", trimmed, name)
	return nil
}

func parseDurationPtrEnvMS(name string) *time.Duration {
	trimmed := strings.TrimSpace(os.Getenv(name))
	if trimmed == "" {
		return nil
	}
	if ms, err := strconv.Atoi(trimmed); err == nil && ms >= 0 {
		d := time.Duration(ms) * time.Millisecond
		return &d
	}
	warnf("Invalid non-negative millisecond value %q in %s, ignoring", trimmed, name)
	return nil
}

func parseBoolPtrEnv(name string) *bool {
	trimmed := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	if trimmed == "" {
		return nil
	}
	switch trimmed {
	case "true", "1", "yes", "on":
		b := true
		return &b
	case "false", "0", "no", "off":
		b := false
		return &b
	default:
		warnf("Invalid boolean value %q in %s, ignoring", trimmed, name)
		return nil
	}
}

// normalizeProjectID strips the "projects/" prefix and surrounding spaces.
func normalizeProjectID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "projects/")
	return strings.TrimSpace(id)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func intPtr(i int) *int { return &i }

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[gcloudlog config] WARNING: "+format+"\n", args...)
}
