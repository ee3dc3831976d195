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
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/zeppos/gcloudlog"
)

const (
	// EnvPrefix prefixes environment overrides. A double underscore separates
	// path segments: GCLOUDLOG_ROOT__LEVEL=debug sets root.level.
	EnvPrefix = "GCLOUDLOG_"
	// ConfigPathEnvVar names the configuration file when Load gets no path.
	ConfigPathEnvVar = "GCLOUDLOG_CONFIG"
)

// Handler types accepted in the handlers section.
const (
	TypeConsole = "console"
	TypeGCloud  = "gcloud"
	TypeFile    = "file"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("logconfig: invalid configuration")

// Config is the declarative logging document.
type Config struct {
	Formatters map[string]FormatterConfig `koanf:"formatters"`
	Handlers   map[string]HandlerConfig   `koanf:"handlers"`
	Root       RootConfig                 `koanf:"root"`
}

// FormatterConfig describes a named formatter. An empty format or "json"
// selects gcloudlog.JSONFormatter; anything else is a text/template body.
type FormatterConfig struct {
	Format string `koanf:"format"`
}

// HandlerConfig describes one output. Fields not used by Type are ignored.
type HandlerConfig struct {
	Type      string `koanf:"type"`
	Level     string `koanf:"level"`
	Formatter string `koanf:"formatter"`

	// console
	Stream string `koanf:"stream"`

	// gcloud
	Project    string            `koanf:"project"`
	LogName    string            `koanf:"log_name"`
	LoggerName string            `koanf:"logger_name"`
	Transport  string            `koanf:"transport"`
	Labels     map[string]string `koanf:"labels"`
	Resource   string            `koanf:"resource"`

	// file
	Path       string `koanf:"path"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// RootConfig selects the root level and the handlers the logger fans out to.
type RootConfig struct {
	Level    string   `koanf:"level"`
	Handlers []string `koanf:"handlers"`
}

// Load reads the YAML document at path (or at $GCLOUDLOG_CONFIG when path is
// empty), overlays GCLOUDLOG_ environment overrides and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = strings.TrimSpace(os.Getenv(ConfigPathEnvVar))
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}
	if raw, ok := k.Get("root.handlers").(string); ok {
		if err := k.Set("root.handlers", splitList(raw)); err != nil {
			return nil, fmt.Errorf("set root.handlers: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransform maps GCLOUDLOG_HANDLERS__CONSOLE__LEVEL to
// handlers.console.level. Variables without a path separator belong to the
// handler environment (GCLOUDLOG_PROJECT_ID and friends) and are skipped.
func envTransform(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	if !strings.Contains(key, "__") {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(key, "__", "."))
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.Root.Level == "" {
		c.Root.Level = "info"
	}
	for name, h := range c.Handlers {
		h.Type = strings.ToLower(strings.TrimSpace(h.Type))
		if h.Type == TypeConsole && h.Stream == "" {
			h.Stream = "stderr"
		}
		c.Handlers[name] = h
	}
}

// Validate reports configuration errors wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	if _, err := gcloudlog.ParseLevel(c.Root.Level); err != nil {
		errs = append(errs, fmt.Errorf("root.level: %w", err))
	}
	if len(c.Root.Handlers) == 0 {
		errs = append(errs, errors.New("root.handlers: at least one handler is required"))
	}
	for _, name := range c.Root.Handlers {
		if _, ok := c.Handlers[name]; !ok {
			errs = append(errs, fmt.Errorf("root.handlers: unknown handler %q", name))
		}
	}
	for name, h := range c.Handlers {
		if err := h.validate(c.Formatters); err != nil {
			errs = append(errs, fmt.Errorf("handlers.%s: %w", name, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func (h HandlerConfig) validate(formatters map[string]FormatterConfig) error {
	if h.Level != "" {
		if _, err := gcloudlog.ParseLevel(h.Level); err != nil {
			return fmt.Errorf("level: %w", err)
		}
	}
	if h.Formatter != "" {
		if _, ok := formatters[h.Formatter]; !ok {
			return fmt.Errorf("unknown formatter %q", h.Formatter)
		}
	}
	switch h.Type {
	case TypeConsole:
		if !slices.Contains([]string{"stdout", "stderr"}, h.Stream) {
			return fmt.Errorf("stream must be stdout or stderr, got %q", h.Stream)
		}
	case TypeGCloud:
	case TypeFile:
		if strings.TrimSpace(h.Path) == "" {
			return errors.New("path is required")
		}
	default:
		return fmt.Errorf("unknown type %q", h.Type)
	}
	return nil
}
