// Copyright 2025 venslabs
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

// Package riskconfig loads the scan settings: the alert threshold, the
// notification destination and the report retention.
//
// Two file formats are accepted. The plain text format used by
// reports/config.txt holds two meaningful lines, blank lines and "#"
// comments being ignored:
//
//	# minimum CVSS score to report
//	7.0
//	# webhook URL, or "none"
//	https://discord.com/api/webhooks/...
//
// Files ending in .yaml or .yml are read as:
//
//	threshold: 7.0
//	webhook: none
//	history_limit: 20
//
// Environment variables override file values; see ApplyEnv.
package riskconfig

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/venslabs/depguard/pkg/envutil"
	"github.com/venslabs/depguard/pkg/history"
	"github.com/venslabs/depguard/pkg/notify"
	"github.com/venslabs/depguard/pkg/risk"
)

const (
	// DefaultPath is where the scan looks for its configuration.
	DefaultPath = "reports/config.txt"

	EnvThreshold    = "DEPGUARD_THRESHOLD"
	EnvWebhook      = "DEPGUARD_WEBHOOK"
	EnvHistoryLimit = "DEPGUARD_HISTORY_LIMIT"

	// Older deployments set these; the DEPGUARD_ variables win.
	legacyEnvThreshold = "MIN_CVSS"
	legacyEnvWebhook   = "DISCORD_WEBHOOK"
)

// Config holds the scan settings.
type Config struct {
	Threshold    float64 `yaml:"threshold"`
	Webhook      string  `yaml:"webhook"`
	HistoryLimit int     `yaml:"history_limit"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Threshold:    risk.DefaultThreshold,
		Webhook:      notify.Disabled,
		HistoryLimit: history.DefaultLimit,
	}
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Config file not found, using defaults", "path", path)
		return c, nil
	}
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	default:
		if err := c.parseText(b); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c *Config) parseText(b []byte) error {
	var values []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		values = append(values, line)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if len(values) > 2 {
		slog.Warn("Ignoring extra config lines", "count", len(values)-2)
	}
	if len(values) > 0 {
		t, err := strconv.ParseFloat(values[0], 64)
		if err != nil {
			return fmt.Errorf("invalid threshold %q", values[0])
		}
		c.Threshold = t
	}
	if len(values) > 1 {
		c.Webhook = values[1]
	}
	return nil
}

// ApplyEnv overrides settings with DEPGUARD_THRESHOLD, DEPGUARD_WEBHOOK and
// DEPGUARD_HISTORY_LIMIT when they are set. MIN_CVSS and DISCORD_WEBHOOK are
// honoured as fallbacks.
func (c *Config) ApplyEnv() {
	c.Threshold = envutil.Float64(EnvThreshold, envutil.Float64(legacyEnvThreshold, c.Threshold))
	c.Webhook = envutil.String(EnvWebhook, envutil.String(legacyEnvWebhook, c.Webhook))
	c.HistoryLimit = envutil.Int(EnvHistoryLimit, c.HistoryLimit)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if !inRange010(c.Threshold) {
		return fmt.Errorf("threshold must be between 0 and 10, got %v", c.Threshold)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must be >= 0, got %d", c.HistoryLimit)
	}
	return nil
}

// NotificationsEnabled reports whether a webhook destination is configured.
func (c *Config) NotificationsEnabled() bool {
	w := strings.TrimSpace(c.Webhook)
	return w != "" && !strings.EqualFold(w, notify.Disabled)
}

func inRange010(v float64) bool { return v >= 0 && v <= 10 }
