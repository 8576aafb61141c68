/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Import        ImportConfig  `yaml:"import"`
	Export        ExportConfig  `yaml:"export"`
	Library       LibraryConfig `yaml:"library"`
	Logging       LoggingConfig `yaml:"logging"`
}

type GeneralConfig struct {
	// ProjectDir is the default project directory for CLI commands.
	ProjectDir string `yaml:"project_dir"`
	// CrashReports enables writing crash reports next to the config file.
	CrashReports bool `yaml:"crash_reports"`
}

type ImportConfig struct {
	// Strict makes import and check fail on any diagnostic instead of warning.
	Strict bool `yaml:"strict"`
	// SnapshotKeep is the number of script snapshots kept per project (0 keeps all).
	SnapshotKeep int `yaml:"snapshot_keep"`
}

type ExportConfig struct {
	// PageSize for PDF export: "A4", "Letter" or "A5".
	PageSize string  `yaml:"page_size"`
	FontSize float64 `yaml:"font_size"`
}

type LibraryConfig struct {
	// DSN of the shared Postgres library, without password.
	DSN       string `yaml:"dsn"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// Password is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{ProjectDir: ".", CrashReports: true},
		Import:        ImportConfig{Strict: false, SnapshotKeep: 20},
		Export:        ExportConfig{PageSize: "A4", FontSize: 11},
		Library:       LibraryConfig{DSN: "", TimeoutMs: 15000},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigDir      = "YW_CONFIG_DIR"
	EnvProjectDir     = "YW_PROJECT_DIR"
	EnvStrict         = "YW_STRICT"
	EnvSnapshotKeep   = "YW_SNAPSHOT_KEEP"
	EnvPageSize       = "YW_PDF_PAGE_SIZE"
	EnvLibraryDSN     = "YW_LIBRARY_DSN"
	EnvLibraryTimeout = "YW_LIBRARY_TIMEOUT_MS"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "YW_LOG_LEVEL"
	EnvLogFormat = "YW_LOG_FORMAT"
	EnvLogSource = "YW_LOG_SOURCE"
	EnvLogFile   = "YW_LOG_FILE"
)

// Dir returns the per-user config directory. YW_CONFIG_DIR takes precedence.
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvConfigDir)); v != "" {
		return v, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Yarnweave")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Yarnweave")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "yarnweave")
		} else if home := os.Getenv("HOME"); home != "" {
			base = filepath.Join(home, ".config", "yarnweave")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// The library password is loaded from the keyring and returned separately; a missing entry yields "".
// A config file that exists but cannot be parsed is reported as an error together with the defaults.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	var parseErr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			parseErr = fmt.Errorf("parse %s: %w", path, err)
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	pw, err := LibraryPassword()
	if err != nil && parseErr == nil {
		parseErr = err
	}
	return cfg, pw, parseErr
}

// Save writes the user config YAML and persists the password into the OS keyring (if non-empty).
func Save(cfg AppConfig, password string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if password != "" {
		if err := SetLibraryPassword(password); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if strings.TrimSpace(src.General.ProjectDir) != "" {
		dst.General.ProjectDir = strings.TrimSpace(src.General.ProjectDir)
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.CrashReports = src.General.CrashReports
	dst.Import.Strict = src.Import.Strict
	if src.Import.SnapshotKeep > 0 {
		dst.Import.SnapshotKeep = src.Import.SnapshotKeep
	}
	if ps := normalizePageSize(src.Export.PageSize); ps != "" {
		dst.Export.PageSize = ps
	}
	if src.Export.FontSize > 0 {
		dst.Export.FontSize = src.Export.FontSize
	}
	if strings.TrimSpace(src.Library.DSN) != "" {
		dst.Library.DSN = strings.TrimSpace(src.Library.DSN)
	}
	if src.Library.TimeoutMs != 0 {
		dst.Library.TimeoutMs = src.Library.TimeoutMs
	}
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func normalizePageSize(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a4":
		return "A4"
	case "a5":
		return "A5"
	case "letter":
		return "Letter"
	default:
		return ""
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvProjectDir)); v != "" {
		cfg.General.ProjectDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStrict)); v != "" {
		cfg.Import.Strict = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvSnapshotKeep)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Import.SnapshotKeep = n
		}
	}
	if ps := normalizePageSize(os.Getenv(EnvPageSize)); ps != "" {
		cfg.Export.PageSize = ps
	}
	if v := strings.TrimSpace(os.Getenv(EnvLibraryDSN)); v != "" {
		cfg.Library.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLibraryTimeout)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Library.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var overrideEnv = map[string]string{
	"general.project_dir":  EnvProjectDir,
	"import.strict":        EnvStrict,
	"import.snapshot_keep": EnvSnapshotKeep,
	"export.page_size":     EnvPageSize,
	"library.dsn":          EnvLibraryDSN,
	"library.timeout_ms":   EnvLibraryTimeout,
	"logging.level":        EnvLogLevel,
	"logging.format":       EnvLogFormat,
	"logging.source":       EnvLogSource,
	"logging.file":         EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrideEnv[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout returns the library timeout, falling back to the default for non-positive values.
func (l LibraryConfig) Timeout() time.Duration {
	if l.TimeoutMs <= 0 {
		return time.Duration(Defaults().Library.TimeoutMs) * time.Millisecond
	}
	return time.Duration(l.TimeoutMs) * time.Millisecond
}
