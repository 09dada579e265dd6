// Copyright 2026 The SRR Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable read by Load.
const EnvVar = "SRR_CONFIG"

// Store backends.
const (
	BackendAugtool = "augtool"
	BackendSQLite  = "sqlite"
	BackendMemory  = "memory"
)

// Version policies.
const (
	PolicyFamily  = "family"
	PolicyNumeric = "numeric"
)

// Config is the agent configuration.
type Config struct {
	// SocketPath is where the agent listens for requests.
	SocketPath string `yaml:"socket_path"`

	// LockPath is held with flock for the agent's lifetime so that
	// only one agent drives the store.
	LockPath string `yaml:"lock_path"`

	// MetricsAddress serves Prometheus metrics over HTTP. Empty
	// disables the listener.
	MetricsAddress string `yaml:"metrics_address"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Language selects the catalog for caller-facing messages (BCP 47).
	Language string `yaml:"language"`

	// FeaturesFile holds the feature table. Empty uses the built-in
	// table. The file is watched and reloaded on change.
	FeaturesFile string `yaml:"features_file"`

	Store StoreConfig `yaml:"store"`

	Versions VersionsConfig `yaml:"versions"`

	// CollisionKeys overrides the keys the collision codec renames.
	CollisionKeys []CollisionKey `yaml:"collision_keys"`

	Bulk BulkConfig `yaml:"bulk"`

	TimeSync TimeSyncConfig `yaml:"time_sync"`
}

// StoreConfig selects and configures the store backend.
type StoreConfig struct {
	// Backend is augtool, sqlite or memory.
	Backend string `yaml:"backend"`

	// AugtoolBinary is the augtool executable.
	AugtoolBinary string `yaml:"augtool_binary"`

	// FilesystemRoot runs augtool against another root (augtool -r).
	FilesystemRoot string `yaml:"filesystem_root"`

	// SQLitePath is the database for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// Timeout bounds one load or commit, e.g. "30s".
	Timeout string `yaml:"timeout"`
}

// VersionsConfig sets the artifact versions the agent writes and the
// policy used to accept versions on restore.
type VersionsConfig struct {
	Tree   string `yaml:"tree"`
	Opaque string `yaml:"opaque"`
	Policy string `yaml:"policy"`
}

// CollisionKey configures one colliding key.
type CollisionKey struct {
	Key    string `yaml:"key"`
	Rename string `yaml:"rename"`
}

// BulkConfig configures opaque file artifacts.
type BulkConfig struct {
	// Compression is none, zstd or lz4.
	Compression string `yaml:"compression"`

	// SealRecipients are age recipients. When set, saved files are
	// encrypted to them.
	SealRecipients []string `yaml:"seal_recipients"`

	// IdentityFile holds age identities for opening sealed artifacts.
	IdentityFile string `yaml:"identity_file"`

	Timeout string `yaml:"timeout"`
}

// TimeSyncConfig configures the time-sync service toggle.
type TimeSyncConfig struct {
	Unit      string `yaml:"unit"`
	Systemctl string `yaml:"systemctl"`
	Sudo      bool   `yaml:"sudo"`
	Timeout   string `yaml:"timeout"`
}

// Default returns the configuration values used for fields the file
// leaves unset.
func Default() *Config {
	return &Config{
		SocketPath:     "/run/srr/srr.sock",
		LockPath:       "/run/srr/srr.lock",
		MetricsAddress: "",
		LogLevel:       "info",
		Language:       "en",
		Store: StoreConfig{
			Backend:       BackendAugtool,
			AugtoolBinary: "augtool",
			SQLitePath:    "/var/lib/srr/store.db",
			Timeout:       "30s",
		},
		Versions: VersionsConfig{
			Tree:   "1.0",
			Opaque: "2.0",
			Policy: PolicyFamily,
		},
		Bulk: BulkConfig{
			Compression: "none",
			Timeout:     "30s",
		},
		TimeSync: TimeSyncConfig{
			Unit:      "ntp",
			Systemctl: "systemctl",
			Sudo:      true,
			Timeout:   "30s",
		},
	}
}

// Load loads the file named by SRR_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of the agent config file, or use --config", EnvVar)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over Default and expands
// variables in path fields.
func LoadFile(path string) (*Config, error) {
	config := Default()
	if err := DecodeFile(path, config); err != nil {
		return nil, err
	}
	config.expandVariables()
	return config, nil
}

// DecodeFile decodes a YAML, JSON or JSONC file into out. JSON is read
// through the YAML decoder after comments are stripped, so both forms
// honor the same yaml struct tags.
func DecodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.SocketPath = expandVars(c.SocketPath, vars)
	c.LockPath = expandVars(c.LockPath, vars)
	c.FeaturesFile = expandVars(c.FeaturesFile, vars)
	c.Store.FilesystemRoot = expandVars(c.Store.FilesystemRoot, vars)
	c.Store.SQLitePath = expandVars(c.Store.SQLitePath, vars)
	c.Bulk.IdentityFile = expandVars(c.Bulk.IdentityFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}, looking in vars first
// and then the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, fallback := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.SocketPath == "" {
		errs = append(errs, fmt.Errorf("socket_path is required"))
	}
	if !contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level must be one of debug, info, warn, error"))
	}
	switch c.Store.Backend {
	case BackendAugtool, BackendMemory:
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("store.sqlite_path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be one of %s, %s, %s", BackendAugtool, BackendSQLite, BackendMemory))
	}
	if c.Versions.Tree == "" || c.Versions.Opaque == "" {
		errs = append(errs, fmt.Errorf("versions.tree and versions.opaque are required"))
	}
	if !contains([]string{PolicyFamily, PolicyNumeric}, c.Versions.Policy) {
		errs = append(errs, fmt.Errorf("versions.policy must be %s or %s", PolicyFamily, PolicyNumeric))
	}
	if !contains([]string{"none", "zstd", "lz4"}, c.Bulk.Compression) {
		errs = append(errs, fmt.Errorf("bulk.compression must be one of none, zstd, lz4"))
	}
	if c.TimeSync.Unit == "" {
		errs = append(errs, fmt.Errorf("time_sync.unit is required"))
	}
	for name, value := range map[string]string{
		"store.timeout":     c.Store.Timeout,
		"bulk.timeout":      c.Bulk.Timeout,
		"time_sync.timeout": c.TimeSync.Timeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	for i, key := range c.CollisionKeys {
		if key.Key == "" {
			errs = append(errs, fmt.Errorf("collision_keys[%d].key is required", i))
		}
	}

	return errors.Join(errs...)
}

// Duration parses a validated duration field, falling back to def
// when the value is empty or malformed.
func Duration(value string, def time.Duration) time.Duration {
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func contains(values []string, s string) bool {
	for _, value := range values {
		if value == s {
			return true
		}
	}
	return false
}
