package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvVaultKey is the environment variable consulted when the config file
// does not carry a vault key.
const EnvVaultKey = "WATCHVAULT_KEY"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Vault     VaultConfig     `toml:"vault"`
	Database  DatabaseConfig  `toml:"database"`
	Sync      SyncConfig      `toml:"sync"`
	Platforms PlatformsConfig `toml:"platforms"`
}

// VaultConfig contains credential encryption settings.
type VaultConfig struct {
	Key string `toml:"key"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SyncConfig contains synchronization engine settings.
type SyncConfig struct {
	FullIntervalDays      int `toml:"full_interval_days"`
	LookbackMinutes       int `toml:"lookback_minutes"`
	EarlyStopThreshold    int `toml:"early_stop_threshold"`
	FullMaxPages          int `toml:"full_max_pages"`
	IncrementalMaxPages   int `toml:"incremental_max_pages"`
	RunTimeoutSeconds     int `toml:"run_timeout_seconds"`
	ScheduleIntervalHours int `toml:"schedule_interval_hours"`
}

// PlatformsConfig contains per-platform adapter settings.
type PlatformsConfig struct {
	Bilibili BilibiliConfig `toml:"bilibili"`
	Trakt    TraktConfig    `toml:"trakt"`
	Steam    SteamConfig    `toml:"steam"`
}

// BilibiliConfig contains bilibili history adapter settings.
type BilibiliConfig struct {
	Enabled  bool `toml:"enabled"`
	PageSize int  `toml:"page_size"`
	DelayMS  int  `toml:"delay_ms"`
}

// TraktConfig contains Trakt history adapter settings.
type TraktConfig struct {
	Enabled  bool   `toml:"enabled"`
	ClientID string `toml:"client_id"`
	PageSize int    `toml:"page_size"`
	DelayMS  int    `toml:"delay_ms"`
}

// SteamConfig contains Steam play history adapter settings.
type SteamConfig struct {
	Enabled bool `toml:"enabled"`
	DelayMS int  `toml:"delay_ms"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Resolved is a configuration value tagged with its provenance, so callers
// can report which branch of the fallback chain supplied it.
type Resolved struct {
	Source string // "config" or "environment"
	Value  string
}

// ResolveVaultKey resolves the vault encryption key with an explicit ordered
// fallback: config file first, then the WATCHVAULT_KEY environment variable.
// An empty Value means no branch supplied a key.
func ResolveVaultKey(config *Config) Resolved {
	if config != nil && config.Vault.Key != "" {
		return Resolved{Source: "config", Value: config.Vault.Key}
	}
	if v := os.Getenv(EnvVaultKey); v != "" {
		return Resolved{Source: "environment", Value: v}
	}
	return Resolved{}
}
