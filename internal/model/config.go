package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DatabaseConfig locates the local message cache.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// SyncConfig controls the background synchronization job.
type SyncConfig struct {
	// IntervalSec is how often (in seconds) every account is synced.
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`

	// MaxMessages bounds the per-folder fetch window.
	MaxMessages int `mapstructure:"max_messages" yaml:"max_messages"`

	// MaxParallelAccounts bounds how many accounts sync concurrently.
	MaxParallelAccounts int `mapstructure:"max_parallel_accounts" yaml:"max_parallel_accounts"`

	// FetchTimeoutSec is the deadline for one account's sync.
	FetchTimeoutSec int `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`

	// RetryInitialSec and RetryMaxSec bound the backoff applied after a
	// tick in which every account failed.
	RetryInitialSec int `mapstructure:"retry_initial_sec" yaml:"retry_initial_sec"`
	RetryMaxSec     int `mapstructure:"retry_max_sec" yaml:"retry_max_sec"`
}

// TransportConfig holds network settings shared by IMAP and SMTP.
type TransportConfig struct {
	ConnectionsPerSec  float64 `mapstructure:"connections_per_sec" yaml:"connections_per_sec"`
	DialTimeoutSec     int     `mapstructure:"dial_timeout_sec" yaml:"dial_timeout_sec"`
	InsecureSkipVerify bool    `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// NotifyConfig selects where VIP notifications are delivered.
type NotifyConfig struct {
	// Desktop enables OS notifications through a helper command.
	Desktop bool `mapstructure:"desktop" yaml:"desktop"`

	// Command overrides the helper command (e.g. "notify-send").
	Command string `mapstructure:"command" yaml:"command"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// VaultConfig selects the credential vault backend.
type VaultConfig struct {
	// Backend is "auto", "file" or "memory".
	Backend string `mapstructure:"backend" yaml:"backend"`
	FileDir string `mapstructure:"file_dir" yaml:"file_dir"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Sync      SyncConfig      `mapstructure:"sync" yaml:"sync"`
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Vault     VaultConfig     `mapstructure:"vault" yaml:"vault"`
}

// configDir returns ~/.config/priobox, or the working directory when the
// home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "priobox")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/priobox/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaults is the single source of default values, keyed by viper path.
func defaults() map[string]any {
	return map[string]any{
		"database.path":                  filepath.Join(configDir(), "priobox.db"),
		"sync.interval_sec":              300,
		"sync.max_messages":              50,
		"sync.max_parallel_accounts":     4,
		"sync.fetch_timeout_sec":         60,
		"sync.retry_initial_sec":         30,
		"sync.retry_max_sec":             600,
		"transport.connections_per_sec":  5.0,
		"transport.dial_timeout_sec":     30,
		"transport.insecure_skip_verify": false,
		"notify.desktop":                 false,
		"notify.command":                 "",
		"log.level":                      "info",
		"log.format":                     "text",
		"vault.backend":                  "auto",
		"vault.file_dir":                 filepath.Join(configDir(), "credentials"),
	}
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	v := newViper()
	cfg := &AppConfig{}
	// Unmarshalling plain defaults cannot fail.
	_ = v.Unmarshal(cfg)
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("PRIOBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// PRIOBOX_* environment variables override file values (for example
// PRIOBOX_SYNC_INTERVAL_SEC). If the file does not exist, defaults are used.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects settings that would make the sync job misbehave.
func (c *AppConfig) Validate() error {
	if c.Sync.IntervalSec <= 0 {
		return fmt.Errorf("sync.interval_sec must be positive, got %d", c.Sync.IntervalSec)
	}
	if c.Sync.MaxMessages <= 0 {
		return fmt.Errorf("sync.max_messages must be positive, got %d", c.Sync.MaxMessages)
	}
	if c.Sync.MaxParallelAccounts <= 0 {
		c.Sync.MaxParallelAccounts = 1
	}
	if c.Sync.RetryMaxSec < c.Sync.RetryInitialSec {
		c.Sync.RetryMaxSec = c.Sync.RetryInitialSec
	}
	switch c.Vault.Backend {
	case "auto", "file", "memory":
	default:
		return fmt.Errorf("vault.backend must be auto, file or memory, got %q", c.Vault.Backend)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database", cfg.Database)
	v.Set("sync", cfg.Sync)
	v.Set("transport", cfg.Transport)
	v.Set("notify", cfg.Notify)
	v.Set("log", cfg.Log)
	v.Set("vault", cfg.Vault)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
