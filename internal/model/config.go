package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// HookConfig holds the configuration for a single outbound hook instance.
type HookConfig struct {
	// ID is the unique identifier for this hook instance.
	ID string `mapstructure:"id" yaml:"id"`

	// Type identifies the hook kind (e.g., "jira", "webhook", "campfire").
	Type string `mapstructure:"type" yaml:"type"`

	// Name is the user-defined label for this hook instance.
	Name string `mapstructure:"name" yaml:"name"`

	// Enabled controls whether events are delivered to this hook.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Settings holds hook-specific key-value settings
	// (e.g., project_url, room, subdomain). Credentials never live
	// here; they are fetched from the system keyring by hook ID.
	Settings map[string]string `mapstructure:"settings" yaml:"settings"`
}

// Setting returns the named setting or an empty string.
func (h *HookConfig) Setting(key string) string {
	if h.Settings == nil {
		return ""
	}
	return h.Settings[key]
}

// DisplayConfig holds CLI/TUI rendering preferences.
type DisplayConfig struct {
	Theme            string `mapstructure:"theme" yaml:"theme"`
	DeliveryPageSize int    `mapstructure:"delivery_page_size" yaml:"delivery_page_size"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Hooks   []HookConfig  `mapstructure:"hooks" yaml:"hooks"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`

	// DBPath overrides the default delivery log location.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// HookByID returns the hook with the given ID, or nil.
func (c *AppConfig) HookByID(id string) *HookConfig {
	for i := range c.Hooks {
		if c.Hooks[i].ID == id {
			return &c.Hooks[i]
		}
	}
	return nil
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/crashrelay/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "crashrelay", "config.yaml")
}

// DefaultDBPath returns the default path for the delivery log database.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "deliveries.db")
	}
	return filepath.Join(home, ".config", "crashrelay", "deliveries.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Hooks: []HookConfig{},
		Display: DisplayConfig{
			Theme:            "default",
			DeliveryPageSize: 50,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("display.theme", "default")
	v.SetDefault("display.delivery_page_size", 50)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Apply defaults for each hook entry.
	for i := range cfg.Hooks {
		if !cfg.Hooks[i].Enabled {
			// Viper unmarshals missing bools as false; treat unset as true.
			// We use the raw viper value to distinguish explicit false from absent.
			key := fmt.Sprintf("hooks.%d.enabled", i)
			if !v.IsSet(key) {
				cfg.Hooks[i].Enabled = true
			}
		}
		if cfg.Hooks[i].Settings == nil {
			cfg.Hooks[i].Settings = map[string]string{}
		}
	}

	return cfg, nil
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

	v.Set("hooks", cfg.Hooks)
	v.Set("display", cfg.Display)
	if cfg.DBPath != "" {
		v.Set("db_path", cfg.DBPath)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
