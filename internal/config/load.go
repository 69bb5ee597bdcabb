package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file and returns the resulting
// Config. Unset fields keep the values from DefaultConfig.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg, ReadEnvOverrides())

	return cfg, nil
}

// LoadOrDefault reads path if it exists, otherwise returns a Config
// populated with defaults (plus any environment overrides) so the
// controller has a usable, feature-disabled ConfigStore out of the box.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		applyEnvOverrides(cfg, ReadEnvOverrides())

		return cfg, nil
	}

	return Load(path)
}

func applyEnvOverrides(cfg *Config, env EnvOverrides) {
	if env.Enabled != nil {
		cfg.CloudPicker.Enabled = *env.Enabled
	}

	if env.DefaultProviderPackage != "" {
		cfg.CloudPicker.DefaultProviderPackage = env.DefaultProviderPackage
	}
}
