package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the gateway config from path. ${VAR} references anywhere in
// the file are expanded from the environment before parsing, which keeps
// account passwords and auth codes out of the file itself.
func Load(path string) (*GatewayConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg GatewayConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// LoadWithDefaults loads the config and fills unset tuning fields from the
// Default* constants. Account entries are never defaulted; a descriptor is
// either complete or dropped at reconciliation.
func LoadWithDefaults(path string) (*GatewayConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate is the entry-point loader: load, default, then validate.
func LoadAndValidate(path string) (*GatewayConfig, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
