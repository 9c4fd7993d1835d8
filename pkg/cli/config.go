package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UserConfig represents ~/.extcat/config.yaml.
type UserConfig struct {
	CurrentProfile string             `yaml:"current-profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile is one named set of defaults.
type Profile struct {
	Host   string `yaml:"host,omitempty"`
	Output string `yaml:"output,omitempty"`
}

// ActiveProfile returns the override profile, or the current one. Unknown
// names yield an empty profile.
func (c *UserConfig) ActiveProfile(override string) Profile {
	name := c.CurrentProfile
	if override != "" {
		name = override
	}
	return c.Profiles[name]
}

// ConfigPath returns the path to ~/.extcat/config.yaml, honouring
// EXTCAT_CONFIG.
func ConfigPath() string {
	if p := os.Getenv("EXTCAT_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".extcat", "config.yaml")
}

// LoadUserConfig reads the config file. A missing file yields an empty
// config.
func LoadUserConfig(path string) (*UserConfig, error) {
	cfg := &UserConfig{CurrentProfile: "default", Profiles: map[string]Profile{}}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // user's own config file
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return cfg, nil
}
