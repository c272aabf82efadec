// Package config loads the vciderctl configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the vciderctl configuration.
type Config struct {
	BaseURI            string `yaml:"base_uri"`
	APIID              string `yaml:"api_id"`
	APIKey             string `yaml:"api_key"`
	AppID              string `yaml:"app_id"`
	HashAlgorithm      string `yaml:"hash_algorithm"`
	AutoSync           *bool  `yaml:"auto_sync"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

// DefaultPath returns the default config file path: ~/.vcider/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".vcider", "config.yaml")
	}
	return filepath.Join(home, ".vcider", "config.yaml")
}

// Load reads the configuration from the given YAML file path.
// If the file does not exist, it returns a default Config with no error.
func Load(path string) (*Config, error) {
	cfg := &Config{
		BaseURI: "https://my.vcider.com/api/",
	}

	// Check permissions before reading: warn if the config file is readable
	// by others, since it contains the API key.
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		fmt.Fprintf(os.Stderr,
			"warning: config file %s has permissions %04o — expected 0600. "+
				"The API key may be exposed to other users.\n",
			path, perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// AutoSyncEnabled reports the auto_sync setting, defaulting to true.
func (c *Config) AutoSyncEnabled() bool {
	if c.AutoSync == nil {
		return true
	}
	return *c.AutoSync
}
