// Package config loads runtime configuration from a .corax.yaml file and
// CORAX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`

	Strategy       string `mapstructure:"strategy"`
	MaxIterations  int    `mapstructure:"max_iterations"`
	TaskIterations int    `mapstructure:"task_iterations"`
	MaxReplans     int    `mapstructure:"max_replans"`

	MemoryDir string `mapstructure:"memory_dir"`
	Verbose   bool   `mapstructure:"verbose"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "openai")
	v.SetDefault("model", "gpt-4o-mini")
	v.SetDefault("base_url", "https://api.openai.com/v1")
	v.SetDefault("strategy", "react")
	v.SetDefault("max_iterations", 8)
	v.SetDefault("task_iterations", 5)
	v.SetDefault("max_replans", 2)
	v.SetDefault("memory_dir", "")
	v.SetDefault("verbose", false)
}

// Load reads configuration from the first .corax.yaml found in the current
// directory or the home directory, then overlays CORAX_* environment
// variables. A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(".corax")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}

	v.SetEnvPrefix("corax")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Strategy {
	case "react", "coact":
	default:
		return fmt.Errorf("strategy must be react or coact, got %q", c.Strategy)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive")
	}
	if c.TaskIterations < 1 {
		return fmt.Errorf("task_iterations must be positive")
	}
	if c.MaxReplans < 0 {
		return fmt.Errorf("max_replans cannot be negative")
	}
	if c.MemoryDir != "" {
		c.MemoryDir = filepath.Clean(c.MemoryDir)
	}
	return nil
}
