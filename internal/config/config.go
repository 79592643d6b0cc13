// Package config resolves the settings of the chronos command-line tool.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the runtime configuration of the CLI.
// Values are populated from .chronos.yaml, CHRONOS_* env vars, and CLI flags.
type Config struct {
	Database           string `mapstructure:"db"`
	Project            string `mapstructure:"project"`
	Verbose            bool   `mapstructure:"verbose"`
	MaxAncestryDepth   int    `mapstructure:"max_ancestry_depth"`
	ResolveConcurrency int    `mapstructure:"resolve_concurrency"`
}

// Defaults of the settings that have one.
const (
	DefaultDatabase         = ".chronos/chronos.db"
	DefaultProject          = "default"
	DefaultMaxAncestryDepth = 256
)

// Load reads configuration from v, applying built-in defaults for any values
// not set by config file, environment, or flags.
func Load(v *viper.Viper) (Config, error) {
	v.SetDefault("db", DefaultDatabase)
	v.SetDefault("project", DefaultProject)
	v.SetDefault("verbose", false)
	v.SetDefault("max_ancestry_depth", DefaultMaxAncestryDepth)
	v.SetDefault("resolve_concurrency", 0)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every setting that is out of range.
func (c Config) Validate() error {
	var errs []error
	if c.Database == "" {
		errs = append(errs, errors.New("db: must not be empty"))
	}
	if c.Project == "" {
		errs = append(errs, errors.New("project: must not be empty"))
	}
	if c.MaxAncestryDepth < 1 {
		errs = append(errs, fmt.Errorf("max_ancestry_depth: %d is not positive", c.MaxAncestryDepth))
	}
	if c.ResolveConcurrency < 0 {
		errs = append(errs, fmt.Errorf("resolve_concurrency: %d is negative", c.ResolveConcurrency))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
