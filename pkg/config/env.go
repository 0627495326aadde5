package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every override variable, e.g. MIGRATE_LOG_LEVEL
const EnvPrefix = "MIGRATE"

// EnvOverrides holds the settings that may come from the environment.
// Unset variables leave the file value alone.
type EnvOverrides struct {
	LogLevel           string `envconfig:"LOG_LEVEL"`
	LogFormat          string `envconfig:"LOG_FORMAT"`
	LogFile            string `envconfig:"LOG_FILE"`
	Mode               string `envconfig:"MODE"`
	MaxAttempts        int    `envconfig:"MAX_ATTEMPTS"`
	HTTPTimeoutSeconds int    `envconfig:"HTTP_TIMEOUT_SECONDS"`
	DryRun             *bool  `envconfig:"DRY_RUN"`
}

// ApplyEnv overlays MIGRATE_* variables onto the config. The caller
// validates once every override is in place.
func (c *Config) ApplyEnv() error {
	var env EnvOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("error reading environment overrides: %w", err)
	}

	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}
	if env.LogFormat != "" {
		c.LogFormat = env.LogFormat
	}
	if env.LogFile != "" {
		c.LogFile = env.LogFile
	}
	if env.Mode != "" {
		c.Mode = env.Mode
	}
	if env.MaxAttempts > 0 {
		c.RetryConfig.MaxAttempts = env.MaxAttempts
	}
	if env.HTTPTimeoutSeconds > 0 {
		c.HTTPTimeoutSeconds = env.HTTPTimeoutSeconds
	}
	if env.DryRun != nil {
		c.DryRun = *env.DryRun
	}
	return nil
}
