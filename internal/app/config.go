package app

import (
	"io"

	"tether/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of logging.level.
	Debug bool

	// Watch enables watch mode even when repository.watch is false.
	Watch bool

	// ConfigPath is the directory holding config.yaml.
	ConfigPath string

	// LogOutput receives log lines. Defaults to os.Stderr so that reports
	// on stdout stay machine readable.
	LogOutput io.Writer

	// TetherConfig is loaded from ConfigPath when nil.
	TetherConfig *config.TetherConfig
}

// NewConfig creates a new application configuration
func NewConfig(debug, watch bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		Watch:      watch,
		ConfigPath: configPath,
	}
}

// watchEnabled reports whether the application runs in watch mode.
func (c *Config) watchEnabled() bool {
	return c.Watch || (c.TetherConfig != nil && c.TetherConfig.Repository.Watch)
}
