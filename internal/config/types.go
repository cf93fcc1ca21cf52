package config

import "time"

// TetherConfig is the top-level configuration structure for tether.
type TetherConfig struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Registry   RegistryConfig   `yaml:"registry"`
	Timeouts   TimeoutsConfig   `yaml:"timeouts"`
	Repository RepositoryConfig `yaml:"repository"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	// Units are installed in this order; it also breaks ties within a
	// start level.
	Units []UnitConfig `yaml:"units,omitempty"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error (default: info)
	Format string `yaml:"format,omitempty"` // text or json (default: text)
}

// RegistryConfig tunes the service registry.
type RegistryConfig struct {
	Workers     int    `yaml:"workers,omitempty"`     // Concurrent start/stop tasks (default: 8)
	CyclePolicy string `yaml:"cyclePolicy,omitempty"` // reject or allow (default: reject)
}

// TimeoutsConfig bounds the bootstrap phases and shutdown. Zero disables a
// bound.
type TimeoutsConfig struct {
	Install  time.Duration `yaml:"install,omitempty"`
	Resolve  time.Duration `yaml:"resolve,omitempty"`
	Activate time.Duration `yaml:"activate,omitempty"`
	Unit     time.Duration `yaml:"unit,omitempty"`
	Shutdown time.Duration `yaml:"shutdown,omitempty"`
}

// RepositoryConfig locates the unit manifests.
type RepositoryConfig struct {
	// Path is the manifest directory. Relative paths resolve against the
	// configuration directory.
	Path     string        `yaml:"path,omitempty"`
	Watch    bool          `yaml:"watch,omitempty"`    // Deploy and undeploy units on manifest changes
	Debounce time.Duration `yaml:"debounce,omitempty"` // Quiet period before a change is applied (default: 500ms)
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Address string `yaml:"address,omitempty"` // host:port; empty disables the endpoint
}

// PipelineConfig configures the bootstrap pipeline.
type PipelineConfig struct {
	Name               string `yaml:"name,omitempty"`               // Root of the pipeline's service names (default: tether.bootstrap)
	RequireUnits       bool   `yaml:"requireUnits,omitempty"`       // Fail when no unit installs
	InstallConcurrency int    `yaml:"installConcurrency,omitempty"` // Parallel installs (default: 4)
}

// UnitConfig is one entry of the units list.
type UnitConfig struct {
	Identifier string `yaml:"identifier"`
	StartLevel int    `yaml:"startLevel,omitempty"`
	AutoStart  *bool  `yaml:"autoStart,omitempty"`
}

// AutoStartEnabled reports whether the unit starts during bootstrap. Units
// start unless autoStart is explicitly false.
func (u UnitConfig) AutoStartEnabled() bool {
	return u.AutoStart == nil || *u.AutoStart
}
