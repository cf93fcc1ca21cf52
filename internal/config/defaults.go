package config

import "time"

const (
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
	DefaultWorkers            = 8
	DefaultCyclePolicy        = "reject"
	DefaultRepositoryPath     = "units"
	DefaultDebounce           = 500 * time.Millisecond
	DefaultPipelineName       = "tether.bootstrap"
	DefaultInstallConcurrency = 4
)

// GetDefaultConfig returns the configuration used when no config.yaml exists
// and the base that a config.yaml is merged onto.
func GetDefaultConfig() TetherConfig {
	return TetherConfig{
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Registry: RegistryConfig{
			Workers:     DefaultWorkers,
			CyclePolicy: DefaultCyclePolicy,
		},
		Timeouts: TimeoutsConfig{
			Install:  30 * time.Second,
			Resolve:  30 * time.Second,
			Activate: 5 * time.Minute,
			Unit:     30 * time.Second,
			Shutdown: 30 * time.Second,
		},
		Repository: RepositoryConfig{
			Path:     DefaultRepositoryPath,
			Debounce: DefaultDebounce,
		},
		Pipeline: PipelineConfig{
			Name:               DefaultPipelineName,
			InstallConcurrency: DefaultInstallConcurrency,
		},
	}
}
