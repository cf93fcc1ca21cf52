// Package config loads tether's configuration.
//
// Configuration lives in a single directory, ~/.config/tether by default or
// the directory passed with --config-path. The directory holds config.yaml
// and, unless repository.path points elsewhere, the units/ manifest
// directory.
//
// # config.yaml
//
//	logging:
//	  level: info        # debug, info, warn, error
//	  format: text       # text or json
//	registry:
//	  workers: 8
//	  cyclePolicy: reject
//	timeouts:
//	  install: 30s
//	  resolve: 30s
//	  activate: 5m
//	  unit: 30s
//	  shutdown: 30s
//	repository:
//	  path: units
//	  watch: false
//	  debounce: 500ms
//	metrics:
//	  address: 127.0.0.1:9090
//	pipeline:
//	  name: tether.bootstrap
//	  requireUnits: false
//	  installConcurrency: 4
//	units:
//	  - identifier: core
//	    startLevel: 1
//	  - identifier: reports
//	    autoStart: false
//
// Every key is optional. Missing keys keep the values of GetDefaultConfig
// and a missing config.yaml yields the defaults.
//
// # Errors
//
// LoadConfig returns a *ConfigurationError that records the file, the kind
// of failure (io, parse or validation) and, for validation failures, the
// individual ValidationErrors. DetailedError renders all of it for the CLI.
package config
